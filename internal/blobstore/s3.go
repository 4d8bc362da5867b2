package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

const DefaultS3KeyPrefix = "images/"

// S3Options configures an S3Store.
type S3Options struct {
	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	PublicBaseURL  string
	ForcePathStyle bool
	Logger         *slog.Logger
}

// S3Store keeps image blobs as objects in one S3 bucket.
type S3Store struct {
	client     s3iface.S3API
	uploader   s3manageriface.UploaderAPI
	bucket     string
	region     string
	endpoint   *url.URL
	publicBase *url.URL
	pathStyle  bool
	keyPrefix  string
	logger     *slog.Logger
}

var _ BlobStore = (*S3Store)(nil)

// NewS3Store creates an S3 session from the default credential chain.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Region) == "" {
		return nil, fmt.Errorf("S3 region is required")
	}
	cfg := &aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(opts.ForcePathStyle),
	}
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	client := s3.New(sess)
	return newS3Store(client, s3manager.NewUploaderWithClient(client), opts)
}

func newS3Store(client s3iface.S3API, uploader s3manageriface.UploaderAPI, opts S3Options) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if strings.ContainsAny(bucket, "[]/") {
		return nil, fmt.Errorf("invalid S3 bucket name: %s", bucket)
	}

	keyPrefix := strings.TrimLeft(strings.TrimSpace(opts.KeyPrefix), "/")
	if keyPrefix == "" {
		keyPrefix = DefaultS3KeyPrefix
	}
	if !strings.HasSuffix(keyPrefix, "/") {
		keyPrefix += "/"
	}

	s := &S3Store{
		client:    client,
		uploader:  uploader,
		bucket:    bucket,
		region:    strings.TrimSpace(opts.Region),
		pathStyle: opts.ForcePathStyle,
		keyPrefix: keyPrefix,
	}

	if raw := strings.TrimSpace(opts.Endpoint); raw != "" {
		u, err := parseBaseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid S3 endpoint: %w", err)
		}
		s.endpoint = u
	}
	if raw := strings.TrimSpace(opts.PublicBaseURL); raw != "" {
		u, err := parseBaseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid S3 public base url: %w", err)
		}
		s.publicBase = u
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger.With("component", "blobstore", "backend", BackendS3, "bucket", bucket)
	return s, nil
}

func (s *S3Store) Backend() string { return BackendS3 }

// Store uploads each non-empty file under <prefix><uuid><ext>.
func (s *S3Store) Store(ctx context.Context, files []File) ([]FileMetadata, error) {
	out := make([]FileMetadata, 0, len(files))
	for _, f := range files {
		if skipFile(f) {
			continue
		}

		key := newObjectKey(s.keyPrefix, f.Name)
		input := &s3manager.UploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   f.Body,
		}
		if ct := strings.TrimSpace(f.ContentType); ct != "" {
			input.ContentType = aws.String(ct)
		}
		if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
			s.logger.Error("blob upload failed", "file", f.Name, "key", key, "error", err)
			return nil, &StorageWriteError{FileName: f.Name, Err: err}
		}
		out = append(out, FileMetadata{StorageURL: s.locatorForKey(key), OriginalFileName: f.Name})
	}
	return out, nil
}

// Delete removes each object best-effort.
func (s *S3Store) Delete(ctx context.Context, locators []string) {
	deleteEach(ctx, s.logger, locators, func(ctx context.Context, locator string) error {
		key, err := s.keyFromLocator(locator)
		if err != nil {
			return err
		}
		_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
}

// Open streams the object behind locator.
func (s *S3Store) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	key, err := s.keyFromLocator(locator)
	if err != nil {
		return nil, err
	}
	output, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, locator)
		}
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return output.Body, nil
}

// List returns every object under the key prefix.
func (s *S3Store) List(ctx context.Context) ([]BlobInfo, error) {
	out := []BlobInfo{}
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, BlobInfo{
				Locator:    s.locatorForKey(key),
				SizeBytes:  aws.Int64Value(obj.Size),
				ModifiedAt: aws.TimeValue(obj.LastModified).UTC(),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	return out, nil
}

// locatorForKey builds the object URL for key. The form is deterministic so
// that listed objects compare equal to stored locators.
func (s *S3Store) locatorForKey(key string) string {
	escaped := escapeKey(key)
	switch {
	case s.publicBase != nil:
		return strings.TrimRight(s.publicBase.String(), "/") + "/" + escaped
	case s.endpoint != nil && s.pathStyle:
		return strings.TrimRight(s.endpoint.String(), "/") + "/" + s.bucket + "/" + escaped
	case s.endpoint != nil:
		return fmt.Sprintf("%s://%s.%s/%s", s.endpoint.Scheme, s.bucket, s.endpoint.Host, escaped)
	case s.pathStyle:
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", s.region, s.bucket, escaped)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
	}
}

// keyFromLocator parses the URL, strips the base path and percent-decodes
// the remainder. Keys outside the configured prefix are rejected.
func (s *S3Store) keyFromLocator(locator string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return "", malformed(locator, err.Error())
	}
	if u.Scheme == "" || u.Host == "" {
		return "", malformed(locator, "not an absolute URL")
	}

	raw := u.EscapedPath()
	switch {
	case s.publicBase != nil:
		base := strings.TrimRight(s.publicBase.EscapedPath(), "/")
		if !strings.HasPrefix(raw, base+"/") {
			return "", malformed(locator, "outside public base url")
		}
		raw = strings.TrimPrefix(raw, base)
	case !strings.HasPrefix(u.Hostname(), s.bucket+"."):
		if endpointBase := s.endpointPath(); endpointBase != "" {
			raw = strings.TrimPrefix(raw, endpointBase)
		}
		if !strings.HasPrefix(raw, "/"+s.bucket+"/") {
			return "", malformed(locator, "bucket not found in path")
		}
		raw = strings.TrimPrefix(raw, "/"+s.bucket)
	}

	key, err := url.PathUnescape(strings.TrimPrefix(raw, "/"))
	if err != nil {
		return "", malformed(locator, err.Error())
	}
	if !strings.HasPrefix(key, s.keyPrefix) || len(key) == len(s.keyPrefix) {
		return "", malformed(locator, "key outside "+s.keyPrefix)
	}
	return key, nil
}

func (s *S3Store) endpointPath() string {
	if s.endpoint == nil {
		return ""
	}
	return strings.TrimRight(s.endpoint.EscapedPath(), "/")
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q must be an absolute URL", raw)
	}
	return u, nil
}
