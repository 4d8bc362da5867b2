package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"

	maxExtensionLength = 10
)

var (
	// ErrMalformedLocator reports a locator that cannot be reversed into a backend key.
	ErrMalformedLocator = errors.New("malformed storage locator")
	// ErrBlobNotFound reports a locator whose blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")
)

// File is one upload candidate handed to Store.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileMetadata pairs a stored blob locator with the uploader's file name.
type FileMetadata struct {
	StorageURL       string
	OriginalFileName string
}

// BlobInfo describes one blob present in a backend.
type BlobInfo struct {
	Locator    string
	SizeBytes  int64
	ModifiedAt time.Time
}

// BlobStore is the image byte-storage abstraction used by PostService.
type BlobStore interface {
	// Store writes every non-empty file and returns metadata in input order.
	// The first failure aborts the batch with a *StorageWriteError; files
	// written before it are left in place.
	Store(ctx context.Context, files []File) ([]FileMetadata, error)
	// Delete removes blobs best-effort. Failures are logged, never returned.
	Delete(ctx context.Context, locators []string)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	List(ctx context.Context) ([]BlobInfo, error)
	Backend() string
}

// StorageWriteError reports a failed blob write for one input file.
type StorageWriteError struct {
	FileName string
	Err      error
}

func (e *StorageWriteError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("store file %q: %v", e.FileName, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func malformed(locator string, reason string) error {
	return fmt.Errorf("%w: %s (%q)", ErrMalformedLocator, reason, locator)
}

func skipFile(f File) bool {
	return f.Body == nil || f.Size == 0
}

func newObjectKey(prefix, originalName string) string {
	return prefix + uuid.NewString() + safeExtension(originalName)
}

// safeExtension keeps a short alphanumeric extension and drops anything else.
func safeExtension(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	ext := strings.ToLower(path.Ext(name))
	if len(ext) < 2 || len(ext) > maxExtensionLength+1 {
		return ""
	}
	for _, ch := range ext[1:] {
		if (ch < 'a' || ch > 'z') && (ch < '0' || ch > '9') {
			return ""
		}
	}
	return ext
}

// escapeKey percent-encodes each path segment of an object key.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func deleteEach(ctx context.Context, logger *slog.Logger, locators []string, fn func(context.Context, string) error) {
	for _, locator := range locators {
		if strings.TrimSpace(locator) == "" {
			continue
		}
		if err := fn(ctx, locator); err != nil {
			logger.Error("blob delete failed", "locator", locator, "error", err)
			continue
		}
		logger.Debug("blob deleted", "locator", locator)
	}
}
