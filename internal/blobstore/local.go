package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultLocalPublicPath = "/uploads"
	localTmpDir            = ".tmp"
)

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	Root       string
	PublicPath string
	Logger     *slog.Logger
}

// LocalStore keeps image blobs as flat files under one upload directory.
type LocalStore struct {
	root       string
	publicPath string
	logger     *slog.Logger
}

var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore creates the upload directory if needed and returns a store rooted there.
func NewLocalStore(opts LocalOptions) (*LocalStore, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, fmt.Errorf("local upload dir is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, localTmpDir), 0o755); err != nil {
		return nil, err
	}

	publicPath := strings.TrimRight(strings.TrimSpace(opts.PublicPath), "/")
	if publicPath == "" {
		publicPath = DefaultLocalPublicPath
	}
	if !strings.HasPrefix(publicPath, "/") {
		return nil, fmt.Errorf("local public path must start with /: %q", publicPath)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalStore{
		root:       abs,
		publicPath: publicPath,
		logger:     logger.With("component", "blobstore", "backend", BackendLocal),
	}, nil
}

// Root returns the absolute upload directory.
func (s *LocalStore) Root() string { return s.root }

// PublicPath returns the URL path prefix under which locators are issued.
func (s *LocalStore) PublicPath() string { return s.publicPath }

func (s *LocalStore) Backend() string { return BackendLocal }

// Store writes each non-empty file under a fresh random key.
func (s *LocalStore) Store(ctx context.Context, files []File) ([]FileMetadata, error) {
	out := make([]FileMetadata, 0, len(files))
	for _, f := range files {
		if skipFile(f) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &StorageWriteError{FileName: f.Name, Err: err}
		}

		key := newObjectKey("", f.Name)
		if err := s.write(key, f.Body); err != nil {
			s.logger.Error("blob write failed", "file", f.Name, "error", err)
			return nil, &StorageWriteError{FileName: f.Name, Err: err}
		}
		out = append(out, FileMetadata{StorageURL: s.locatorForKey(key), OriginalFileName: f.Name})
	}
	return out, nil
}

// Delete removes each blob. Missing files count as deleted.
func (s *LocalStore) Delete(ctx context.Context, locators []string) {
	deleteEach(ctx, s.logger, locators, func(ctx context.Context, locator string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := s.keyFromLocator(locator)
		if err != nil {
			return err
		}
		if err := os.Remove(filepath.Join(s.root, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
}

// Open returns a reader for the blob behind locator.
func (s *LocalStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := s.keyFromLocator(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, locator)
		}
		return nil, err
	}
	return f, nil
}

// List returns every blob currently in the upload directory.
func (s *LocalStore) List(ctx context.Context) ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	out := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, BlobInfo{
			Locator:    s.locatorForKey(entry.Name()),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	return out, nil
}

func (s *LocalStore) write(key string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Join(s.root, localTmpDir), "put-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(s.root, key)); err != nil {
		cleanup()
		return err
	}
	return nil
}

func (s *LocalStore) locatorForKey(key string) string {
	return s.publicPath + "/" + url.PathEscape(key)
}

func (s *LocalStore) keyFromLocator(locator string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return "", malformed(locator, err.Error())
	}
	raw := u.EscapedPath()
	prefix := s.publicPath + "/"
	if !strings.HasPrefix(raw, prefix) {
		return "", malformed(locator, "outside "+s.publicPath)
	}
	key, err := url.PathUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil {
		return "", malformed(locator, err.Error())
	}
	if key == "" || key == "." || key == ".." || key == localTmpDir || strings.ContainsAny(key, `/\`) {
		return "", malformed(locator, "invalid key")
	}
	return key, nil
}
