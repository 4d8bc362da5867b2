package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newLocalStoreForTest(t *testing.T) *LocalStore {
	t.Helper()
	st, err := NewLocalStore(LocalOptions{
		Root:   t.TempDir(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return st
}

func fileFromString(name, body string) File {
	return File{Name: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func readLocator(t *testing.T, bs BlobStore, locator string) string {
	t.Helper()
	rc, err := bs.Open(context.Background(), locator)
	if err != nil {
		t.Fatalf("open %s: %v", locator, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", locator, err)
	}
	return string(data)
}

func TestLocalStoreStoreOpenRoundTrip(t *testing.T) {
	st := newLocalStoreForTest(t)
	ctx := context.Background()

	metas, err := st.Store(ctx, []File{
		fileFromString("a.png", "alpha"),
		{Name: "empty.png", Size: 0, Body: strings.NewReader("")},
		{Name: "absent.png"},
		fileFromString("b.PNG", "bravo"),
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 stored files, got %d", len(metas))
	}
	if metas[0].OriginalFileName != "a.png" || metas[1].OriginalFileName != "b.PNG" {
		t.Fatalf("unexpected order: %#v", metas)
	}
	if metas[0].StorageURL == metas[1].StorageURL {
		t.Fatalf("expected distinct locators, got %q twice", metas[0].StorageURL)
	}
	for _, meta := range metas {
		if !strings.HasPrefix(meta.StorageURL, DefaultLocalPublicPath+"/") {
			t.Fatalf("unexpected locator prefix: %s", meta.StorageURL)
		}
		if !strings.HasSuffix(meta.StorageURL, ".png") {
			t.Fatalf("expected lowercase extension to be kept: %s", meta.StorageURL)
		}
	}

	if got := readLocator(t, st, metas[0].StorageURL); got != "alpha" {
		t.Fatalf("expected alpha, got %q", got)
	}
	if got := readLocator(t, st, metas[1].StorageURL); got != "bravo" {
		t.Fatalf("expected bravo, got %q", got)
	}
}

func TestLocalStoreDeleteIsBestEffort(t *testing.T) {
	st := newLocalStoreForTest(t)
	ctx := context.Background()

	metas, err := st.Store(ctx, []File{fileFromString("a.jpg", "one"), fileFromString("b.jpg", "two")})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	st.Delete(ctx, []string{"::not a url", "/elsewhere/x.jpg", "/uploads/..%2Fescape", metas[0].StorageURL})

	if _, err := st.Open(ctx, metas[0].StorageURL); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected deleted blob to be gone, got %v", err)
	}
	if got := readLocator(t, st, metas[1].StorageURL); got != "two" {
		t.Fatalf("expected untouched blob, got %q", got)
	}

	// Deleting again is a no-op.
	st.Delete(ctx, []string{metas[0].StorageURL})
}

func TestLocalStoreRejectsMalformedLocators(t *testing.T) {
	st := newLocalStoreForTest(t)
	for _, locator := range []string{
		"",
		"/uploads/",
		"/uploads/a/b.png",
		"/uploads/..",
		"/uploads/%2e%2e%2fetc",
		"/other/a.png",
		"/uploads/" + localTmpDir,
	} {
		if _, err := st.keyFromLocator(locator); !errors.Is(err, ErrMalformedLocator) {
			t.Fatalf("expected malformed locator error for %q, got %v", locator, err)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLocalStoreStoreFailureCarriesFileName(t *testing.T) {
	st := newLocalStoreForTest(t)
	ctx := context.Background()

	_, err := st.Store(ctx, []File{
		fileFromString("ok.png", "fine"),
		{Name: "broken.png", Size: 10, Body: failingReader{}},
		fileFromString("never.png", "skipped"),
	})
	var writeErr *StorageWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected StorageWriteError, got %T (%v)", err, err)
	}
	if writeErr.FileName != "broken.png" {
		t.Fatalf("expected broken.png in error, got %q", writeErr.FileName)
	}

	// Files written before the failure are not rolled back.
	blobs, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blobs) != 1 {
		t.Fatalf("expected 1 leftover blob, got %d", len(blobs))
	}
	tmpEntries, err := os.ReadDir(filepath.Join(st.Root(), localTmpDir))
	if err != nil {
		t.Fatalf("read tmp dir: %v", err)
	}
	if len(tmpEntries) != 0 {
		t.Fatalf("expected temp files to be cleaned up, got %d", len(tmpEntries))
	}
}

func TestLocalStoreListSkipsTempDir(t *testing.T) {
	st := newLocalStoreForTest(t)
	ctx := context.Background()

	metas, err := st.Store(ctx, []File{{Name: "c.gif", Size: 3, Body: bytes.NewReader([]byte("gif"))}})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	blobs, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blobs) != 1 || blobs[0].Locator != metas[0].StorageURL || blobs[0].SizeBytes != 3 {
		t.Fatalf("unexpected listing: %#v", blobs)
	}
}

func TestNewLocalStoreValidatesOptions(t *testing.T) {
	if _, err := NewLocalStore(LocalOptions{}); err == nil {
		t.Fatal("expected error for missing root")
	}
	if _, err := NewLocalStore(LocalOptions{Root: t.TempDir(), PublicPath: "uploads"}); err == nil {
		t.Fatal("expected error for relative public path")
	}
	st, err := NewLocalStore(LocalOptions{Root: t.TempDir(), PublicPath: "/media/"})
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	if st.PublicPath() != "/media" {
		t.Fatalf("expected trimmed public path, got %q", st.PublicPath())
	}
}

func TestSafeExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"photo.PNG", ".png"},
		{"archive.tar.gz", ".gz"},
		{"noext", ""},
		{"trailing.", ""},
		{"weird.p%ng", ""},
		{`C:\Users\me\cat.jpeg`, ".jpeg"},
		{"long.abcdefghijkl", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := safeExtension(tc.name); got != tc.want {
				t.Fatalf("safeExtension(%q) = %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}
