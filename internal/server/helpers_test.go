package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"imgpost/internal/api"
	"imgpost/internal/blobstore"
	"imgpost/internal/cache"
	"imgpost/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store *store.Store
	blobs *blobstore.LocalStore
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocalStore(blobstore.LocalOptions{
		Root:   t.TempDir(),
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return testEnv{store: st, blobs: blobs}
}

func newTestService(t *testing.T, opts ...PostServiceOption) (*PostService, testEnv) {
	t.Helper()
	env := newTestEnv(t)
	opts = append([]PostServiceOption{WithServiceLogger(discardLogger())}, opts...)
	return NewPostService(env.store, env.blobs, opts...), env
}

func newTestServer(t *testing.T, opts Options) (*Server, testEnv) {
	t.Helper()
	env := newTestEnv(t)
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}
	return New("127.0.0.1:0", env.store, env.blobs, opts), env
}

func imageFile(name, body string) blobstore.File {
	return blobstore.File{Name: name, ContentType: "image/png", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func imageFiles(names ...string) []blobstore.File {
	files := make([]blobstore.File, 0, len(names))
	for _, name := range names {
		files = append(files, imageFile(name, "bytes of "+name))
	}
	return files
}

func validInput() PostInput {
	return PostInput{
		Author:   "kim",
		Title:    "first trip",
		Content:  "hello",
		Password: "pw1",
		Tags:     []string{"travel"},
	}
}

func readBlob(t *testing.T, bs blobstore.BlobStore, locator string) string {
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

func requireBlobGone(t *testing.T, bs blobstore.BlobStore, locator string) {
	t.Helper()
	rc, err := bs.Open(context.Background(), locator)
	if err == nil {
		rc.Close()
		t.Fatalf("expected %s to be deleted", locator)
	}
	if !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound for %s, got %v", locator, err)
	}
}

func requireAPIError(t *testing.T, err error, status, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", status)
	}
	if got := httpStatusFromError(err); got != status {
		t.Fatalf("expected status %d, got %d (%v)", status, got, err)
	}
	if got := errorNumericCode(status, err); got != code {
		t.Fatalf("expected error_code %d, got %d (%v)", code, got, err)
	}
}

type formPart struct {
	field       string
	fileName    string
	contentType string
	body        string
}

func multipartBody(t *testing.T, fields map[string]string, tags []string, files ...formPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for _, tag := range tags {
		if err := mw.WriteField("tags", tag); err != nil {
			t.Fatalf("write tag: %v", err)
		}
	}
	for _, f := range files {
		field := f.field
		if field == "" {
			field = "images"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+f.fileName+`"`)
		ct := f.contentType
		if ct == "" {
			ct = "image/png"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := io.WriteString(part, f.body); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func requireErrorResponse(t *testing.T, w *httptest.ResponseRecorder, status, code int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	errResp := decodeBody[api.ErrorResponse](t, w)
	if errResp.ErrorCode != code {
		t.Fatalf("expected error_code %d, got %d (%s)", code, errResp.ErrorCode, w.Body.String())
	}
}
