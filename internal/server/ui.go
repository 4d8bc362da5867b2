package server

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"imgpost/internal/blobstore"
)

const uiPrefix = "/app/"

// spaHandler serves the SPA bundle under /app/. Paths that do not name a file
// fall back to index.html so client-side routes resolve.
func (s *Server) spaHandler(dist fs.FS) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		asset := path.Clean(strings.TrimPrefix(r.URL.Path, uiPrefix))
		if asset == "." || asset == "/" || asset == "index.html" || strings.HasPrefix(asset, "../") {
			s.serveUIIndex(w, r, dist)
			return
		}

		info, err := fs.Stat(dist, asset)
		if err != nil || info.IsDir() {
			s.serveUIIndex(w, r, dist)
			return
		}

		if isFingerprintAsset(asset) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		http.ServeFileFS(w, r, dist, asset)
	})
}

func (s *Server) serveUIIndex(w http.ResponseWriter, r *http.Request, dist fs.FS) {
	index, err := fs.ReadFile(dist, "index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(index)
}

func isFingerprintAsset(assetPath string) bool {
	base := path.Base(strings.TrimSpace(assetPath))
	parts := strings.Split(base, ".")
	if len(parts) < 3 {
		return false
	}

	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, ch := range hash {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}

// uploadHandler serves local-backend blobs by key. Blob keys are random, so
// responses are cached as immutable.
func (s *Server) uploadHandler(publicPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		locator := publicPath + "/" + url.PathEscape(key)

		rc, err := s.blobs.Open(r.Context(), locator)
		if err != nil {
			if errors.Is(err, blobstore.ErrBlobNotFound) || errors.Is(err, blobstore.ErrMalformedLocator) {
				http.NotFound(w, r)
				return
			}
			s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(err))
			return
		}
		defer rc.Close()

		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, key, time.Time{}, rs)
			return
		}
		if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if _, err := io.Copy(w, rc); err != nil {
			s.log().Debug("upload copy interrupted", "key", key, "error", err)
		}
	}
}
