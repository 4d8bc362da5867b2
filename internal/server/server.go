package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"imgpost/internal/blobstore"
	"imgpost/internal/cache"
	"imgpost/internal/store"
)

const (
	allowRemoteEnvKey = "IMGPOST_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options configures a Server. Zero values select defaults.
type Options struct {
	Cache          cache.PostCache
	SweepGrace     time.Duration
	AdminToken     string
	MaxUploadBytes int64
	// UI is the SPA bundle served under /app/; nil disables it.
	UI     fs.FS
	Logger *slog.Logger
}

type infoSource interface {
	StoreInfo(ctx context.Context) (*store.StoreInfo, error)
}

// Server wraps HTTP handlers for the imgpost API.
type Server struct {
	addr           string
	store          store.PostStore
	blobs          blobstore.BlobStore
	service        *PostService
	logger         *slog.Logger
	adminToken     string
	maxUpload      int64
	ui             fs.FS
}

// New creates a new server instance.
func New(addr string, postStore store.PostStore, blobs blobstore.BlobStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:  addr,
		store: postStore,
		blobs: blobs,
		service: NewPostService(postStore, blobs,
			WithPostCache(opts.Cache),
			WithSweepGrace(opts.SweepGrace),
			WithServiceLogger(logger),
		),
		logger:         logger,
		adminToken:     strings.TrimSpace(opts.AdminToken),
		maxUpload:      opts.MaxUploadBytes,
		ui:             opts.UI,
	}
}

// Handler returns the full HTTP handler chain.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withAdminToken(s.routes()))
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "storage_backend", s.blobs.Backend(), "cache_backend", s.service.CacheBackend())
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) maxUploadBytes() int64 {
	if s.maxUpload > 0 {
		return s.maxUpload
	}
	return defaultMaxUploadBytes
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
