package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"imgpost/internal/blobstore"
	"imgpost/internal/cache"
	"imgpost/internal/config"
	"imgpost/internal/server"
	"imgpost/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the imgpost API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, slog.Default().With("component", "server"))
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	addr, err := server.ListenAddr(cfg.APIURL)
	if err != nil {
		return err
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, err := openBlobStore(cfg)
	if err != nil {
		return err
	}

	postCache, err := openPostCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer postCache.Close()

	ui, err := openUI(cfg.UI.Dir)
	if err != nil {
		return err
	}

	srv := server.New(addr, st, blobs, server.Options{
		Cache:          postCache,
		SweepGrace:     cfg.Sweep.Grace.Duration,
		AdminToken:     cfg.Server.AdminToken,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		UI:             ui,
		Logger:         logger,
	})
	return srv.ListenAndServe(ctx)
}

// openBlobStore builds the single backend selected by storage.backend.
func openBlobStore(cfg *config.Config) (blobstore.BlobStore, error) {
	logger := slog.Default()
	switch cfg.Storage.Backend {
	case config.StorageBackendLocal:
		dir := cfg.Storage.Local.UploadDir
		if !filepath.IsAbs(dir) && cfg.DBPath != "" {
			dir = filepath.Join(filepath.Dir(cfg.DBPath), dir)
		}
		return blobstore.NewLocalStore(blobstore.LocalOptions{
			Root:       dir,
			PublicPath: cfg.Storage.Local.PublicPath,
			Logger:     logger,
		})
	case config.StorageBackendS3:
		return blobstore.NewS3Store(blobstore.S3Options{
			Bucket:         cfg.Storage.S3.Bucket,
			Region:         cfg.Storage.S3.Region,
			Endpoint:       cfg.Storage.S3.Endpoint,
			KeyPrefix:      cfg.Storage.S3.KeyPrefix,
			PublicBaseURL:  cfg.Storage.S3.PublicBaseURL,
			ForcePathStyle: cfg.Storage.S3.ForcePathStyle,
			Logger:         logger,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func openPostCache(ctx context.Context, cfg *config.Config) (cache.PostCache, error) {
	if strings.TrimSpace(cfg.Cache.RedisAddr) == "" {
		return cache.Noop{}, nil
	}
	return cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		TTL:      cfg.Cache.TTL.Duration,
	})
}

func openUI(dir string) (fs.FS, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("ui dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ui dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
