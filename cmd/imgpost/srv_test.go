package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"imgpost/internal/blobstore"
	"imgpost/internal/cache"
	"imgpost/internal/config"
)

func TestOpenBlobStoreLocalResolvesAgainstDBDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, ".imgpost.db")
	cfg.Storage.Backend = config.StorageBackendLocal
	cfg.Storage.Local.UploadDir = "uploads"

	blobs, err := openBlobStore(&cfg)
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	local, ok := blobs.(*blobstore.LocalStore)
	if !ok {
		t.Fatalf("expected *blobstore.LocalStore, got %T", blobs)
	}
	if want := filepath.Join(dir, "uploads"); local.Root() != want {
		t.Fatalf("expected root %s, got %s", want, local.Root())
	}
	if local.PublicPath() != "/uploads" {
		t.Fatalf("expected public path /uploads, got %s", local.PublicPath())
	}
}

func TestOpenBlobStoreErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "ftp"
	if _, err := openBlobStore(&cfg); err == nil {
		t.Fatal("expected unknown backend error")
	}

	cfg = config.Default()
	cfg.Storage.Backend = config.StorageBackendS3
	cfg.Storage.S3.Bucket = "images"
	cfg.Storage.S3.Region = ""
	if _, err := openBlobStore(&cfg); err == nil {
		t.Fatal("expected missing region error")
	}
}

func TestOpenPostCacheWithoutRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.RedisAddr = " "

	c, err := openPostCache(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	if c.Backend() != cache.BackendNone {
		t.Fatalf("expected %s backend, got %s", cache.BackendNone, c.Backend())
	}
}

func TestOpenUI(t *testing.T) {
	ui, err := openUI("")
	if err != nil || ui != nil {
		t.Fatalf("expected disabled ui, got %v, %v", ui, err)
	}

	if _, err := openUI(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing ui dir")
	}

	file := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(file, []byte("<html>"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := openUI(file); err == nil {
		t.Fatal("expected error for non-directory ui path")
	}

	dir := filepath.Dir(file)
	ui, err = openUI(dir)
	if err != nil {
		t.Fatalf("open ui: %v", err)
	}
	data, err := fs.ReadFile(ui, "index.html")
	if err != nil || string(data) != "<html>" {
		t.Fatalf("expected index.html from ui fs, got %q, %v", data, err)
	}
}
