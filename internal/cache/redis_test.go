package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"imgpost/internal/api"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), RedisOptions{Addr: mr.Addr(), TTL: ttl})
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisSetGetDelete(t *testing.T) {
	c, mr := newTestRedis(t, time.Minute)
	ctx := context.Background()

	if _, ok, err := c.GetPost(ctx, 1); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	post := &api.PostResponse{
		ID:        1,
		Author:    "kim",
		Title:     "hello",
		Tags:      []string{"go"},
		Images:    []api.ImageResponse{{StorageURL: "/uploads/a.png", OriginalFileName: "a.png"}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := c.SetPost(ctx, post); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists(DefaultKeyPrefix + "1") {
		t.Fatal("expected key written with default prefix")
	}
	if ttl := mr.TTL(DefaultKeyPrefix + "1"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	got, ok, err := c.GetPost(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Title != "hello" || len(got.Images) != 1 || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected cached post: %+v", got)
	}

	if err := c.DeletePost(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.GetPost(ctx, 1); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisEntriesExpire(t *testing.T) {
	c, mr := newTestRedis(t, 30*time.Second)
	ctx := context.Background()

	if err := c.SetPost(ctx, &api.PostResponse{ID: 9, Title: "t"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(31 * time.Second)
	if _, ok, err := c.GetPost(ctx, 9); err != nil || ok {
		t.Fatalf("expected expired entry, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCorruptEntry(t *testing.T) {
	c, mr := newTestRedis(t, time.Minute)
	if err := mr.Set(DefaultKeyPrefix+"3", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok, err := c.GetPost(context.Background(), 3); err == nil || ok {
		t.Fatalf("expected decode error, got ok=%v err=%v", ok, err)
	}
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedis(context.Background(), RedisOptions{Addr: addr}); err == nil {
		t.Fatal("expected ping failure")
	}
	if _, err := NewRedis(context.Background(), RedisOptions{}); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestNoop(t *testing.T) {
	var c PostCache = Noop{}
	ctx := context.Background()
	if err := c.SetPost(ctx, &api.PostResponse{ID: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.GetPost(ctx, 1); ok || err != nil {
		t.Fatalf("noop should always miss, got ok=%v err=%v", ok, err)
	}
	if c.Backend() != BackendNone {
		t.Fatalf("unexpected backend %q", c.Backend())
	}
}
