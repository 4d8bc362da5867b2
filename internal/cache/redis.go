package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"imgpost/internal/api"
)

const (
	DefaultKeyPrefix = "imgpost:post:"
	DefaultTTL       = 5 * time.Minute
	dialTimeout      = 2 * time.Second
	ioTimeout        = 2 * time.Second
)

// RedisOptions configures a Redis cache.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// Redis caches post responses as JSON strings with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ PostCache = (*Redis)(nil)

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}, nil
}

func (r *Redis) key(id int64) string {
	return r.prefix + strconv.FormatInt(id, 10)
}

func (r *Redis) GetPost(ctx context.Context, id int64) (*api.PostResponse, bool, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var post api.PostResponse
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, false, fmt.Errorf("decode cached post %d: %w", id, err)
	}
	return &post, true, nil
}

func (r *Redis) SetPost(ctx context.Context, post *api.PostResponse) error {
	if post == nil {
		return nil
	}
	data, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(post.ID), data, r.ttl).Err()
}

func (r *Redis) DeletePost(ctx context.Context, id int64) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *Redis) Backend() string { return BackendRedis }

func (r *Redis) Close() error { return r.client.Close() }
