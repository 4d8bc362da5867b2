// Package cache holds read-through caches for assembled post responses.
package cache

import (
	"context"

	"imgpost/internal/api"
)

const (
	BackendNone  = "none"
	BackendRedis = "redis"
)

// PostCache stores assembled post responses by id. A miss is (nil, false, nil).
type PostCache interface {
	GetPost(ctx context.Context, id int64) (*api.PostResponse, bool, error)
	SetPost(ctx context.Context, post *api.PostResponse) error
	DeletePost(ctx context.Context, id int64) error
	Backend() string
	Close() error
}

// Noop never stores anything.
type Noop struct{}

var _ PostCache = Noop{}

func (Noop) GetPost(context.Context, int64) (*api.PostResponse, bool, error) { return nil, false, nil }
func (Noop) SetPost(context.Context, *api.PostResponse) error               { return nil }
func (Noop) DeletePost(context.Context, int64) error                        { return nil }
func (Noop) Backend() string                                                { return BackendNone }
func (Noop) Close() error                                                   { return nil }
