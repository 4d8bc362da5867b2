package store

import (
	"context"

	"imgpost/internal/models"
)

// PostStore abstracts post record storage.
type PostStore interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	UpdatePost(ctx context.Context, id int64, update PostUpdate) error
	DeletePost(ctx context.Context, id int64) error
	ListImageLocators(ctx context.Context) (map[string]struct{}, error)
}

var _ PostStore = (*Store)(nil)
