package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"imgpost/internal/models"
)

// ErrPostNotFound is returned when a mutation targets a post row that is gone.
var ErrPostNotFound = errors.New("post not found")

const postColumns = "id, author, title, content, password, created_at, updated_at"

// PostUpdate replaces the mutable fields of a post. Tags and Images are
// written as complete sets.
type PostUpdate struct {
	Title     string
	Content   string
	Tags      []string
	Images    []models.Image
	UpdatedAt time.Time
}

// CreatePost inserts a post with its tags and images and assigns post.ID.
func (s *Store) CreatePost(ctx context.Context, post *models.Post) (err error) {
	if post == nil {
		return fmt.Errorf("post is required")
	}
	if len(post.Images) > models.MaxPostImages {
		return fmt.Errorf("post has %d images, max %d", len(post.Images), models.MaxPostImages)
	}

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}
	post.Tags = models.NormalizeTags(post.Tags)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO posts (author, title, content, password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		post.Author,
		post.Title,
		nullIfEmpty(post.Content),
		post.Password,
		formatTime(post.CreatedAt),
		formatTime(post.UpdatedAt),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	if err = insertTagsTx(ctx, tx, id, post.Tags); err != nil {
		return err
	}
	if err = insertImagesTx(ctx, tx, id, post.Images); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	post.ID = id
	return nil
}

// GetPost returns one post with tags and images, or nil when absent.
func (s *Store) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if err != nil || post == nil {
		return post, err
	}

	if post.Tags, err = s.listTags(ctx, id); err != nil {
		return nil, err
	}
	if post.Images, err = s.listImages(ctx, id); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns every post, newest id first.
func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.Post{}
	index := map[int64]int{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		if post == nil {
			continue
		}
		post.Tags = []string{}
		post.Images = []models.Image{}
		index[post.ID] = len(posts)
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	tagRows, err := s.db.QueryContext(ctx, "SELECT post_id, tag FROM post_tags ORDER BY post_id, position")
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var postID int64
		var tag string
		if err := tagRows.Scan(&postID, &tag); err != nil {
			return nil, err
		}
		if i, ok := index[postID]; ok {
			posts[i].Tags = append(posts[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	imageRows, err := s.db.QueryContext(ctx, "SELECT post_id, storage_url, original_file_name FROM post_images ORDER BY post_id, position")
	if err != nil {
		return nil, err
	}
	defer imageRows.Close()
	for imageRows.Next() {
		var postID int64
		var image models.Image
		if err := imageRows.Scan(&postID, &image.StorageURL, &image.OriginalFileName); err != nil {
			return nil, err
		}
		if i, ok := index[postID]; ok {
			posts[i].Images = append(posts[i].Images, image)
		}
	}
	return posts, imageRows.Err()
}

// UpdatePost replaces text fields, tags and the full image set in one
// transaction. Returns ErrPostNotFound when the row no longer exists.
func (s *Store) UpdatePost(ctx context.Context, id int64, update PostUpdate) (err error) {
	if len(update.Images) > models.MaxPostImages {
		return fmt.Errorf("post has %d images, max %d", len(update.Images), models.MaxPostImages)
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx,
		"UPDATE posts SET title = ?, content = ?, updated_at = ? WHERE id = ?",
		update.Title, nullIfEmpty(update.Content), formatTime(update.UpdatedAt), id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrPostNotFound
		return err
	}

	if err = deleteChildRowsTx(ctx, tx, id); err != nil {
		return err
	}
	if err = insertTagsTx(ctx, tx, id, models.NormalizeTags(update.Tags)); err != nil {
		return err
	}
	if err = insertImagesTx(ctx, tx, id, update.Images); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePost removes image and tag rows, then the post row.
func (s *Store) DeletePost(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteChildRowsTx(ctx, tx, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListImageLocators returns the set of locators referenced by any post.
func (s *Store) ListImageLocators(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT storage_url FROM post_images")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var locator string
		if err := rows.Scan(&locator); err != nil {
			return nil, err
		}
		out[locator] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) listTags(ctx context.Context, postID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tag FROM post_tags WHERE post_id = ? ORDER BY position ASC", postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *Store) listImages(ctx context.Context, postID int64) ([]models.Image, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT storage_url, original_file_name FROM post_images WHERE post_id = ? ORDER BY position ASC", postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var image models.Image
		if err := rows.Scan(&image.StorageURL, &image.OriginalFileName); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func deleteChildRowsTx(ctx context.Context, tx *sql.Tx, postID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM post_images WHERE post_id = ?", postID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM post_tags WHERE post_id = ?", postID)
	return err
}

func insertTagsTx(ctx context.Context, tx *sql.Tx, postID int64, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	args := make([]any, 0, len(tags)*3)
	for i, tag := range tags {
		args = append(args, postID, i, tag)
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO post_tags (post_id, position, tag) VALUES "+rowValues(len(tags), 3), args...)
	return err
}

func insertImagesTx(ctx context.Context, tx *sql.Tx, postID int64, images []models.Image) error {
	if len(images) == 0 {
		return nil
	}
	args := make([]any, 0, len(images)*4)
	for i, image := range images {
		if strings.TrimSpace(image.StorageURL) == "" {
			return fmt.Errorf("image %d has no storage url", i)
		}
		args = append(args, postID, i, image.StorageURL, image.OriginalFileName)
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO post_images (post_id, position, storage_url, original_file_name) VALUES "+rowValues(len(images), 4), args...)
	return err
}

func scanPost(scanner interface {
	Scan(dest ...any) error
}) (*models.Post, error) {
	var post models.Post
	var content sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&post.ID,
		&post.Author,
		&post.Title,
		&content,
		&post.Password,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	post.Content = content.String

	var err error
	if post.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if post.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}
	return &post, nil
}

func rowValues(rows, columns int) string {
	row := "(" + strings.TrimRight(strings.Repeat("?,", columns), ",") + ")"
	values := make([]string, rows)
	for i := range values {
		values[i] = row
	}
	return strings.Join(values, ",")
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
