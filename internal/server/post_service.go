package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"imgpost/internal/api"
	"imgpost/internal/blobstore"
	"imgpost/internal/cache"
	"imgpost/internal/models"
	"imgpost/internal/store"
)

const DefaultSweepGrace = time.Hour

// PostInput carries the text fields of a create or update request.
type PostInput struct {
	Author   string
	Title    string
	Content  string
	Password string
	Tags     []string
}

// SweepResult reports an orphan blob sweep.
type SweepResult struct {
	CandidateCount int
	DeletedCount   int
	ReclaimedBytes int64
	DryRun         bool
	Candidates     []string
}

// PostService sequences blob and record operations for the post lifecycle.
// Blob calls run outside the record transaction and are not undone when the
// record step fails.
type PostService struct {
	store      store.PostStore
	blobs      blobstore.BlobStore
	cache      cache.PostCache
	logger     *slog.Logger
	sweepGrace time.Duration
	now        func() time.Time
}

// PostServiceOption customizes a PostService.
type PostServiceOption func(*PostService)

// WithPostCache sets the read-through cache used by GetByID.
func WithPostCache(c cache.PostCache) PostServiceOption {
	return func(s *PostService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithSweepGrace sets the default minimum blob age for SweepOrphans.
func WithSweepGrace(grace time.Duration) PostServiceOption {
	return func(s *PostService) {
		if grace > 0 {
			s.sweepGrace = grace
		}
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) PostServiceOption {
	return func(s *PostService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPostService constructs a PostService.
func NewPostService(postStore store.PostStore, blobs blobstore.BlobStore, opts ...PostServiceOption) *PostService {
	s := &PostService{
		store:      postStore,
		blobs:      blobs,
		cache:      cache.Noop{},
		logger:     slog.Default(),
		sweepGrace: DefaultSweepGrace,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "post_service")
	return s
}

// StorageBackend names the configured blob backend.
func (s *PostService) StorageBackend() string {
	return s.blobs.Backend()
}

// CacheBackend names the configured cache.
func (s *PostService) CacheBackend() string {
	return s.cache.Backend()
}

// Create stores the files, then persists the post referencing them.
func (s *PostService) Create(ctx context.Context, in PostInput, files []blobstore.File) (api.PostResponse, error) {
	var resp api.PostResponse

	if err := validateImageCount(files); err != nil {
		return resp, err
	}
	post, err := buildPostFromInput(in)
	if err != nil {
		return resp, err
	}

	stored, err := s.storeFiles(ctx, files)
	if err != nil {
		return resp, err
	}
	post.Images = imagesFromMetadata(stored)
	post.CreatedAt = s.now()
	post.UpdatedAt = post.CreatedAt

	if err := s.store.CreatePost(ctx, post); err != nil {
		return resp, storeFailure(err)
	}

	s.logger.Debug("post created", "post_id", post.ID, "images", len(post.Images))
	return postToResponse(post), nil
}

// Update replaces text fields and the whole image set. Old blobs are deleted
// before new ones are written.
func (s *PostService) Update(ctx context.Context, id int64, in PostInput, files []blobstore.File) (api.PostResponse, error) {
	var resp api.PostResponse

	if err := validateImageCount(files); err != nil {
		return resp, err
	}

	post, err := s.requirePost(ctx, id)
	if err != nil {
		return resp, err
	}
	if err := verifyPassword(post, in.Password); err != nil {
		return resp, err
	}
	if strings.TrimSpace(in.Author) != "" && strings.TrimSpace(in.Author) != post.Author {
		return resp, badRequestCode(fmt.Errorf("author cannot be changed"), ErrCodeImmutableField)
	}
	update, err := buildPostUpdateFromInput(in)
	if err != nil {
		return resp, err
	}

	s.blobs.Delete(ctx, post.Locators())

	stored, err := s.storeFiles(ctx, files)
	if err != nil {
		s.invalidate(ctx, id)
		return resp, err
	}
	update.Images = imagesFromMetadata(stored)
	update.UpdatedAt = s.now()

	if err := s.store.UpdatePost(ctx, id, update); err != nil {
		s.invalidate(ctx, id)
		if errors.Is(err, store.ErrPostNotFound) {
			return resp, postNotFound(id)
		}
		return resp, storeFailure(err)
	}
	s.invalidate(ctx, id)

	post.Title = update.Title
	post.Content = update.Content
	post.Tags = models.NormalizeTags(update.Tags)
	post.Images = update.Images
	post.UpdatedAt = update.UpdatedAt

	s.logger.Debug("post updated", "post_id", id, "images", len(post.Images))
	return postToResponse(post), nil
}

// Delete removes the post's blobs, then its record.
func (s *PostService) Delete(ctx context.Context, id int64, password string) error {
	post, err := s.requirePost(ctx, id)
	if err != nil {
		return err
	}
	if err := verifyPassword(post, password); err != nil {
		return err
	}

	s.blobs.Delete(ctx, post.Locators())

	if err := s.store.DeletePost(ctx, id); err != nil {
		s.invalidate(ctx, id)
		return storeFailure(err)
	}
	s.invalidate(ctx, id)

	s.logger.Debug("post deleted", "post_id", id, "images", len(post.Images))
	return nil
}

// GetByID returns one post, consulting the cache first.
func (s *PostService) GetByID(ctx context.Context, id int64) (api.PostResponse, error) {
	cached, ok, err := s.cache.GetPost(ctx, id)
	if err != nil {
		s.logger.Warn("post cache read failed", "post_id", id, "error", err)
	}
	if ok && cached != nil {
		return *cached, nil
	}

	post, err := s.requirePost(ctx, id)
	if err != nil {
		return api.PostResponse{}, err
	}
	resp := postToResponse(post)
	if err := s.cache.SetPost(ctx, &resp); err != nil {
		s.logger.Warn("post cache write failed", "post_id", id, "error", err)
		return resp, nil
	}
	s.dropIfChanged(ctx, post)
	return resp, nil
}

// dropIfChanged evicts a just-cached post when an update or delete committed
// between the store read and the cache write.
func (s *PostService) dropIfChanged(ctx context.Context, cached *models.Post) {
	current, err := s.store.GetPost(ctx, cached.ID)
	if err != nil {
		s.invalidate(ctx, cached.ID)
		return
	}
	if current == nil || !current.UpdatedAt.Equal(cached.UpdatedAt) {
		s.logger.Debug("dropping stale cache entry", "post_id", cached.ID)
		s.invalidate(ctx, cached.ID)
	}
}

// ListAll returns every post in record-store order.
func (s *PostService) ListAll(ctx context.Context) ([]api.PostResponse, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	out := make([]api.PostResponse, 0, len(posts))
	for i := range posts {
		out = append(out, postToResponse(&posts[i]))
	}
	return out, nil
}

// SweepOrphans finds blobs older than grace that no image row references and
// deletes them when apply is set. A zero grace uses the service default.
func (s *PostService) SweepOrphans(ctx context.Context, apply bool, grace time.Duration) (SweepResult, error) {
	result := SweepResult{DryRun: !apply, Candidates: []string{}}
	if grace < 0 {
		return result, badRequestCode(fmt.Errorf("grace must be >= 0"), ErrCodeInvalidQuery)
	}
	if grace == 0 {
		grace = s.sweepGrace
	}

	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return result, internalError(fmt.Errorf("list blobs: %w", err))
	}
	referenced, err := s.store.ListImageLocators(ctx)
	if err != nil {
		return result, storeFailure(err)
	}

	cutoff := s.now().Add(-grace)
	sizes := map[string]int64{}
	for _, blob := range blobs {
		if _, ok := referenced[blob.Locator]; ok {
			continue
		}
		if blob.ModifiedAt.After(cutoff) {
			continue
		}
		result.Candidates = append(result.Candidates, blob.Locator)
		sizes[blob.Locator] = blob.SizeBytes
	}
	result.CandidateCount = len(result.Candidates)
	if !apply || result.CandidateCount == 0 {
		for _, size := range sizes {
			result.ReclaimedBytes += size
		}
		return result, nil
	}

	s.blobs.Delete(ctx, result.Candidates)

	remaining, err := s.blobs.List(ctx)
	if err != nil {
		return result, internalError(fmt.Errorf("list blobs after sweep: %w", err))
	}
	left := make(map[string]struct{}, len(remaining))
	for _, blob := range remaining {
		left[blob.Locator] = struct{}{}
	}
	for _, locator := range result.Candidates {
		if _, ok := left[locator]; ok {
			continue
		}
		result.DeletedCount++
		result.ReclaimedBytes += sizes[locator]
	}

	s.logger.Info("orphan sweep complete", "candidates", result.CandidateCount, "deleted", result.DeletedCount, "reclaimed_bytes", result.ReclaimedBytes)
	return result, nil
}

func (s *PostService) requirePost(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if post == nil {
		return nil, postNotFound(id)
	}
	return post, nil
}

func (s *PostService) storeFiles(ctx context.Context, files []blobstore.File) ([]blobstore.FileMetadata, error) {
	stored, err := s.blobs.Store(ctx, files)
	if err != nil {
		if isStorageWriteError(err) {
			return nil, storageFailure(err)
		}
		return nil, internalError(err)
	}
	return stored, nil
}

func (s *PostService) invalidate(ctx context.Context, id int64) {
	if err := s.cache.DeletePost(ctx, id); err != nil {
		s.logger.Warn("post cache invalidation failed", "post_id", id, "error", err)
	}
}

func postNotFound(id int64) error {
	return notFoundCode(fmt.Errorf("post not found: %d", id), ErrCodePostNotFound)
}

// verifyPassword compares the raw strings in constant time.
func verifyPassword(post *models.Post, provided string) error {
	if subtle.ConstantTimeCompare([]byte(post.Password), []byte(provided)) != 1 {
		return forbiddenCode(fmt.Errorf("invalid password"), ErrCodeInvalidPassword)
	}
	return nil
}

func validateImageCount(files []blobstore.File) error {
	if len(files) > models.MaxPostImages {
		return badRequestCode(fmt.Errorf("at most %d images are allowed, got %d", models.MaxPostImages, len(files)), ErrCodeInvalidImageCount)
	}
	return nil
}
