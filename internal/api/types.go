package api

import "time"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ImageResponse is one image reference of a post.
type ImageResponse struct {
	StorageURL       string `json:"storageUrl"`
	OriginalFileName string `json:"originalFileName"`
}

// PostResponse is the public representation of a post. It never carries the
// password.
type PostResponse struct {
	ID        int64           `json:"id"`
	Author    string          `json:"author"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Tags      []string        `json:"tags"`
	Images    []ImageResponse `json:"images"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// PostDeleteRequest carries the password for DELETE /api/posts/{id}.
type PostDeleteRequest struct {
	Password string `json:"password"`
}

// PostDeleteResponse acknowledges a delete.
type PostDeleteResponse struct {
	ID int64 `json:"id"`
}

// SweepResponse reports an orphan blob sweep.
type SweepResponse struct {
	CandidateCount int      `json:"candidate_count"`
	DeletedCount   int      `json:"deleted_count"`
	ReclaimedBytes int64    `json:"reclaimed_bytes"`
	DryRun         bool     `json:"dry_run"`
	Candidates     []string `json:"candidates,omitempty"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	SchemaVersion  int            `json:"schema_version"`
	StorageBackend string         `json:"storage_backend"`
	CacheBackend   string         `json:"cache_backend"`
	TotalPosts     int            `json:"total_posts"`
	TotalImages    int            `json:"total_images"`
	TagCounts      map[string]int `json:"tag_counts"`
}
