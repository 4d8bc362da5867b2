package models

import (
	"strings"
	"time"
)

// MaxPostImages is the upper bound on images attached to one post.
const MaxPostImages = 5

// Post is a user post with text fields and an ordered image set.
type Post struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Password  string    `json:"-"`
	Images    []Image   `json:"images"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Image references one stored blob owned by a post.
type Image struct {
	StorageURL       string `json:"storage_url"`
	OriginalFileName string `json:"original_file_name"`
}

// Locators returns the storage locators of all images in order.
func (p *Post) Locators() []string {
	if p == nil || len(p.Images) == 0 {
		return nil
	}
	out := make([]string, 0, len(p.Images))
	for _, image := range p.Images {
		out = append(out, image.StorageURL)
	}
	return out
}

// NormalizeTags trims tags, drops blanks and duplicates, and keeps first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
