package store

import "context"

// StoreInfo summarizes database contents for the admin info endpoint.
type StoreInfo struct {
	SchemaVersion int            `json:"schema_version"`
	TotalPosts    int            `json:"total_posts"`
	TotalImages   int            `json:"total_images"`
	TagCounts     map[string]int `json:"tag_counts"`
}

// StoreInfo returns counts and the applied schema version.
func (s *Store) StoreInfo(ctx context.Context) (*StoreInfo, error) {
	info := &StoreInfo{TagCounts: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&info.SchemaVersion); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&info.TotalPosts); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM post_images").Scan(&info.TotalImages); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT tag, COUNT(*) FROM post_tags GROUP BY tag")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		var count int
		if err := rows.Scan(&tag, &count); err != nil {
			return nil, err
		}
		info.TagCounts[tag] = count
	}
	return info, rows.Err()
}
