package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"imgpost/internal/api"
	"imgpost/internal/format"
)

var (
	outputFormatter format.Formatter = format.JSONFormatter{}
	detailFormatter format.Formatter = format.FieldsFormatter{}
)

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeFields(fields []format.Field) error {
	return detailFormatter.Write(os.Stdout, fields)
}

func writePostList(posts []api.PostResponse) error {
	for _, post := range posts {
		if err := writePlain("%s\n", formatPostLine(post)); err != nil {
			return err
		}
	}
	return nil
}

func writePostDetail(post api.PostResponse) error {
	fields := []format.Field{
		{Key: "id", Value: strconv.FormatInt(post.ID, 10)},
		{Key: "author", Value: post.Author},
		{Key: "title", Value: post.Title},
		{Key: "created_at", Value: formatTime(post.CreatedAt)},
		{Key: "updated_at", Value: formatTime(post.UpdatedAt)},
	}
	if len(post.Tags) > 0 {
		fields = append(fields, format.Field{Key: "tags", Value: strings.Join(post.Tags, ", ")})
	}
	for i, img := range post.Images {
		fields = append(fields, format.Field{
			Key:   fmt.Sprintf("image[%d]", i),
			Value: fmt.Sprintf("%s (%s)", img.StorageURL, img.OriginalFileName),
		})
	}
	if err := writeFields(fields); err != nil {
		return err
	}
	if post.Content != "" {
		return writePlain("\n%s\n", post.Content)
	}
	return nil
}

func writeInfo(info api.InfoResponse, dbPath string) error {
	fields := []format.Field{
		{Key: "db_path", Value: dbPath},
		{Key: "schema_version", Value: strconv.Itoa(info.SchemaVersion)},
		{Key: "storage_backend", Value: info.StorageBackend},
		{Key: "cache_backend", Value: info.CacheBackend},
		{Key: "total_posts", Value: strconv.Itoa(info.TotalPosts)},
		{Key: "total_images", Value: strconv.Itoa(info.TotalImages)},
	}
	tags := make([]string, 0, len(info.TagCounts))
	for tag := range info.TagCounts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		fields = append(fields, format.Field{Key: "tag " + tag, Value: strconv.Itoa(info.TagCounts[tag])})
	}
	return writeFields(fields)
}

func formatPostLine(post api.PostResponse) string {
	line := fmt.Sprintf("#%d %s - %s [%d image(s)]", post.ID, post.Title, post.Author, len(post.Images))
	if len(post.Tags) > 0 {
		line += " #" + strings.Join(post.Tags, " #")
	}
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
