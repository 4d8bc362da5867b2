package server

import (
	"fmt"
	"strings"

	"imgpost/internal/api"
	"imgpost/internal/blobstore"
	"imgpost/internal/models"
	"imgpost/internal/store"
)

// buildPostFromInput validates create fields. Images and timestamps are set
// by the caller.
func buildPostFromInput(in PostInput) (*models.Post, error) {
	author := strings.TrimSpace(in.Author)
	if author == "" {
		return nil, badRequestCode(fmt.Errorf("author is required"), ErrCodeMissingRequired)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, badRequestCode(fmt.Errorf("title is required"), ErrCodeMissingRequired)
	}
	if in.Password == "" {
		return nil, badRequestCode(fmt.Errorf("password is required"), ErrCodeMissingRequired)
	}

	return &models.Post{
		Author:   author,
		Title:    title,
		Content:  in.Content,
		Password: in.Password,
		Tags:     models.NormalizeTags(in.Tags),
	}, nil
}

func buildPostUpdateFromInput(in PostInput) (store.PostUpdate, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.PostUpdate{}, badRequestCode(fmt.Errorf("title is required"), ErrCodeMissingRequired)
	}
	return store.PostUpdate{
		Title:   title,
		Content: in.Content,
		Tags:    models.NormalizeTags(in.Tags),
	}, nil
}

func imagesFromMetadata(stored []blobstore.FileMetadata) []models.Image {
	images := make([]models.Image, 0, len(stored))
	for _, meta := range stored {
		images = append(images, models.Image{StorageURL: meta.StorageURL, OriginalFileName: meta.OriginalFileName})
	}
	return images
}

func postToResponse(post *models.Post) api.PostResponse {
	resp := api.PostResponse{
		ID:        post.ID,
		Author:    post.Author,
		Title:     post.Title,
		Content:   post.Content,
		Tags:      make([]string, 0, len(post.Tags)),
		Images:    make([]api.ImageResponse, 0, len(post.Images)),
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	resp.Tags = append(resp.Tags, post.Tags...)
	for _, image := range post.Images {
		resp.Images = append(resp.Images, api.ImageResponse{
			StorageURL:       image.StorageURL,
			OriginalFileName: image.OriginalFileName,
		})
	}
	return resp
}
