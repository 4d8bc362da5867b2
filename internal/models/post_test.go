package models

import (
	"reflect"
	"testing"
)

func TestNormalizeTagsKeepsInsertionOrder(t *testing.T) {
	got := NormalizeTags([]string{" travel", "", "food", "travel", "  ", "Food"})
	want := []string{"travel", "food", "Food"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected tags: got %v want %v", got, want)
	}
}

func TestNormalizeTagsNeverNil(t *testing.T) {
	if got := NormalizeTags(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestPostLocators(t *testing.T) {
	var nilPost *Post
	if got := nilPost.Locators(); got != nil {
		t.Fatalf("expected nil locators for nil post, got %v", got)
	}

	post := &Post{Images: []Image{
		{StorageURL: "/uploads/a.png", OriginalFileName: "a.png"},
		{StorageURL: "/uploads/b.png", OriginalFileName: "b.png"},
	}}
	got := post.Locators()
	want := []string{"/uploads/a.png", "/uploads/b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected locators: got %v want %v", got, want)
	}
}
