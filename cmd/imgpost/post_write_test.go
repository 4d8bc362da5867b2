package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"imgpost/internal/config"
)

func TestBuildPostWriteRequest(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "beach.PNG")
	second := filepath.Join(dir, "notes.bin")
	if err := os.WriteFile(first, []byte("png bytes"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := os.WriteFile(second, []byte("raw bytes"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	req, closeFiles, err := buildPostWriteRequest(&postWriteOptions{
		author:   "kim",
		title:    "first trip",
		content:  "hello",
		password: "pw1",
		tags:     []string{" travel", "food", "travel", ""},
		images:   []string{first, second},
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	defer closeFiles()

	if req.Author != "kim" || req.Title != "first trip" || req.Content != "hello" || req.Password != "pw1" {
		t.Fatalf("unexpected text fields: %+v", req)
	}
	if want := []string{"travel", "food"}; !reflect.DeepEqual(req.Tags, want) {
		t.Fatalf("expected tags %v, got %v", want, req.Tags)
	}
	if len(req.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(req.Images))
	}
	if req.Images[0].Name != "beach.PNG" || req.Images[1].Name != "notes.bin" {
		t.Fatalf("unexpected image names: %q, %q", req.Images[0].Name, req.Images[1].Name)
	}
	if req.Images[0].ContentType != "image/png" {
		t.Fatalf("expected image/png, got %q", req.Images[0].ContentType)
	}
	body, err := io.ReadAll(req.Images[0].Body)
	if err != nil {
		t.Fatalf("read image body: %v", err)
	}
	if string(body) != "png bytes" {
		t.Fatalf("unexpected image body %q", body)
	}
}

func TestBuildPostWriteRequestMissingImage(t *testing.T) {
	_, closeFiles, err := buildPostWriteRequest(&postWriteOptions{
		password: "pw1",
		images:   []string{filepath.Join(t.TempDir(), "missing.png")},
	})
	closeFiles()
	if err == nil || !strings.Contains(err.Error(), "open image") {
		t.Fatalf("expected open image error, got %v", err)
	}
}

func TestRunPostWriteRejectsBeforeContactingServer(t *testing.T) {
	cfg := &config.Config{APIURL: "http://127.0.0.1:1"}
	jsonOutput := false

	err := runPostWrite(context.Background(), cfg, &postWriteOptions{title: "t"}, &jsonOutput, nil)
	if !errors.Is(err, errMissingPassword) {
		t.Fatalf("expected missing password error, got %v", err)
	}

	tooMany := &postWriteOptions{password: "pw1", images: []string{"1", "2", "3", "4", "5", "6"}}
	err = runPostWrite(context.Background(), cfg, tooMany, &jsonOutput, nil)
	if err == nil || !strings.Contains(err.Error(), "at most 5 images") {
		t.Fatalf("expected image count error, got %v", err)
	}
}

func TestParsePostID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "12", want: 12},
		{input: "#7", want: 7},
		{input: "0", wantErr: true},
		{input: "-3", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parsePostID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePostID(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("parsePostID(%q)=%d want %d", tt.input, got, tt.want)
			}
		})
	}
}
