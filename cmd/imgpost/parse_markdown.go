package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// postFrontMatter is the YAML header of a post markdown file. Image paths are
// resolved relative to the file.
type postFrontMatter struct {
	Author   string   `yaml:"author"`
	Title    string   `yaml:"title"`
	Password string   `yaml:"password"`
	Tags     []string `yaml:"tags"`
	Images   []string `yaml:"images"`
}

func parseMarkdown(input string) (postFrontMatter, string, error) {
	var front postFrontMatter
	content := input

	lines := strings.Split(input, "\n")
	if len(lines) >= 2 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end == -1 {
			return front, "", fmt.Errorf("front matter not closed")
		}
		frontText := strings.Join(lines[1:end], "\n")
		if err := yaml.Unmarshal([]byte(frontText), &front); err != nil {
			return front, "", fmt.Errorf("parse front matter: %w", err)
		}
		content = strings.Join(lines[end+1:], "\n")
	}

	return front, strings.TrimSpace(content), nil
}

// applyMarkdownFile fills options from a markdown file. Flags given on the
// command line win over front matter.
func applyMarkdownFile(opts *postWriteOptions) error {
	data, err := os.ReadFile(opts.filePath)
	if err != nil {
		return err
	}
	front, body, err := parseMarkdown(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", opts.filePath, err)
	}

	if opts.author == "" {
		opts.author = front.Author
	}
	if opts.title == "" {
		opts.title = front.Title
	}
	if opts.password == "" {
		opts.password = front.Password
	}
	if opts.content == "" {
		opts.content = body
	}
	if len(opts.tags) == 0 {
		opts.tags = front.Tags
	}
	if len(opts.images) == 0 {
		base := filepath.Dir(opts.filePath)
		for _, img := range front.Images {
			img = strings.TrimSpace(img)
			if img == "" {
				continue
			}
			if !filepath.IsAbs(img) {
				img = filepath.Join(base, img)
			}
			opts.images = append(opts.images, img)
		}
	}
	return nil
}
