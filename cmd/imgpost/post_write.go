package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"imgpost/internal/api"
	"imgpost/internal/config"
	"imgpost/internal/models"
)

var errMissingPassword = errors.New("--password is required")

type postWriteOptions struct {
	author   string
	title    string
	content  string
	password string
	tags     []string
	images   []string
	filePath string
}

func newPostCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &postWriteOptions{}
	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a post with up to five images",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.filePath != "" {
				if err := applyMarkdownFile(opts); err != nil {
					return err
				}
			}
			if len(args) > 0 {
				opts.title = strings.Join(args, " ")
			}
			return runPostWrite(cmd.Context(), cfg, opts, jsonOutput, func(ctx context.Context, client *api.Client, req api.PostWriteRequest) (api.PostResponse, error) {
				return client.CreatePost(ctx, req)
			})
		},
	}

	bindPostWriteFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.author, "author", "", "post author")
	cmd.Flags().StringVarP(&opts.filePath, "file", "f", "", "markdown file with YAML front matter")
	return cmd
}

func newPostUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &postWriteOptions{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a post's text and its whole image set",
		Args:  requireExactlyArgs(1, "post id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			return runPostWrite(cmd.Context(), cfg, opts, jsonOutput, func(ctx context.Context, client *api.Client, req api.PostWriteRequest) (api.PostResponse, error) {
				return client.UpdatePost(ctx, id, req)
			})
		},
	}

	bindPostWriteFlags(cmd, opts)
	return cmd
}

func bindPostWriteFlags(cmd *cobra.Command, opts *postWriteOptions) {
	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "post title")
	cmd.Flags().StringVarP(&opts.content, "content", "c", "", "post body")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "post password")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "tag (repeatable or comma separated)")
	cmd.Flags().StringArrayVarP(&opts.images, "image", "i", nil, "image file path (repeatable, at most 5)")
}

type postWriteFunc func(ctx context.Context, client *api.Client, req api.PostWriteRequest) (api.PostResponse, error)

func runPostWrite(ctx context.Context, cfg *config.Config, opts *postWriteOptions, jsonOutput *bool, write postWriteFunc) error {
	if opts.password == "" {
		return errMissingPassword
	}
	if len(opts.images) > models.MaxPostImages {
		return fmt.Errorf("at most %d images are allowed, got %d", models.MaxPostImages, len(opts.images))
	}

	req, closeFiles, err := buildPostWriteRequest(opts)
	if err != nil {
		return err
	}
	defer closeFiles()

	return withClient(cfg, func(client *api.Client) error {
		post, err := write(ctx, client, req)
		if err != nil {
			return err
		}
		if *jsonOutput {
			return writeJSON(post)
		}
		return writePlain("%d\n", post.ID)
	})
}

// buildPostWriteRequest opens every image path. The returned func closes them.
func buildPostWriteRequest(opts *postWriteOptions) (api.PostWriteRequest, func(), error) {
	req := api.PostWriteRequest{
		Author:   opts.author,
		Title:    opts.title,
		Content:  opts.content,
		Password: opts.password,
		Tags:     models.NormalizeTags(opts.tags),
	}

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	for _, path := range opts.images {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return api.PostWriteRequest{}, func() {}, fmt.Errorf("open image: %w", err)
		}
		closers = append(closers, f)
		req.Images = append(req.Images, api.UploadFile{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
			Body:        f,
		})
	}
	return req, closeAll, nil
}
