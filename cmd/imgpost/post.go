package main

import (
	"github.com/spf13/cobra"

	"imgpost/internal/api"
	"imgpost/internal/config"
)

func newPostCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create, show, update and delete posts",
	}

	cmd.AddCommand(
		newPostListCmd(cfg, jsonOutput),
		newPostShowCmd(cfg, jsonOutput),
		newPostCreateCmd(cfg, jsonOutput),
		newPostUpdateCmd(cfg, jsonOutput),
		newPostDeleteCmd(cfg, jsonOutput),
	)
	return cmd
}

func newPostListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				posts, err := client.ListPosts(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(posts)
				}
				return writePostList(posts)
			})
		},
	}
}

func newPostShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one post",
		Args:  requireExactlyArgs(1, "post id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				post, err := client.GetPost(cmd.Context(), id)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(post)
				}
				return writePostDetail(post)
			})
		},
	}
}

func newPostDeleteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post and its images",
		Args:  requireExactlyArgs(1, "post id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			if password == "" {
				return errMissingPassword
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.DeletePost(cmd.Context(), id, password)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("deleted %d\n", resp.ID)
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "post password")
	return cmd
}
