package main

import (
	"time"

	"github.com/spf13/cobra"

	"imgpost/internal/api"
	"imgpost/internal/config"
)

func newSweepCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var apply bool
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Find and optionally delete image blobs no post references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Sweep(cmd.Context(), apply, grace)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}

				if resp.DryRun {
					_ = writePlain("dry run: %d orphaned blob(s), %d bytes reclaimable\n", resp.CandidateCount, resp.ReclaimedBytes)
				} else {
					_ = writePlain("deleted %d of %d orphaned blob(s), %d bytes reclaimed\n", resp.DeletedCount, resp.CandidateCount, resp.ReclaimedBytes)
				}
				for _, locator := range resp.Candidates {
					_ = writePlain("  %s\n", locator)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete the orphaned blobs instead of only listing them")
	cmd.Flags().DurationVar(&grace, "grace", 0, "skip blobs younger than this (default: server sweep.grace)")
	return cmd
}
