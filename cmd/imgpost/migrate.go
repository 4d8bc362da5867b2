package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgpost/internal/config"
	"imgpost/internal/store"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			db, err := store.OpenRaw(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if !dryRun {
				if err := store.ApplyMigrations(db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}

			plan, err := store.MigrationPlan(db)
			if err != nil {
				return fmt.Errorf("inspect migrations: %w", err)
			}
			if *jsonOutput {
				return writeJSON(plan)
			}

			_ = writePlain("Current version: %d\n", plan.CurrentVersion)
			_ = writePlain("Available version: %d\n", plan.AvailableVersion)
			if len(plan.Pending) == 0 {
				if dryRun {
					return writePlain("No pending migrations.\n")
				}
				return writePlain("Migrations applied successfully.\n")
			}
			_ = writePlain("Pending migrations: %d\n", len(plan.Pending))
			for _, m := range plan.Pending {
				_ = writePlain("  %d: %s\n", m.Version, m.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	return cmd
}
