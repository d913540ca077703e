package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/watthive/eflengine/internal/config"
	"github.com/watthive/eflengine/internal/migrate"
)

func migrateCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(action func(context.Context, string, string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return action(cmd.Context(), cfg.DB.Driver, cfg.DB.DSN)
		}
	}

	root.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", RunE: run(migrate.Up)},
		&cobra.Command{Use: "down", Short: "Roll back the most recent migration", RunE: run(migrate.Down)},
		&cobra.Command{Use: "status", Short: "Print migration status", RunE: run(migrate.Status)},
	)
	return root
}
