package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/repository/postgres"
	"github.com/utafrali/storefront/pkg/database"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		Long: `Applies the embedded *.up.sql migrations in order, recording each in
schema_migrations. Already applied migrations are skipped.

With --dry-run the embedded migrations are listed and no database is touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				names, err := database.PendingMigrations(postgres.Migrations())
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}

			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			pool, err := app.OpenPostgres(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.RunMigrations(cmd.Context(), pool, postgres.Migrations(), log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list embedded migrations without connecting")
	return cmd
}
