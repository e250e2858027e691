package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/repository/postgres"
	"github.com/utafrali/storefront/internal/service"
)

func newReconcileRatingsCmd(root *rootOptions) *cobra.Command {
	var (
		productIDs []string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "reconcile-ratings",
		Short: "Recompute product rating aggregates from stored reviews",
		Long: `Recomputes rating and review_count of each product from all of its
reviews and stores the result, correcting drift left by the running average.

Without --product every product is checked. The report is written to stdout
as JSON.`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if workers < 1 {
				return fmt.Errorf("--workers must be at least 1, got %d", workers)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			pool, err := app.OpenPostgres(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := service.NewReconcileService(
				postgres.NewProductRepository(pool),
				postgres.NewReviewRepository(pool),
				log,
			)
			report, err := svc.ReconcileRatings(cmd.Context(), productIDs, workers)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d products could not be reconciled", len(report.Failed), report.Checked)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&productIDs, "product", nil, "product id to reconcile (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", service.DefaultReconcileWorkers, "products recomputed concurrently")
	return cmd
}
