package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

// DefaultReconcileWorkers is the number of products recomputed concurrently.
const DefaultReconcileWorkers = 4

// ProductDrift records a product whose stored aggregate differed from the
// recomputed one.
type ProductDrift struct {
	ProductID string                 `json:"product_id"`
	Before    domain.RatingAggregate `json:"before"`
	After     domain.RatingAggregate `json:"after"`
}

// ReconcileReport summarizes a reconciliation run.
type ReconcileReport struct {
	Checked   int            `json:"checked"`
	Corrected int            `json:"corrected"`
	Failed    []string       `json:"failed,omitempty"`
	Drift     []ProductDrift `json:"drift,omitempty"`
}

// ReconcileService rebuilds product rating aggregates from stored reviews to
// correct drift accumulated by the incremental running average.
type ReconcileService struct {
	products repository.ProductRepository
	reviews  repository.ReviewRepository
	logger   *slog.Logger
}

// NewReconcileService creates a new rating reconciliation service.
func NewReconcileService(products repository.ProductRepository, reviews repository.ReviewRepository, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		products: products,
		reviews:  reviews,
		logger:   logger,
	}
}

// ReconcileRatings recomputes the aggregate of each product in productIDs, or
// of every product when productIDs is empty. A failing product is reported
// and skipped; only cancellation aborts the run.
func (s *ReconcileService) ReconcileRatings(ctx context.Context, productIDs []string, workers int) (*ReconcileReport, error) {
	if len(productIDs) == 0 {
		ids, err := s.products.ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		productIDs = ids
	}
	if workers <= 0 {
		workers = DefaultReconcileWorkers
	}

	var (
		mu     sync.Mutex
		report = &ReconcileReport{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, id := range productIDs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			before, after, err := s.reviews.Reaggregate(gctx, id, domain.RecomputeAggregate)

			mu.Lock()
			defer mu.Unlock()
			report.Checked++

			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				report.Failed = append(report.Failed, id)
				s.logger.ErrorContext(gctx, "failed to reconcile product rating",
					slog.String("product_id", id),
					slog.String("error", err.Error()),
				)
				return nil
			}

			if before != after {
				report.Corrected++
				report.Drift = append(report.Drift, ProductDrift{ProductID: id, Before: before, After: after})
				s.logger.InfoContext(gctx, "product rating corrected",
					slog.String("product_id", id),
					slog.Float64("rating_before", before.Rating),
					slog.Float64("rating_after", after.Rating),
					slog.Int("count_before", before.ReviewCount),
					slog.Int("count_after", after.ReviewCount),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconcile ratings: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reconcile ratings: %w", err)
	}

	sort.Strings(report.Failed)
	sort.Slice(report.Drift, func(i, j int) bool { return report.Drift[i].ProductID < report.Drift[j].ProductID })

	s.logger.InfoContext(ctx, "rating reconciliation finished",
		slog.Int("checked", report.Checked),
		slog.Int("corrected", report.Corrected),
		slog.Int("failed", len(report.Failed)),
	)

	return report, nil
}
