package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// DefaultViewSignalWeight is the interest weight a product view adds to each
// of the product's tags.
const DefaultViewSignalWeight = 2

// HistoryConfig tunes the browsing history ledger.
type HistoryConfig struct {
	Limit            int
	ViewSignalWeight float64
}

// HistoryService records product views and feeds them into interests.
type HistoryService struct {
	profiles  repository.ProfileRepository
	products  repository.ProductRepository
	interests *InterestService
	producer  *event.Producer
	logger    *slog.Logger
	cfg       HistoryConfig
	now       func() time.Time
}

// NewHistoryService creates a new browsing history service.
func NewHistoryService(
	profiles repository.ProfileRepository,
	products repository.ProductRepository,
	interests *InterestService,
	producer *event.Producer,
	logger *slog.Logger,
	cfg HistoryConfig,
) *HistoryService {
	if cfg.Limit <= 0 {
		cfg.Limit = domain.DefaultHistoryLimit
	}
	return &HistoryService{
		profiles:  profiles,
		products:  products,
		interests: interests,
		producer:  producer,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordView puts productID at the front of the user's history, then applies
// the product's tags as an auto interest signal. The signal is a separate
// write: if it fails the view stays recorded and no error is returned.
func (s *HistoryService) RecordView(ctx context.Context, userID, productID string) ([]domain.HistoryEntry, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	history := domain.RecordView(profile.BrowsingHistory, productID, s.now(), s.cfg.Limit)
	if err := s.profiles.SaveHistory(ctx, userID, history); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}

	if err := s.producer.PublishProductViewed(ctx, userID, history[0]); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.viewed event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	sig := domain.Signal{Tags: product.Tags, Weight: s.cfg.ViewSignalWeight, Source: domain.SourceAuto}
	if _, err := s.interests.ApplySignal(ctx, userID, sig); err != nil {
		interestSignalFailuresTotal.Inc()
		s.logger.ErrorContext(ctx, "failed to apply view interest signal",
			slog.String("user_id", userID),
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}

	return history, nil
}

// GetBrowsingHistory returns up to limit of the user's most recent views.
// A non-positive limit returns the whole ledger.
func (s *HistoryService) GetBrowsingHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	history := profile.BrowsingHistory
	if limit > 0 && limit < len(history) {
		history = history[:limit]
	}
	return history, nil
}
