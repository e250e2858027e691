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

// ApplySignalInput is the request body for recording an interest signal.
type ApplySignalInput struct {
	Tags   []string `json:"tags"`
	Weight float64  `json:"weight" validate:"gte=0"`
	Source string   `json:"source" validate:"required,oneof=auto manual"`
}

// InterestService maintains per-user tag interest scores.
type InterestService struct {
	profiles repository.ProfileRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewInterestService creates a new interest service.
func NewInterestService(profiles repository.ProfileRepository, producer *event.Producer, logger *slog.Logger) *InterestService {
	return &InterestService{
		profiles: profiles,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ApplySignal folds sig into the user's interests and persists the full set.
// A signal with no usable tags leaves the profile untouched.
func (s *InterestService) ApplySignal(ctx context.Context, userID string, sig domain.Signal) ([]domain.Interest, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if !hasUsableTag(sig.Tags) {
		return domain.SortByScore(profile.Interests), nil
	}

	interests := domain.ApplySignal(profile.Interests, sig, s.now())
	if err := s.profiles.SaveInterests(ctx, userID, interests); err != nil {
		return nil, fmt.Errorf("save interests: %w", err)
	}

	if err := s.producer.PublishInterestsUpdated(ctx, userID, sig, interests); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish interests.updated event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.DebugContext(ctx, "interest signal applied",
		slog.String("user_id", userID),
		slog.Int("tags", len(sig.Tags)),
		slog.Float64("weight", sig.Weight),
		slog.String("source", string(sig.Source)),
	)

	return domain.SortByScore(interests), nil
}

// GetInterests returns the user's interests, highest score first.
func (s *InterestService) GetInterests(ctx context.Context, userID string) ([]domain.Interest, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return domain.SortByScore(profile.Interests), nil
}

// TopInterestTags returns up to n of the user's strongest tags, for use as
// recommendation weights.
func (s *InterestService) TopInterestTags(ctx context.Context, userID string, n int) ([]string, error) {
	interests, err := s.GetInterests(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.TopTags(interests, n), nil
}

func hasUsableTag(tags []string) bool {
	for _, t := range tags {
		if domain.NormalizeTag(t) != "" {
			return true
		}
	}
	return false
}
