package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	ProductID       string                  `json:"-"`
	UserID          string                  `json:"-"`
	Rating          int                     `json:"rating" validate:"required,min=1,max=5"`
	Title           string                  `json:"title" validate:"max=200"`
	Content         string                  `json:"content" validate:"required,notblank,max=5000"`
	VariantSnapshot *domain.VariantSnapshot `json:"variant_snapshot"`
}

// ModerateReviewInput is the request body for a moderation decision.
type ModerateReviewInput struct {
	Status string `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED REPORTED"`
}

// ReviewListResult contains reviews and the product's rating aggregate.
type ReviewListResult struct {
	Reviews    []domain.Review        `json:"reviews"`
	Summary    domain.RatingAggregate `json:"summary"`
	TotalCount int                    `json:"total_count"`
	Page       int                    `json:"page"`
	PerPage    int                    `json:"per_page"`
	TotalPages int                    `json:"total_pages"`
}

// ReviewService implements the business logic for review operations.
type ReviewService struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		orders:   orders,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateReview verifies the purchase, stores the review and folds its rating
// into the product aggregate in one transaction.
func (s *ReviewService) CreateReview(ctx context.Context, input CreateReviewInput) (*domain.Review, error) {
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if input.UserID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input.Rating < domain.MinRating || input.Rating > domain.MaxRating {
		return nil, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	orderID, err := s.orders.FindVerifyingOrder(ctx, input.UserID, input.ProductID, domain.VerifyingOrderStatuses())
	if err != nil {
		return nil, fmt.Errorf("verify purchase: %w", err)
	}

	now := s.now()
	review := &domain.Review{
		ID:              uuid.New().String(),
		ProductID:       input.ProductID,
		UserID:          input.UserID,
		Rating:          input.Rating,
		Title:           input.Title,
		Content:         input.Content,
		VariantSnapshot: input.VariantSnapshot,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	review.Verify(orderID)

	agg, err := s.reviews.CreateWithAggregate(ctx, review, func(current domain.RatingAggregate) domain.RatingAggregate {
		return current.Add(review.Rating)
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	reviewsCreatedTotal.WithLabelValues(strconv.FormatBool(review.IsVerifiedPurchase)).Inc()

	if err := s.producer.PublishReviewCreated(ctx, review, agg); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.Int("rating", review.Rating),
		slog.Bool("verified_purchase", review.IsVerifiedPurchase),
		slog.Float64("product_rating", agg.Rating),
		slog.Int("product_review_count", agg.ReviewCount),
	)

	return review, nil
}

// ListReviews returns approved reviews for a product, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, productID string, page, perPage int) (*ReviewListResult, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	p := pagination.Normalize(page, perPage)

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	reviews, total, err := s.reviews.List(ctx, repository.ReviewFilter{
		ProductID: productID,
		Statuses:  []domain.ReviewStatus{domain.ReviewStatusApproved},
		Page:      p.Page,
		PerPage:   p.PerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	return &ReviewListResult{
		Reviews:    reviews,
		Summary:    product.Aggregate(),
		TotalCount: total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages(total),
	}, nil
}

// ModerateReview sets a review's moderation status. The product aggregate
// already counts every review from creation and is left as is.
func (s *ReviewService) ModerateReview(ctx context.Context, reviewID string, status domain.ReviewStatus) (*domain.Review, error) {
	if reviewID == "" {
		return nil, apperrors.InvalidInput("review id is required")
	}
	if !domain.IsValidReviewStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown review status %q", status))
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if review.Status == status {
		return review, nil
	}

	now := s.now()
	if err := s.reviews.UpdateStatus(ctx, reviewID, status, now); err != nil {
		return nil, fmt.Errorf("update review status: %w", err)
	}

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("review_id", reviewID),
		slog.String("from", string(review.Status)),
		slog.String("to", string(status)),
	)

	review.Status = status
	review.UpdatedAt = now
	return review, nil
}
