package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// UpdateStatusInput is the request body for an order status change.
type UpdateStatusInput struct {
	Status string `json:"status" validate:"required"`
}

// TimelineResult is an order's status projected onto the progress steps.
type TimelineResult struct {
	OrderID string                `json:"order_id"`
	Status  domain.OrderStatus    `json:"status"`
	Steps   []domain.TimelineStep `json:"steps"`
}

// OrderService exposes order status changes and the order timeline.
type OrderService struct {
	repo     repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, producer *event.Producer, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrderTimeline loads the order and builds its timeline. When userID is
// set the order must belong to that user.
func (s *OrderService) GetOrderTimeline(ctx context.Context, orderID, userID string) (*TimelineResult, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if userID != "" && order.UserID != userID {
		return nil, apperrors.Unauthorized("order does not belong to the current user")
	}

	steps, err := domain.BuildTimeline(order)
	if err != nil {
		return nil, err
	}

	return &TimelineResult{
		OrderID: order.ID,
		Status:  order.Status,
		Steps:   steps,
	}, nil
}

// UpdateOrderStatus moves the order to target if the transition table allows
// it and stamps the matching milestone once.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}
	if !domain.IsValidStatus(target) {
		return nil, domain.ErrUnknownOrderStatus
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	from := order.Status
	if err := order.Transition(target, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, order, from); err != nil {
		if errors.Is(err, repository.ErrWriteConflict) {
			return nil, apperrors.Conflict("order status changed concurrently, please retry")
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := s.producer.PublishOrderStatusChanged(ctx, order, from); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", orderID),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
	)

	return order, nil
}
