package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID retrieves an order together with the ids of the products it contains.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	query := `
		SELECT o.id, o.user_id, o.status, o.created_at, o.updated_at,
		       o.paid_at, o.shipped_at, o.delivered_at, o.cancelled_at,
		       ARRAY(SELECT DISTINCT oi.product_id FROM order_items oi WHERE oi.order_id = o.id ORDER BY oi.product_id)
		FROM orders o
		WHERE o.id = $1`

	ctx, end := database.TraceQuery(ctx, "GetOrder", query)
	defer func() { end(err) }()

	var (
		o      domain.Order
		status string
	)
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.UserID,
		&status,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.PaidAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CancelledAt,
		&o.ProductIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	return &o, nil
}

// FindVerifyingOrder returns the user's newest order containing productID
// whose status is in statuses.
func (r *OrderRepository) FindVerifyingOrder(ctx context.Context, userID, productID string, statuses []domain.OrderStatus) (_ string, err error) {
	query := `
		SELECT o.id
		FROM orders o
		WHERE o.user_id = $1
		  AND o.status = ANY($3)
		  AND EXISTS (
		      SELECT 1 FROM order_items oi
		      WHERE oi.order_id = o.id AND oi.product_id = $2
		  )
		ORDER BY o.created_at DESC
		LIMIT 1`

	ctx, end := database.TraceQuery(ctx, "FindVerifyingOrder", query)
	defer func() { end(err) }()

	var orderID string
	err = r.pool.QueryRow(ctx, query, userID, productID, statusStrings(statuses)).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("find verifying order: %w", err)
	}

	return orderID, nil
}

// UpdateStatus writes the new status and milestones only if the stored status
// is still from. COALESCE keeps milestones that are already set.
func (r *OrderRepository) UpdateStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $2,
		    updated_at = $3,
		    paid_at = COALESCE(paid_at, $4),
		    shipped_at = COALESCE(shipped_at, $5),
		    delivered_at = COALESCE(delivered_at, $6),
		    cancelled_at = COALESCE(cancelled_at, $7)
		WHERE id = $1 AND status = $8`

	tag, err := r.pool.Exec(ctx, query,
		order.ID,
		string(order.Status),
		order.UpdatedAt,
		order.PaidAt,
		order.ShippedAt,
		order.DeliveredAt,
		order.CancelledAt,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrWriteConflict
	}

	return nil
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
