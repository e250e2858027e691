package domain

import (
	"fmt"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"

	// Legacy statuses still found on imported orders. They count as purchases
	// for review verification but take no part in transitions or timelines.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
)

// ErrUnknownOrderStatus is returned for a status outside the known set.
var ErrUnknownOrderStatus = apperrors.InvalidInput("unknown order status")

// ValidStatuses returns the statuses an order can be moved into.
func ValidStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusPaid,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusRefunded,
	}
}

// IsValidStatus reports whether s is one of ValidStatuses.
func IsValidStatus(s OrderStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// AllowedTransitions returns the targets reachable from s.
func AllowedTransitions(s OrderStatus) []OrderStatus {
	return append([]OrderStatus(nil), allowedTransitions[s]...)
}

// Order is the slice of an order this service needs: identity, owner,
// status, purchased products and milestone timestamps.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Status      OrderStatus `json:"status"`
	ProductIDs  []string    `json:"product_ids,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
	ShippedAt   *time.Time  `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time  `json:"delivered_at,omitempty"`
	CancelledAt *time.Time  `json:"cancelled_at,omitempty"`
}

// CanTransitionTo checks if the order can move to target.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	for _, s := range allowedTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// Transition moves the order to target and stamps the matching milestone if
// it is not already set. Milestones are never cleared or overwritten.
func (o *Order) Transition(target OrderStatus, now time.Time) error {
	if !IsValidStatus(target) {
		return ErrUnknownOrderStatus
	}
	if !o.CanTransitionTo(target) {
		return apperrors.Conflict(fmt.Sprintf("order cannot move from %s to %s", o.Status, target))
	}

	o.Status = target
	o.UpdatedAt = now
	if field := o.milestone(target); field != nil && *field == nil {
		t := now
		*field = &t
	}
	return nil
}

func (o *Order) milestone(s OrderStatus) **time.Time {
	switch s {
	case OrderStatusPaid:
		return &o.PaidAt
	case OrderStatusShipped:
		return &o.ShippedAt
	case OrderStatusDelivered:
		return &o.DeliveredAt
	case OrderStatusCancelled:
		return &o.CancelledAt
	}
	return nil
}
