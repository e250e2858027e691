package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "PENDING"
	ReviewStatusApproved ReviewStatus = "APPROVED"
	ReviewStatusRejected ReviewStatus = "REJECTED"
	ReviewStatusReported ReviewStatus = "REPORTED"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// IsValidReviewStatus reports whether s is a known moderation state.
func IsValidReviewStatus(s ReviewStatus) bool {
	switch s {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected, ReviewStatusReported:
		return true
	}
	return false
}

// Review represents a product review submitted by a user. At most one review
// exists per (ProductID, UserID); IsVerifiedPurchase never changes after
// creation.
type Review struct {
	ID                 string           `json:"id"`
	ProductID          string           `json:"product_id"`
	UserID             string           `json:"user_id"`
	OrderID            string           `json:"order_id,omitempty"`
	Rating             int              `json:"rating"`
	Title              string           `json:"title,omitempty"`
	Content            string           `json:"content"`
	VariantSnapshot    *VariantSnapshot `json:"variant_snapshot,omitempty"`
	IsVerifiedPurchase bool             `json:"is_verified_purchase"`
	Status             ReviewStatus     `json:"status"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// verifyingStatuses are the order states that prove a purchase.
var verifyingStatuses = []OrderStatus{
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusFulfilled,
}

// VerifyingOrderStatuses returns the order statuses that mark a review as a
// verified purchase.
func VerifyingOrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), verifyingStatuses...)
}

// Verify marks the review as verified against orderID, or as unverified when
// orderID is empty, and sets the initial moderation status accordingly.
func (r *Review) Verify(orderID string) {
	r.OrderID = orderID
	r.IsVerifiedPurchase = orderID != ""
	if r.IsVerifiedPurchase {
		r.Status = ReviewStatusApproved
	} else {
		r.Status = ReviewStatusPending
	}
}

// RatingAggregate is the denormalized rating summary stored on a product.
type RatingAggregate struct {
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

// Add folds one more rating into the running average:
// round2((rating*count + r) / (count+1)).
func (a RatingAggregate) Add(rating int) RatingAggregate {
	count := decimal.NewFromInt(int64(a.ReviewCount))
	newCount := a.ReviewCount + 1

	avg := decimal.NewFromFloat(a.Rating).
		Mul(count).
		Add(decimal.NewFromInt(int64(rating))).
		Div(decimal.NewFromInt(int64(newCount)))

	return RatingAggregate{Rating: Round2(avg), ReviewCount: newCount}
}

// RecomputeAggregate rebuilds an aggregate from scratch. Only the
// reconciliation job uses it; the request path always calls Add.
func RecomputeAggregate(ratings []int) RatingAggregate {
	if len(ratings) == 0 {
		return RatingAggregate{}
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r)))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(ratings))))
	return RatingAggregate{Rating: Round2(avg), ReviewCount: len(ratings)}
}

// Round2 rounds d half away from zero to two decimal places.
func Round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
