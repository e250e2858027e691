package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRatingAggregate_Add(t *testing.T) {
	got := RatingAggregate{Rating: 4.0, ReviewCount: 2}.Add(5)
	assert.Equal(t, RatingAggregate{Rating: 4.33, ReviewCount: 3}, got)
}

func TestRatingAggregate_AddToEmpty(t *testing.T) {
	assert.Equal(t, RatingAggregate{Rating: 3, ReviewCount: 1}, RatingAggregate{}.Add(3))
}

func TestRatingAggregate_RepeatedAddStaysNearTrueMean(t *testing.T) {
	ratings := []int{5, 4, 1, 3, 5, 2, 4, 4, 5, 1, 3, 3, 2, 5, 4}
	var agg RatingAggregate
	for _, r := range ratings {
		agg = agg.Add(r)
	}
	exact := RecomputeAggregate(ratings)
	assert.Equal(t, len(ratings), agg.ReviewCount)
	assert.InDelta(t, exact.Rating, agg.Rating, 0.05)
	assert.GreaterOrEqual(t, agg.Rating, 1.0)
	assert.LessOrEqual(t, agg.Rating, 5.0)
}

func TestRecomputeAggregate(t *testing.T) {
	assert.Equal(t, RatingAggregate{}, RecomputeAggregate(nil))
	assert.Equal(t, RatingAggregate{Rating: 3.67, ReviewCount: 3}, RecomputeAggregate([]int{5, 4, 2}))
}

func TestRound2_HalfUp(t *testing.T) {
	assert.Equal(t, 2.68, Round2(decimal.RequireFromString("2.675")))
	assert.Equal(t, 4.33, Round2(decimal.RequireFromString("4.3333333")))
}

func TestReview_Verify(t *testing.T) {
	r := &Review{}
	r.Verify("order-1")
	assert.True(t, r.IsVerifiedPurchase)
	assert.Equal(t, "order-1", r.OrderID)
	assert.Equal(t, ReviewStatusApproved, r.Status)

	r = &Review{}
	r.Verify("")
	assert.False(t, r.IsVerifiedPurchase)
	assert.Equal(t, ReviewStatusPending, r.Status)
}

func TestVerifyingOrderStatuses(t *testing.T) {
	assert.ElementsMatch(t, []OrderStatus{
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusPaid, OrderStatusShipped, OrderStatusFulfilled,
	}, VerifyingOrderStatuses())
}

func TestIsValidReviewStatus(t *testing.T) {
	assert.True(t, IsValidReviewStatus(ReviewStatusReported))
	assert.False(t, IsValidReviewStatus("HIDDEN"))
}
