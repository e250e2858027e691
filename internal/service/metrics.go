package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Merge outcomes reported on cartMergeTotal.
const (
	mergeResultMerged    = "merged"
	mergeResultNoop      = "noop"
	mergeResultExhausted = "exhausted"
	mergeResultError     = "error"
)

var (
	cartMergeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_merge_total",
			Help: "Guest cart merges by outcome",
		},
		[]string{"result"},
	)

	cartMergeRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cart_merge_retries_total",
			Help: "Cart merge attempts repeated after a write conflict",
		},
	)

	interestSignalFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_interest_signal_failures_total",
			Help: "Interest signals from product views that failed to persist",
		},
	)

	reviewsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_reviews_created_total",
			Help: "Reviews created, by verified purchase",
		},
		[]string{"verified"},
	)
)
