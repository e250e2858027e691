package repository

import (
	"context"
	"errors"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// ErrWriteConflict reports that an optimistic write lost a race: a watched
// key or row changed between read and write. Callers may retry.
var ErrWriteConflict = errors.New("write conflict")

// MergeFunc computes the user's cart after folding guest into it. user is nil
// when the user has no cart yet.
type MergeFunc func(user, guest *domain.Cart) *domain.Cart

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves the cart of owner. Returns a NotFound error if absent.
	Get(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)

	// SaveIfVersion stores cart only if the stored version still equals
	// expectedVersion (0 meaning no cart is stored). On success cart.Version
	// is set to expectedVersion+1. Returns false on a lost race.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)

	// Delete removes the cart of owner. Deleting a missing cart is not an error.
	Delete(ctx context.Context, owner domain.CartOwner) error

	// MergeGuestCart makes one atomic attempt to write merge(user, guest) as
	// the user's cart and delete the guest cart. When no guest cart exists it
	// writes nothing and returns the user's cart (nil if none) with
	// guestFound=false. Returns ErrWriteConflict if either cart changed
	// during the attempt.
	MergeGuestCart(ctx context.Context, guestID, userID string, merge MergeFunc) (cart *domain.Cart, guestFound bool, err error)
}

// ProfileRepository persists the per-user recommendation document.
type ProfileRepository interface {
	// Get returns the profile of userID or a NotFound error.
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)

	// SaveInterests replaces the interest set. NotFound if the user is unknown.
	SaveInterests(ctx context.Context, userID string, interests []domain.Interest) error

	// SaveHistory replaces the browsing history. NotFound if the user is unknown.
	SaveHistory(ctx context.Context, userID string, history []domain.HistoryEntry) error
}

// ProductRepository reads the catalog projection.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// ListIDs returns every product id, ordered.
	ListIDs(ctx context.Context) ([]string, error)
}

// OrderRepository defines the order operations this service needs.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// FindVerifyingOrder returns the id of the user's most recent order that
	// contains productID and has one of statuses, or "" when there is none.
	FindVerifyingOrder(ctx context.Context, userID, productID string, statuses []domain.OrderStatus) (string, error)

	// UpdateStatus persists order.Status and its milestones, provided the
	// stored status still equals from. Milestones already stored are kept.
	// Returns ErrWriteConflict if the status changed concurrently.
	UpdateStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error
}

// AggregateFunc derives the product's new aggregate from its current one.
type AggregateFunc func(current domain.RatingAggregate) domain.RatingAggregate

// ReviewFilter selects reviews for listing.
type ReviewFilter struct {
	ProductID string
	Statuses  []domain.ReviewStatus
	Page      int
	PerPage   int
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// CreateWithAggregate inserts review and updates the product aggregate to
	// update(current) in one transaction holding the product row lock.
	// Returns NotFound for an unknown product and Conflict when the user has
	// already reviewed the product.
	CreateWithAggregate(ctx context.Context, review *domain.Review, update AggregateFunc) (domain.RatingAggregate, error)

	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// List returns one page of reviews and the total matching count.
	List(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)

	UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus, at time.Time) error

	// Reaggregate recomputes a product's aggregate from all of its reviews
	// under the product row lock and stores it.
	Reaggregate(ctx context.Context, productID string, compute func(ratings []int) domain.RatingAggregate) (before, after domain.RatingAggregate, err error)
}
