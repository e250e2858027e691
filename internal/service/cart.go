package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single cart item.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct items allowed in a cart.
	MaxItemsPerCart = 50
	// MaxPriceCents is the maximum price in cents (100,000.00) allowed per item.
	MaxPriceCents = 100_000_00
)

const (
	defaultCurrency = "USD"
	maxMergeBackoff = time.Second
)

// AddItemInput holds the parameters for adding an item to the cart.
type AddItemInput struct {
	ProductID       string                  `json:"product_id" validate:"required,notblank"`
	VariantID       string                  `json:"variant_id"`
	VariantSnapshot *domain.VariantSnapshot `json:"variant_snapshot"`
	Name            string                  `json:"name" validate:"required"`
	SKU             string                  `json:"sku"`
	Price           int64                   `json:"price" validate:"gte=0"`
	Quantity        int                     `json:"quantity" validate:"required,gte=1"`
	ImageURL        string                  `json:"image_url"`
}

// UpdateQuantityInput holds the parameters for updating an item quantity.
type UpdateQuantityInput struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// CartConfig tunes cart lifetime and guest cart merging.
type CartConfig struct {
	TTL time.Duration
	// MaxQuantityPerLine caps a merged line's quantity. Zero means no cap.
	MaxQuantityPerLine int
	MergeMaxAttempts   int
	MergeBaseBackoff   time.Duration
}

// DefaultCartConfig returns the production cart settings.
func DefaultCartConfig() CartConfig {
	return CartConfig{
		TTL:                7 * 24 * time.Hour,
		MaxQuantityPerLine: MaxQuantityPerItem,
		MergeMaxAttempts:   3,
		MergeBaseBackoff:   20 * time.Millisecond,
	}
}

// CartService implements the business logic for cart operations.
type CartService struct {
	repo     repository.CartRepository
	producer *event.Producer
	logger   *slog.Logger
	cfg      CartConfig
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, producer *event.Producer, logger *slog.Logger, cfg CartConfig) *CartService {
	if cfg.MergeMaxAttempts <= 0 {
		cfg.MergeMaxAttempts = 1
	}
	return &CartService{
		repo:     repo,
		producer: producer,
		logger:   logger,
		cfg:      cfg,
	}
}

// GetCart retrieves the cart of owner. If no cart exists, returns an empty cart.
func (s *CartService) GetCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.getOrCreateCart(ctx, owner)
}

// AddItem adds an item to the cart. If the same product+variant exists, it merges by increasing quantity.
// Uses optimistic locking to prevent race conditions on concurrent cart modifications.
func (s *CartService) AddItem(ctx context.Context, owner domain.CartOwner, input AddItemInput) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if input.Quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}
	if input.Price > MaxPriceCents {
		return nil, apperrors.InvalidInput(fmt.Sprintf("price must not exceed %d cents", MaxPriceCents))
	}

	cart, err := s.getOrCreateCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	expectedVersion := cart.Version

	if i := cart.FindItemIndex(input.ProductID, input.VariantID); i >= 0 {
		newQty := cart.Items[i].Quantity + input.Quantity
		if newQty > MaxQuantityPerItem {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
		cart.Items[i].Quantity = newQty
		cart.Items[i].Price = input.Price
		cart.Items[i].Name = input.Name
		cart.Items[i].SKU = input.SKU
		cart.Items[i].ImageURL = input.ImageURL
		if input.VariantSnapshot != nil {
			cart.Items[i].VariantSnapshot = input.VariantSnapshot
		}
	} else {
		if len(cart.Items) >= MaxItemsPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:       input.ProductID,
			VariantID:       input.VariantID,
			VariantSnapshot: input.VariantSnapshot,
			Name:            input.Name,
			SKU:             input.SKU,
			Price:           input.Price,
			Quantity:        input.Quantity,
			ImageURL:        input.ImageURL,
		})
	}

	if err := s.save(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("owner", owner.String()),
		slog.String("product_id", input.ProductID),
		slog.String("variant_id", input.VariantID),
		slog.Int("quantity", input.Quantity),
	)

	return cart, nil
}

// UpdateItemQuantity updates the quantity of an item in the cart. If quantity is 0, the item is removed.
func (s *CartService) UpdateItemQuantity(ctx context.Context, owner domain.CartOwner, productID, variantID string, quantity int) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must not be negative")
	}
	if quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	cart, err := s.repo.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart for update: %w", err)
	}

	expectedVersion := cart.Version

	i := cart.FindItemIndex(productID, variantID)
	if i < 0 {
		return nil, apperrors.NotFound("cart item", productID+"/"+variantID)
	}
	if quantity == 0 {
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	} else {
		cart.Items[i].Quantity = quantity
	}

	if err := s.save(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("owner", owner.String()),
		slog.String("product_id", productID),
		slog.String("variant_id", variantID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// RemoveItem removes a specific item from the cart.
func (s *CartService) RemoveItem(ctx context.Context, owner domain.CartOwner, productID, variantID string) (*domain.Cart, error) {
	return s.UpdateItemQuantity(ctx, owner, productID, variantID, 0)
}

// ClearCart removes the whole cart.
func (s *CartService) ClearCart(ctx context.Context, owner domain.CartOwner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, owner); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("owner", owner.String()),
	)

	return nil
}

// MergeGuestCartIntoUser folds the guest's cart into the user's cart and
// deletes the guest cart, atomically. Lines for the same product and variant
// have their quantities summed up to MaxQuantityPerLine. Write conflicts,
// timeouts and dropped connections are retried with exponential backoff;
// when attempts run out a transient error is returned.
//
// Every guest line is kept, so the merged cart may hold more than
// MaxItemsPerCart lines. Such a cart still accepts quantity changes and
// removals; AddItem refuses new lines until it is back under the limit. Merging again after success finds no guest cart and returns
// the user's cart unchanged.
func (s *CartService) MergeGuestCartIntoUser(ctx context.Context, guestID, userID string) (*domain.Cart, error) {
	if guestID == "" {
		return nil, apperrors.InvalidInput("guest id is required")
	}
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	merge := s.mergeFunc(userID)

	var lastErr error
	for attempt := 0; attempt < s.cfg.MergeMaxAttempts; attempt++ {
		if attempt > 0 {
			cartMergeRetriesTotal.Inc()
			if err := sleepCtx(ctx, s.mergeBackoff(attempt)); err != nil {
				return nil, err
			}
		}

		cart, merged, err := s.repo.MergeGuestCart(ctx, guestID, userID, merge)
		if errors.Is(err, repository.ErrWriteConflict) || database.IsTransient(err) {
			lastErr = err
			s.logger.WarnContext(ctx, "cart merge hit a transient store error, retrying",
				slog.String("guest_id", guestID),
				slog.String("user_id", userID),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err != nil {
			cartMergeTotal.WithLabelValues(mergeResultError).Inc()
			return nil, fmt.Errorf("merge guest cart: %w", err)
		}

		if !merged {
			cartMergeTotal.WithLabelValues(mergeResultNoop).Inc()
			if cart == nil {
				cart = s.newEmptyCart(domain.UserOwner(userID))
			}
			return cart, nil
		}

		cartMergeTotal.WithLabelValues(mergeResultMerged).Inc()
		if len(cart.Items) > MaxItemsPerCart {
			s.logger.WarnContext(ctx, "merged cart exceeds item limit",
				slog.String("user_id", userID),
				slog.Int("lines", len(cart.Items)),
				slog.Int("limit", MaxItemsPerCart),
			)
		}

		if err := s.producer.PublishCartMerged(ctx, guestID, cart); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.merged event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}

		s.logger.InfoContext(ctx, "guest cart merged",
			slog.String("guest_id", guestID),
			slog.String("user_id", userID),
			slog.Int("lines", len(cart.Items)),
			slog.Int("attempts", attempt+1),
		)
		return cart, nil
	}

	cartMergeTotal.WithLabelValues(mergeResultExhausted).Inc()
	s.logger.ErrorContext(ctx, "cart merge gave up after repeated transient errors",
		slog.String("guest_id", guestID),
		slog.String("user_id", userID),
		slog.Int("attempts", s.cfg.MergeMaxAttempts),
	)
	if errors.Is(lastErr, repository.ErrWriteConflict) {
		return nil, apperrors.Transient("cart is being modified concurrently, please retry", lastErr)
	}
	return nil, apperrors.Transient("cart store is temporarily unavailable, please retry", lastErr)
}

// mergeBackoff doubles the base wait for each further attempt, up to maxMergeBackoff.
func (s *CartService) mergeBackoff(attempt int) time.Duration {
	if attempt > 20 {
		return maxMergeBackoff
	}
	d := s.cfg.MergeBaseBackoff << (attempt - 1)
	if d <= 0 || d > maxMergeBackoff {
		return maxMergeBackoff
	}
	return d
}

// mergeFunc builds the user's post-merge cart without touching its inputs.
func (s *CartService) mergeFunc(userID string) repository.MergeFunc {
	return func(user, guest *domain.Cart) *domain.Cart {
		var out domain.Cart
		if user != nil {
			out = *user
		} else {
			out = *s.newEmptyCart(domain.UserOwner(userID))
			if guest.Currency != "" {
				out.Currency = guest.Currency
			}
		}

		out.Items = domain.MergeLines(out.Items, guest.Items, s.cfg.MaxQuantityPerLine)

		now := time.Now().UTC()
		out.UpdatedAt = now
		out.ExpiresAt = now.Add(s.cfg.TTL)
		return &out
	}
}

// save stamps the cart and writes it if nobody else has since it was read.
func (s *CartService) save(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	now := time.Now().UTC()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.cfg.TTL)

	ok, err := s.repo.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return apperrors.Conflict("cart was modified concurrently, please retry")
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("owner", cart.Owner().String()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// getOrCreateCart retrieves the cart of owner, creating an empty one if it does not exist.
func (s *CartService) getOrCreateCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(owner), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// newEmptyCart creates a new empty cart for owner.
func (s *CartService) newEmptyCart(owner domain.CartOwner) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:        uuid.New().String(),
		UserID:    owner.UserID,
		GuestID:   owner.GuestID,
		Items:     []domain.CartItem{},
		Currency:  defaultCurrency,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
