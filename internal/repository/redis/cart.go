package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const keyPrefix = "cart:"

// CartRepository implements repository.CartRepository using Redis. Writes are
// optimistic: WATCH on the cart keys, then MULTI/EXEC.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// cartKey namespaces user and guest carts apart so equal ids never collide.
func cartKey(owner domain.CartOwner) string {
	return keyPrefix + owner.String()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// load returns the cart stored at key, or nil when the key is absent.
func load(ctx context.Context, c getter, key string) (*domain.Cart, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &cart, nil
}

// Get retrieves the cart of owner from Redis.
func (r *CartRepository) Get(ctx context.Context, owner domain.CartOwner) (_ *domain.Cart, err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemRedis, "cart.get", "GET")
	defer func() { end(err) }()

	cart, err := load(ctx, r.client, cartKey(owner))
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperrors.NotFound("cart", owner.String())
	}
	return cart, nil
}

// SaveIfVersion writes cart only when the stored version matches.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (_ bool, err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemRedis, "cart.save", "WATCH GET MULTI SET EXEC")
	defer func() { end(err) }()

	key := cartKey(cart.Owner())
	saved := false

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		currentVersion := 0
		if current != nil {
			currentVersion = current.Version
		}
		if currentVersion != expectedVersion {
			return nil
		}

		next := *cart
		next.Version = expectedVersion + 1
		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		}); err != nil {
			return err
		}
		cart.Version = next.Version
		saved = true
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis save cart: %w", err)
	}
	return saved, nil
}

// Delete removes the cart of owner.
func (r *CartRepository) Delete(ctx context.Context, owner domain.CartOwner) error {
	if err := r.client.Del(ctx, cartKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

// MergeGuestCart watches both carts, then sets the merged user cart and
// deletes the guest cart in a single MULTI/EXEC.
func (r *CartRepository) MergeGuestCart(ctx context.Context, guestID, userID string, merge repository.MergeFunc) (_ *domain.Cart, _ bool, err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemRedis, "cart.merge", "WATCH GET GET MULTI SET DEL EXEC")
	defer func() { end(err) }()

	guestKey := cartKey(domain.GuestOwner(guestID))
	userKey := cartKey(domain.UserOwner(userID))

	var (
		result     *domain.Cart
		guestFound bool
	)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		result, guestFound = nil, false

		guest, err := load(ctx, tx, guestKey)
		if err != nil {
			return err
		}
		user, err := load(ctx, tx, userKey)
		if err != nil {
			return err
		}
		if guest == nil {
			result = user
			return nil
		}

		merged := merge(user, guest)
		merged.Version = 1
		if user != nil {
			merged.Version = user.Version + 1
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey, data, r.ttl)
			pipe.Del(ctx, guestKey)
			return nil
		}); err != nil {
			return err
		}
		result, guestFound = merged, true
		return nil
	}, guestKey, userKey)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, false, repository.ErrWriteConflict
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis merge carts: %w", err)
	}
	return result, guestFound, nil
}
