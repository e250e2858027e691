package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const reviewColumns = `id, product_id, user_id, order_id, rating, title, content, variant_snapshot,
		       is_verified_purchase, status, created_at, updated_at`

// ReviewRepository implements review persistence operations using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

var errDuplicateReview = apperrors.Conflict("user has already reviewed this product")

// CreateWithAggregate inserts the review and moves the product aggregate in
// one transaction. The product row is locked first so concurrent reviews of
// the same product serialize on it.
func (r *ReviewRepository) CreateWithAggregate(ctx context.Context, review *domain.Review, update repository.AggregateFunc) (_ domain.RatingAggregate, err error) {
	ctx, end := database.TraceQuery(ctx, "CreateReviewWithAggregate", "BEGIN; SELECT ... FOR UPDATE; INSERT INTO reviews; UPDATE products; COMMIT")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := lockAggregate(ctx, tx, review.ProductID)
	if err != nil {
		return domain.RatingAggregate{}, err
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE product_id = $1 AND user_id = $2)`,
		review.ProductID, review.UserID,
	).Scan(&exists); err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return domain.RatingAggregate{}, errDuplicateReview
	}

	snapshot, err := marshalSnapshot(review.VariantSnapshot)
	if err != nil {
		return domain.RatingAggregate{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reviews (id, product_id, user_id, order_id, rating, title, content, variant_snapshot,
		                     is_verified_purchase, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		review.ID,
		review.ProductID,
		review.UserID,
		nullString(review.OrderID),
		review.Rating,
		review.Title,
		review.Content,
		snapshot,
		review.IsVerifiedPurchase,
		string(review.Status),
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		// Lost a race with another insert for the same (product, user).
		if database.IsUniqueViolation(err) {
			return domain.RatingAggregate{}, errDuplicateReview
		}
		return domain.RatingAggregate{}, fmt.Errorf("insert review: %w", err)
	}

	next := update(current)
	if err := storeAggregate(ctx, tx, review.ProductID, next, review.CreatedAt); err != nil {
		return domain.RatingAggregate{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("commit review tx: %w", err)
	}

	return next, nil
}

// GetByID retrieves a single review.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// List returns paginated reviews for a product along with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}

	query := `
		SELECT ` + reviewColumns + `,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE product_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, filter.ProductID, statuses, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    = []domain.Review{}
		totalCount int
	)
	for rows.Next() {
		var (
			rv       domain.Review
			orderID  *string
			snapshot []byte
			status   string
		)
		if err := rows.Scan(
			&rv.ID, &rv.ProductID, &rv.UserID, &orderID, &rv.Rating, &rv.Title, &rv.Content, &snapshot,
			&rv.IsVerifiedPurchase, &status, &rv.CreatedAt, &rv.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		if err := fillReview(&rv, orderID, snapshot, status); err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, totalCount, nil
}

// UpdateStatus changes the moderation status of a review.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE reviews SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// Reaggregate rebuilds a product's aggregate from every stored review.
func (r *ReviewRepository) Reaggregate(ctx context.Context, productID string, compute func([]int) domain.RatingAggregate) (before, after domain.RatingAggregate, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return before, after, fmt.Errorf("begin reaggregate tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	before, err = lockAggregate(ctx, tx, productID)
	if err != nil {
		return before, after, err
	}

	rows, err := tx.Query(ctx, `SELECT rating FROM reviews WHERE product_id = $1`, productID)
	if err != nil {
		return before, after, fmt.Errorf("load ratings: %w", err)
	}
	ratings := []int{}
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			rows.Close()
			return before, after, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return before, after, fmt.Errorf("iterate ratings: %w", err)
	}

	after = compute(ratings)
	if err := storeAggregate(ctx, tx, productID, after, time.Now().UTC()); err != nil {
		return before, after, err
	}

	if err := tx.Commit(ctx); err != nil {
		return before, after, fmt.Errorf("commit reaggregate tx: %w", err)
	}
	return before, after, nil
}

func lockAggregate(ctx context.Context, tx pgx.Tx, productID string) (domain.RatingAggregate, error) {
	var agg domain.RatingAggregate
	err := tx.QueryRow(ctx,
		`SELECT rating, review_count FROM products WHERE id = $1 FOR UPDATE`,
		productID,
	).Scan(&agg.Rating, &agg.ReviewCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return agg, apperrors.NotFound("product", productID)
		}
		return agg, fmt.Errorf("lock product aggregate: %w", err)
	}
	return agg, nil
}

func storeAggregate(ctx context.Context, tx pgx.Tx, productID string, agg domain.RatingAggregate, at time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE products SET rating = $2, review_count = $3, updated_at = $4 WHERE id = $1`,
		productID, agg.Rating, agg.ReviewCount, at,
	)
	if err != nil {
		return fmt.Errorf("update product aggregate: %w", err)
	}
	return nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var (
		rv       domain.Review
		orderID  *string
		snapshot []byte
		status   string
	)
	if err := row.Scan(
		&rv.ID, &rv.ProductID, &rv.UserID, &orderID, &rv.Rating, &rv.Title, &rv.Content, &snapshot,
		&rv.IsVerifiedPurchase, &status, &rv.CreatedAt, &rv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := fillReview(&rv, orderID, snapshot, status); err != nil {
		return nil, err
	}
	return &rv, nil
}

func fillReview(rv *domain.Review, orderID *string, snapshot []byte, status string) error {
	if orderID != nil {
		rv.OrderID = *orderID
	}
	rv.Status = domain.ReviewStatus(status)
	if len(snapshot) > 0 {
		var vs domain.VariantSnapshot
		if err := json.Unmarshal(snapshot, &vs); err != nil {
			return fmt.Errorf("unmarshal variant snapshot: %w", err)
		}
		rv.VariantSnapshot = &vs
	}
	return nil
}

func marshalSnapshot(vs *domain.VariantSnapshot) ([]byte, error) {
	if vs == nil {
		return nil, nil
	}
	data, err := json.Marshal(vs)
	if err != nil {
		return nil, fmt.Errorf("marshal variant snapshot: %w", err)
	}
	return data, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
