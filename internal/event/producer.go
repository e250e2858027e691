package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// Kafka topic constants for storefront domain events.
const (
	TopicCartUpdated        = "storefront.cart.updated"
	TopicCartMerged         = "storefront.cart.merged"
	TopicProductViewed      = "storefront.product.viewed"
	TopicInterestsUpdated   = "storefront.interests.updated"
	TopicOrderStatusChanged = "storefront.order.status_changed"
	TopicReviewCreated      = "storefront.review.created"
)

// Aggregate type constants.
const (
	AggregateTypeCart    = "cart"
	AggregateTypeUser    = "user"
	AggregateTypeOrder   = "order"
	AggregateTypeProduct = "product"
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront"

// Publisher delivers an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	UserID      string         `json:"user_id,omitempty"`
	GuestID     string         `json:"guest_id,omitempty"`
	Items       []CartItemData `json:"items"`
	ItemCount   int            `json:"item_count"`
	TotalAmount int64          `json:"total_amount"`
	Currency    string         `json:"currency"`
	Version     int            `json:"version"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// CartMergedData is the payload for a cart.merged event.
type CartMergedData struct {
	GuestID   string `json:"guest_id"`
	UserID    string `json:"user_id"`
	ItemCount int    `json:"item_count"`
	Version   int    `json:"version"`
}

// ProductViewedData is the payload for a product.viewed event.
type ProductViewedData struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	ViewCount int    `json:"view_count"`
}

// InterestsUpdatedData is the payload for an interests.updated event.
type InterestsUpdatedData struct {
	UserID  string   `json:"user_id"`
	Tags    []string `json:"tags"`
	Source  string   `json:"source"`
	TopTags []string `json:"top_tags"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ReviewID           string  `json:"review_id"`
	ProductID          string  `json:"product_id"`
	UserID             string  `json:"user_id"`
	Rating             int     `json:"rating"`
	IsVerifiedPurchase bool    `json:"is_verified_purchase"`
	Status             string  `json:"status"`
	ProductRating      float64 `json:"product_rating"`
	ProductReviewCount int     `json:"product_review_count"`
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	return p.publish(ctx, TopicCartUpdated, cart.Owner().String(), AggregateTypeCart, CartUpdatedData{
		UserID:      cart.UserID,
		GuestID:     cart.GuestID,
		Items:       items,
		ItemCount:   cart.ItemCount(),
		TotalAmount: cart.TotalAmount(),
		Currency:    cart.Currency,
		Version:     cart.Version,
	})
}

// PublishCartMerged publishes a cart.merged event.
func (p *Producer) PublishCartMerged(ctx context.Context, guestID string, cart *domain.Cart) error {
	return p.publish(ctx, TopicCartMerged, cart.Owner().String(), AggregateTypeCart, CartMergedData{
		GuestID:   guestID,
		UserID:    cart.UserID,
		ItemCount: cart.ItemCount(),
		Version:   cart.Version,
	})
}

// PublishProductViewed publishes a product.viewed event.
func (p *Producer) PublishProductViewed(ctx context.Context, userID string, entry domain.HistoryEntry) error {
	return p.publish(ctx, TopicProductViewed, userID, AggregateTypeUser, ProductViewedData{
		UserID:    userID,
		ProductID: entry.ProductID,
		ViewCount: entry.ViewCount,
	})
}

// PublishInterestsUpdated publishes an interests.updated event.
func (p *Producer) PublishInterestsUpdated(ctx context.Context, userID string, sig domain.Signal, interests []domain.Interest) error {
	return p.publish(ctx, TopicInterestsUpdated, userID, AggregateTypeUser, InterestsUpdatedData{
		UserID:  userID,
		Tags:    sig.Tags,
		Source:  string(sig.Source),
		TopTags: domain.TopTags(interests, 5),
	})
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, oldStatus domain.OrderStatus) error {
	return p.publish(ctx, TopicOrderStatusChanged, order.ID, AggregateTypeOrder, OrderStatusChangedData{
		OrderID:   order.ID,
		UserID:    order.UserID,
		OldStatus: string(oldStatus),
		NewStatus: string(order.Status),
	})
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review, agg domain.RatingAggregate) error {
	return p.publish(ctx, TopicReviewCreated, review.ProductID, AggregateTypeProduct, ReviewCreatedData{
		ReviewID:           review.ID,
		ProductID:          review.ProductID,
		UserID:             review.UserID,
		Rating:             review.Rating,
		IsVerifiedPurchase: review.IsVerifiedPurchase,
		Status:             string(review.Status),
		ProductRating:      agg.Rating,
		ProductReviewCount: agg.ReviewCount,
	})
}
