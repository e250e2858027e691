package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// --- Mock Repositories ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	args := m.Called(ctx, cart, expectedVersion)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepository) Delete(ctx context.Context, owner domain.CartOwner) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

func (m *mockCartRepository) MergeGuestCart(ctx context.Context, guestID, userID string, merge repository.MergeFunc) (*domain.Cart, bool, error) {
	args := m.Called(ctx, guestID, userID, merge)
	var cart *domain.Cart
	if c := args.Get(0); c != nil {
		cart = c.(*domain.Cart)
	}
	return cart, args.Bool(1), args.Error(2)
}

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserProfile), args.Error(1)
}

func (m *mockProfileRepository) SaveInterests(ctx context.Context, userID string, interests []domain.Interest) error {
	args := m.Called(ctx, userID, interests)
	return args.Error(0)
}

func (m *mockProfileRepository) SaveHistory(ctx context.Context, userID string, history []domain.HistoryEntry) error {
	args := m.Called(ctx, userID, history)
	return args.Error(0)
}

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) ListIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) FindVerifyingOrder(ctx context.Context, userID, productID string, statuses []domain.OrderStatus) (string, error) {
	args := m.Called(ctx, userID, productID, statuses)
	return args.String(0), args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	args := m.Called(ctx, order, from)
	return args.Error(0)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) CreateWithAggregate(ctx context.Context, review *domain.Review, update repository.AggregateFunc) (domain.RatingAggregate, error) {
	args := m.Called(ctx, review, update)
	return args.Get(0).(domain.RatingAggregate), args.Error(1)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus, at time.Time) error {
	args := m.Called(ctx, id, status, at)
	return args.Error(0)
}

func (m *mockReviewRepository) Reaggregate(ctx context.Context, productID string, compute func([]int) domain.RatingAggregate) (domain.RatingAggregate, domain.RatingAggregate, error) {
	args := m.Called(ctx, productID, compute)
	return args.Get(0).(domain.RatingAggregate), args.Get(1).(domain.RatingAggregate), args.Error(2)
}

// --- Event capture ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
