package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httputil"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// ============================================================================
// Mock repositories
// ============================================================================

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
	return m.Called(ctx, userID, interests).Error(0)
}

func (m *mockProfileRepository) SaveHistory(ctx context.Context, userID string, history []domain.HistoryEntry) error {
	return m.Called(ctx, userID, history).Error(0)
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
	return m.Called(ctx, order, from).Error(0)
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
	return m.Called(ctx, id, status, at).Error(0)
}

func (m *mockReviewRepository) Reaggregate(ctx context.Context, productID string, compute func([]int) domain.RatingAggregate) (domain.RatingAggregate, domain.RatingAggregate, error) {
	args := m.Called(ctx, productID, compute)
	return args.Get(0).(domain.RatingAggregate), args.Get(1).(domain.RatingAggregate), args.Error(2)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// ============================================================================
// Test helpers
// ============================================================================

type testServer struct {
	handler  http.Handler
	profiles *mockProfileRepository
	products *mockProductRepository
	orders   *mockOrderRepository
	reviews  *mockReviewRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.Discard()
	producer := event.NewProducer(nopPublisher{}, log)

	ts := &testServer{
		profiles: new(mockProfileRepository),
		products: new(mockProductRepository),
		orders:   new(mockOrderRepository),
		reviews:  new(mockReviewRepository),
	}

	interests := service.NewInterestService(ts.profiles, producer, log)
	svc := Services{
		Carts:     service.NewCartService(redisrepo.NewCartRepository(rdb, time.Hour), producer, log, service.DefaultCartConfig()),
		Interests: interests,
		History:   service.NewHistoryService(ts.profiles, ts.products, interests, producer, log, service.HistoryConfig{}),
		Orders:    service.NewOrderService(ts.orders, producer, log),
		Reviews:   service.NewReviewService(ts.reviews, ts.products, ts.orders, producer, log),
	}
	ts.handler = NewRouter(svc, health.NewHandler(), log, nil)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// decodeResponse reads the response body into the standard envelope.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func asUser(id string) map[string]string { return map[string]string{"X-User-ID": id} }
func asGuest(id string) map[string]string { return map[string]string{"X-Guest-ID": id} }

// ============================================================================
// Health
// ============================================================================

func TestHealthLive(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Carts
// ============================================================================

func TestCart_OwnerMismatchIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		headers map[string]string
	}{
		{"no header", "/api/v1/carts/users/u1", nil},
		{"other user", "/api/v1/carts/users/u1", asUser("u2")},
		{"guest header on user cart", "/api/v1/carts/users/u1", asGuest("u1")},
		{"other guest", "/api/v1/carts/guests/g1", asGuest("g2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.path, nil, tt.headers)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
		})
	}
}

func TestCart_GetEmpty(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/carts/users/u1", nil, asUser("u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "u1", data["user_id"])
	assert.Empty(t, data["items"])
}

func TestCart_AddItemValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/carts/guests/g1/items",
		map[string]any{"product_id": "p1", "name": "Mug"}, asGuest("g1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "quantity")
}

func TestCart_RejectsNonJSONBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/guests/g1/items", bytes.NewBufferString("quantity=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Guest-ID", "g1")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCart_GuestThenMergeIntoUser(t *testing.T) {
	ts := newTestServer(t)

	item := map[string]any{"product_id": "p1", "name": "Mug", "price": 1299, "quantity": 2}
	rec := ts.do(t, http.MethodPost, "/api/v1/carts/guests/g1/items", item, asGuest("g1"))
	require.Equal(t, http.StatusOK, rec.Code)

	item["quantity"] = 1
	rec = ts.do(t, http.MethodPost, "/api/v1/carts/users/u1/items", item, asUser("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/carts/users/u1/merge", map[string]string{"guest_id": "g1"},
		map[string]string{"X-User-ID": "u1", "X-Guest-ID": "g1"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	items := resp.Data.(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, float64(3), items[0].(map[string]any)["quantity"])

	rec = ts.do(t, http.MethodGet, "/api/v1/carts/guests/g1", nil, asGuest("g1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeResponse(t, rec).Data.(map[string]any)["items"])
}

func TestCart_MergeUsesGuestHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/carts/users/u1/merge", nil,
		map[string]string{"X-User-ID": "u1", "X-Guest-ID": "g9"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", decodeResponse(t, rec).Data.(map[string]any)["user_id"])
}

func TestCart_MergeRejectsForeignGuestCart(t *testing.T) {
	ts := newTestServer(t)

	item := map[string]any{"product_id": "p1", "name": "Mug", "price": 1299, "quantity": 2}
	rec := ts.do(t, http.MethodPost, "/api/v1/carts/guests/g1/items", item, asGuest("g1"))
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no guest session", asUser("u1")},
		{"different guest session", map[string]string{"X-User-ID": "u1", "X-Guest-ID": "g2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/carts/users/u1/merge", map[string]string{"guest_id": "g1"}, tt.headers)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeResponse(t, rec).Error.Code)
		})
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/carts/guests/g1", nil, asGuest("g1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeResponse(t, rec).Data.(map[string]any)["items"], 1)
}

func TestCart_MergeRequiresGuest(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/carts/users/u1/merge", map[string]string{}, asUser("u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_UpdateAndRemoveItem(t *testing.T) {
	ts := newTestServer(t)

	item := map[string]any{"product_id": "p1", "variant_id": "v1", "name": "Tee", "price": 1500, "quantity": 1}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/carts/users/u1/items", item, asUser("u1")).Code)

	rec := ts.do(t, http.MethodPut, "/api/v1/carts/users/u1/items/p1?variant_id=v1", map[string]int{"quantity": 4}, asUser("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeResponse(t, rec).Data.(map[string]any)["items"].([]any)
	assert.Equal(t, float64(4), items[0].(map[string]any)["quantity"])

	rec = ts.do(t, http.MethodDelete, "/api/v1/carts/users/u1/items/p1?variant_id=v1", nil, asUser("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeResponse(t, rec).Data.(map[string]any)["items"])

	rec = ts.do(t, http.MethodDelete, "/api/v1/carts/users/u1", nil, asUser("u1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// ============================================================================
// Interests and history
// ============================================================================

func TestApplySignal(t *testing.T) {
	ts := newTestServer(t)

	ts.profiles.On("Get", mock.Anything, "u1").Return(&domain.UserProfile{UserID: "u1"}, nil)
	ts.profiles.On("SaveInterests", mock.Anything, "u1", mock.Anything).Return(nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/users/u1/interests/signals",
		map[string]any{"tags": []string{"Denim"}, "weight": 3, "source": "auto"}, asUser("u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	interests := decodeResponse(t, rec).Data.([]any)
	require.Len(t, interests, 1)
	assert.Equal(t, "denim", interests[0].(map[string]any)["tag"])
}

func TestApplySignal_UnknownSource(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/users/u1/interests/signals",
		map[string]any{"tags": []string{"denim"}, "weight": 1, "source": "guess"}, asUser("u1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeResponse(t, rec).Error.Fields, "source")
	ts.profiles.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestTopInterestTags_BadLimit(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/u1/interests/top?n=-2", nil, asUser("u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordView_UnknownProduct(t *testing.T) {
	ts := newTestServer(t)

	ts.products.On("GetByID", mock.Anything, "nope").Return(nil, apperrors.NotFound("product", "nope"))

	rec := ts.do(t, http.MethodPost, "/api/v1/users/u1/views", map[string]string{"product_id": "nope"}, asUser("u1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBrowsingHistory(t *testing.T) {
	ts := newTestServer(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.profiles.On("Get", mock.Anything, "u1").Return(&domain.UserProfile{
		UserID: "u1",
		BrowsingHistory: []domain.HistoryEntry{
			{ProductID: "p2", ViewedAt: now, ViewCount: 1},
			{ProductID: "p1", ViewedAt: now.Add(-time.Hour), ViewCount: 3},
		},
	}, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/u1/history?limit=1", nil, asUser("u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeResponse(t, rec).Data.([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "p2", entries[0].(map[string]any)["product_id"])
}

// ============================================================================
// Orders
// ============================================================================

func paidOrder() *domain.Order {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	paid := created.Add(time.Hour)
	return &domain.Order{ID: "o1", UserID: "u1", Status: domain.OrderStatusPaid, CreatedAt: created, UpdatedAt: paid, PaidAt: &paid}
}

func TestOrderTimeline(t *testing.T) {
	ts := newTestServer(t)
	ts.orders.On("GetByID", mock.Anything, "o1").Return(paidOrder(), nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/orders/o1/timeline", nil, asUser("u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	steps := decodeResponse(t, rec).Data.(map[string]any)["steps"].([]any)
	require.Len(t, steps, 6)
	confirmed := steps[1].(map[string]any)
	assert.Equal(t, true, confirmed["active"])
	assert.Equal(t, "01 Mar 2026 10:00", confirmed["time"])
}

func TestOrderTimeline_Unauthorized(t *testing.T) {
	ts := newTestServer(t)
	ts.orders.On("GetByID", mock.Anything, "o1").Return(paidOrder(), nil)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/orders/o1/timeline", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/orders/o1/timeline", nil, asUser("u2")).Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.orders.On("GetByID", mock.Anything, "o1").Return(paidOrder(), nil)
	ts.orders.On("UpdateStatus", mock.Anything, mock.Anything, domain.OrderStatusPaid).Return(nil)

	rec := ts.do(t, http.MethodPatch, "/api/v1/orders/o1/status", map[string]string{"status": "PROCESSING"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PROCESSING", decodeResponse(t, rec).Data.(map[string]any)["status"])
}

func TestUpdateOrderStatus_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.orders.On("GetByID", mock.Anything, "o1").Return(paidOrder(), nil)

	rec := ts.do(t, http.MethodPatch, "/api/v1/orders/o1/status", map[string]string{"status": "DELIVERED"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/v1/orders/o1/status", map[string]string{"status": "TELEPORTED"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Reviews
// ============================================================================

func TestCreateReview(t *testing.T) {
	ts := newTestServer(t)
	ts.orders.On("FindVerifyingOrder", mock.Anything, "u1", "p1", mock.Anything).Return("o1", nil)
	ts.reviews.On("CreateWithAggregate", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.RatingAggregate{Rating: 5, ReviewCount: 1}, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/products/p1/reviews",
		map[string]any{"rating": 5, "content": "Lovely"}, asUser("u1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, true, data["is_verified_purchase"])
	assert.Equal(t, "APPROVED", data["status"])
	assert.Equal(t, "u1", data["user_id"])
}

func TestCreateReview_Validation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/products/p1/reviews",
		map[string]any{"rating": 6, "content": "   "}, asUser("u1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeResponse(t, rec).Error.Fields
	assert.Contains(t, fields, "rating")
	assert.Contains(t, fields, "content")

	rec = ts.do(t, http.MethodPost, "/api/v1/products/p1/reviews", map[string]any{"rating": 4, "content": "ok"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListReviews(t *testing.T) {
	ts := newTestServer(t)
	ts.products.On("GetByID", mock.Anything, "p1").Return(&domain.Product{ID: "p1", Rating: 4.5, ReviewCount: 2}, nil)
	ts.reviews.On("List", mock.Anything, mock.MatchedBy(func(f repository.ReviewFilter) bool {
		return f.ProductID == "p1" && f.Page == 2 && f.PerPage == 1
	})).Return([]domain.Review{{ID: "r2", ProductID: "p1", Rating: 4}}, 2, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/products/p1/reviews?page=2&per_page=1", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, float64(2), data["total_pages"])
	assert.Equal(t, 4.5, data["summary"].(map[string]any)["rating"])
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
}

func TestModerateReview_UnknownStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPatch, "/api/v1/reviews/r1/status", map[string]string{"status": "HIDDEN"}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ts.reviews.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
