package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ReviewHandler handles HTTP requests for product reviews.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// ListReviews handles GET /api/v1/products/{productId}/reviews?page=&per_page=
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)

	result, err := h.service.ListReviews(r.Context(), chi.URLParam(r, "productId"), p.Page, p.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// CreateReview handles POST /api/v1/products/{productId}/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req service.CreateReviewInput
	if !decodeBody(w, r, &req) {
		return
	}
	req.ProductID = chi.URLParam(r, "productId")
	req.UserID = r.Header.Get(middleware.UserIDHeader)

	review, err := h.service.CreateReview(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, review)
}

// ModerateReview handles PATCH /api/v1/reviews/{reviewId}/status
func (h *ReviewHandler) ModerateReview(w http.ResponseWriter, r *http.Request) {
	var req service.ModerateReviewInput
	if !decodeBody(w, r, &req) {
		return
	}

	review, err := h.service.ModerateReview(r.Context(), chi.URLParam(r, "reviewId"), domain.ReviewStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}
