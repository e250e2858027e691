package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// OrderHandler handles HTTP requests for order timelines and status changes.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// GetTimeline handles GET /api/v1/orders/{orderId}/timeline
func (h *OrderHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(middleware.UserIDHeader)

	timeline, err := h.service.GetOrderTimeline(r.Context(), chi.URLParam(r, "orderId"), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, timeline)
}

// UpdateStatus handles PATCH /api/v1/orders/{orderId}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateStatusInput
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderId"), domain.OrderStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}
