package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// CartHandler handles HTTP requests for user and guest carts.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// MergeCartRequest names the guest cart to fold into the user's cart. The
// caller must also carry that guest's X-Guest-ID session header; the body
// may be empty.
type MergeCartRequest struct {
	GuestID string `json:"guest_id"`
}

func (h *CartHandler) routes(r chi.Router) {
	r.Get("/", h.GetCart)
	r.Delete("/", h.ClearCart)

	r.Post("/items", h.AddItem)
	r.Put("/items/{productId}", h.UpdateItemQuantity)
	r.Delete("/items/{productId}", h.RemoveItem)
}

// owner resolves the cart owner from the route: /carts/users/{userId} or
// /carts/guests/{guestId}.
func owner(r *http.Request) domain.CartOwner {
	if id := chi.URLParam(r, "userId"); id != "" {
		return domain.UserOwner(id)
	}
	return domain.GuestOwner(chi.URLParam(r, "guestId"))
}

// GetCart handles GET /api/v1/carts/{users|guests}/{id}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), owner(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// AddItem handles POST /api/v1/carts/{users|guests}/{id}/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.service.AddItem(r.Context(), owner(r), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// UpdateItemQuantity handles PUT /api/v1/carts/{users|guests}/{id}/items/{productId}?variant_id=
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateQuantityInput
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.service.UpdateItemQuantity(r.Context(), owner(r),
		chi.URLParam(r, "productId"), r.URL.Query().Get("variant_id"), req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/v1/carts/{users|guests}/{id}/items/{productId}?variant_id=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.RemoveItem(r.Context(), owner(r),
		chi.URLParam(r, "productId"), r.URL.Query().Get("variant_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// ClearCart handles DELETE /api/v1/carts/{users|guests}/{id}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), owner(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MergeGuestCart handles POST /api/v1/carts/users/{userId}/merge
func (h *CartHandler) MergeGuestCart(w http.ResponseWriter, r *http.Request) {
	var req MergeCartRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	session := r.Header.Get(middleware.GuestIDHeader)
	switch {
	case req.GuestID == "" && session == "":
		httputil.WriteFailure(w, http.StatusBadRequest, apperrors.KindValidation,
			"INVALID_INPUT", "guest_id or "+middleware.GuestIDHeader+" header is required")
		return
	case session == "", req.GuestID != "" && req.GuestID != session:
		// The caller must hold the guest session it is merging from.
		httputil.WriteError(w, r, apperrors.Unauthorized("guest cart does not belong to this session"), h.logger)
		return
	}

	cart, err := h.service.MergeGuestCartIntoUser(r.Context(), session, chi.URLParam(r, "userId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}
