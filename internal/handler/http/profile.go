package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

const defaultTopInterests = 5

// ProfileHandler serves a user's interests and browsing history.
type ProfileHandler struct {
	interests *service.InterestService
	history   *service.HistoryService
	logger    *slog.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(interests *service.InterestService, history *service.HistoryService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		interests: interests,
		history:   history,
		logger:    logger,
	}
}

// RecordViewRequest is the JSON request body for a product view.
type RecordViewRequest struct {
	ProductID string `json:"product_id" validate:"required,notblank"`
}

// GetInterests handles GET /api/v1/users/{userId}/interests
func (h *ProfileHandler) GetInterests(w http.ResponseWriter, r *http.Request) {
	interests, err := h.interests.GetInterests(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, interests)
}

// ApplySignal handles POST /api/v1/users/{userId}/interests/signals
func (h *ProfileHandler) ApplySignal(w http.ResponseWriter, r *http.Request) {
	var req service.ApplySignalInput
	if !decodeBody(w, r, &req) {
		return
	}

	interests, err := h.interests.ApplySignal(r.Context(), chi.URLParam(r, "userId"), domain.Signal{
		Tags:   req.Tags,
		Weight: req.Weight,
		Source: domain.InterestSource(req.Source),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, interests)
}

// TopInterestTags handles GET /api/v1/users/{userId}/interests/top?n=
func (h *ProfileHandler) TopInterestTags(w http.ResponseWriter, r *http.Request) {
	n, ok := queryInt(w, r, "n", defaultTopInterests)
	if !ok {
		return
	}

	tags, err := h.interests.TopInterestTags(r.Context(), chi.URLParam(r, "userId"), n)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tags)
}

// GetBrowsingHistory handles GET /api/v1/users/{userId}/history?limit=
func (h *ProfileHandler) GetBrowsingHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}

	history, err := h.history.GetBrowsingHistory(r.Context(), chi.URLParam(r, "userId"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, history)
}

// RecordView handles POST /api/v1/users/{userId}/views
func (h *ProfileHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	var req RecordViewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	history, err := h.history.RecordView(r.Context(), chi.URLParam(r, "userId"), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, history)
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when absent.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		httputil.WriteFailure(w, http.StatusBadRequest, apperrors.KindValidation,
			"INVALID_INPUT", name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}
