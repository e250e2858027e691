package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Response is the JSON envelope returned by every endpoint.
type Response struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse describes a failed operation.
type ErrorResponse struct {
	Kind      apperrors.Kind    `json:"kind"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a successful envelope around data.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Success: true, Data: data})
}

// WriteFailure writes a failed envelope with an explicit kind, code and message.
func WriteFailure(w http.ResponseWriter, status int, kind apperrors.Kind, code, message string) {
	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Kind: kind, Code: code, Message: message},
	})
}

// WriteError renders err as a failed envelope. AppErrors keep their own
// message; anything unclassified is logged and reported generically. The
// request-scoped logger from context is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "request failed",
				slog.String("kind", string(appErr.Kind)),
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{
				Kind:      appErr.Kind,
				Code:      appErr.Code,
				Message:   appErr.Message,
				RequestID: requestID,
			},
		})
		return
	}

	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch kind {
	case apperrors.KindNotFound:
		code, message = "NOT_FOUND", "resource not found"
	case apperrors.KindConflict:
		code, message = "CONFLICT", "resource conflict"
	case apperrors.KindValidation:
		code, message = "INVALID_INPUT", err.Error()
	case apperrors.KindTransient:
		code, message = "TRANSIENT_STORE_ERROR", "temporarily unavailable, please retry"
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Kind: kind, Code: code, Message: message, RequestID: requestID},
	})
}

// WriteValidationError renders a validator.ValidationError with per-field messages.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Kind:    apperrors.KindValidation,
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteFailure(w, http.StatusBadRequest, apperrors.KindValidation, "INVALID_INPUT", err.Error())
}
