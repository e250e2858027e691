package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// requirePathOwner rejects requests whose identity header does not name the
// owner in the URL parameter param.
func requirePathOwner(param, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.Header.Get(header)
			if caller == "" {
				httputil.WriteFailure(w, http.StatusUnauthorized,
					apperrors.KindUnauthorized, "UNAUTHORIZED", "missing "+header+" header")
				return
			}
			if caller != chi.URLParam(r, param) {
				httputil.WriteFailure(w, http.StatusUnauthorized,
					apperrors.KindUnauthorized, "UNAUTHORIZED", "cannot act on behalf of another owner")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteFailure(w, http.StatusUnsupportedMediaType,
					apperrors.KindValidation, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// decodeBody decodes and validates the JSON body into dst, writing a 400
// response and returning false when it is unusable.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
