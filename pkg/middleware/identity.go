package middleware

import (
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// Identity headers set by the edge gateway after authenticating the caller.
const (
	UserIDHeader  = "X-User-ID"
	GuestIDHeader = "X-Guest-ID"
)

// Identity copies the gateway identity headers into the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(UserIDHeader); id != "" {
			ctx = logger.WithUserID(ctx, id)
		}
		if id := r.Header.Get(GuestIDHeader); id != "" {
			ctx = logger.WithGuestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests that carry no authenticated user id.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger.UserIDFromContext(r.Context()) == "" && r.Header.Get(UserIDHeader) == "" {
			httputil.WriteFailure(w, http.StatusUnauthorized,
				apperrors.KindUnauthorized, "UNAUTHORIZED", "missing "+UserIDHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}
