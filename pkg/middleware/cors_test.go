package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	h := CORS(cfg)(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(method, "/api/v1/carts/merge", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS_Wildcard(t *testing.T) {
	rec := serveCORS(DefaultCORSConfig(), http.MethodGet, "https://shop.example.com")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), GuestIDHeader)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_ExplicitOrigins(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, AllowCredentials: true}

	rec := serveCORS(cfg, http.MethodGet, "https://shop.example.com")
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = serveCORS(cfg, http.MethodGet, "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_WildcardIgnoredWithCredentials(t *testing.T) {
	rec := serveCORS(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, http.MethodGet, "https://a.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	rec := serveCORS(DefaultCORSConfig(), http.MethodOptions, "https://shop.example.com")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}
