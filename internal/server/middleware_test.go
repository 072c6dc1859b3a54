package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/shardmind/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthDevelopmentMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.SecurityMode = "development"

	handler := RequireAuth(okHandler(), cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthProductionMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.SecurityMode = "production"
	cfg.Security.APIToken = "secret-token"

	handler := RequireAuth(okHandler(), cfg)

	// No token
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong token
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Correct token
	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthProductionWithoutConfiguredToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.SecurityMode = "production"

	handler := RequireAuth(okHandler(), cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1.0, 2)
	handler := RateLimitMiddleware(okHandler(), rl)

	// The burst allows the first two requests; the third is rejected.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/query", nil))
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/query", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	handler := securityHeadersMiddleware(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
