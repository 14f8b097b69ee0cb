package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/server/internal/auth"
	"github.com/opsdesk/server/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour, "opsdesk")
	token, err := jwt.Generate("u1", "alice", "staff")
	require.NoError(t, err)

	var seen *auth.Claims
	handler := Authenticate(jwt, "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token stores claims", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/dashboard", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "u1", seen.UserID())
		assert.Equal(t, "alice", seen.Username)
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/dashboard", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})

	t.Run("garbage token", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/dashboard", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdminOnly(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour, "opsdesk")
	chain := func(role string) (*httptest.ResponseRecorder, *http.Request) {
		token, err := jwt.Generate("u1", "alice", role)
		require.NoError(t, err)
		r := httptest.NewRequest("GET", "/api/users", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		return httptest.NewRecorder(), r
	}

	handler := Authenticate(jwt, "test")(AdminOnly("test")(okHandler()))

	w, r := chain("admin")
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w, r = chain("staff")
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCorrelationID(t *testing.T) {
	handler := CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("echoes proxy-provided id", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Request-ID", "upstream-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, "upstream-123", w.Header().Get("X-Request-ID"))
	})
}

func TestRateLimit_LoginTier(t *testing.T) {
	cfg := config.RateLimitConfig{PublicPerMinute: 100, StaffPerMinute: 100, LoginPerMinute: 2}
	// Tier tag must be in the context before the limiter reads it, mirroring
	// how the router nests the two.
	handler := WithRateLimitTierHandler(TierLogin)(RateLimit(cfg)(okHandler()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest("POST", "/api/auth/login", nil)
		r.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimit_HealthEndpointsExempt(t *testing.T) {
	cfg := config.RateLimitConfig{PublicPerMinute: 1}
	handler := RateLimit(cfg)(okHandler())

	for i := 0; i < 5; i++ {
		r := httptest.NewRequest("GET", "/healthz", nil)
		r.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"}, zerolog.Nop())(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/dashboard", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		r := httptest.NewRequest("OPTIONS", "/api/dashboard", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})

	t.Run("rejected origin gets no CORS headers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/dashboard", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
