package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRateLimiterAllowsWithinBudget(t *testing.T) {
	clk := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewLoginRateLimiter(3, time.Minute).WithClock(clk.Now)

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "hit %d", i+1)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLoginRateLimiterRecoversAfterWindow(t *testing.T) {
	clk := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewLoginRateLimiter(1, time.Minute).WithClock(clk.Now)

	allowed, _ := limiter.allow("10.0.0.1", clk.Now())
	require.True(t, allowed)

	allowed, retryAfter := limiter.allow("10.0.0.1", clk.Now())
	require.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	clk.Advance(time.Minute + time.Second)
	allowed, _ = limiter.allow("10.0.0.1", clk.Now())
	assert.True(t, allowed)
}

func TestLoginRateLimiterIsolatesClients(t *testing.T) {
	clk := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewLoginRateLimiter(1, time.Minute).WithClock(clk.Now)

	allowed, _ := limiter.allow("10.0.0.1", clk.Now())
	require.True(t, allowed)
	allowed, _ = limiter.allow("10.0.0.1", clk.Now())
	require.False(t, allowed)

	allowed, _ = limiter.allow("10.0.0.2", clk.Now())
	assert.True(t, allowed)
}

func TestRequestIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", requestIP(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.1:1234", requestIP(req))
}
