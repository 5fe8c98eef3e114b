package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowBurstThenDeny(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 5, CleanupInterval: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow("buyer_1"), "request %d is within the burst", i)
	}
	assert.False(t, limiter.Allow("buyer_1"), "burst exhausted")

	// One token replenishes per second at 60/min.
	time.Sleep(1100 * time.Millisecond)
	assert.True(t, limiter.Allow("buyer_1"))
}

func TestAllowIsPerKey(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 3, CleanupInterval: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow("user:buyer_1")
	}
	assert.False(t, limiter.Allow("user:buyer_1"))
	assert.True(t, limiter.Allow("user:seller_1"), "another client keeps its own bucket")
}

func newRouter(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/api/v1/transactions", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/webhooks/stripe", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestMiddlewareLimitsByUserHeader(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 2, CleanupInterval: time.Minute})
	defer limiter.Stop()
	router := newRouter(limiter)

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
		if user != "" {
			req.Header.Set("X-User-ID", user)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("buyer_1"))
	assert.Equal(t, http.StatusOK, do("buyer_1"))
	assert.Equal(t, http.StatusTooManyRequests, do("buyer_1"))

	// A different user is a different bucket even from the same IP.
	assert.Equal(t, http.StatusOK, do("buyer_2"))
}

func TestMiddlewareExemptsWebhooks(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer limiter.Stop()
	router := newRouter(limiter)

	// Provider callback bursts must never be dropped.
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "webhook request %d", i)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120, cfg.RequestsPerMinute)
	assert.Equal(t, 20, cfg.BurstSize)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
}
