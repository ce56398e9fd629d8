package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_PerMinuteWindow(t *testing.T) {
	now := time.Now()
	limiter := newRateLimiter(5, 0, 10*time.Second, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		require.True(t, limiter.allow("1.2.3.4"), "request %d", i+1)
		now = now.Add(11 * time.Second)
	}
	require.False(t, limiter.allow("1.2.3.4"))

	// The window slides: a minute after the first hit there is room again.
	now = now.Add(10 * time.Second)
	require.True(t, limiter.allow("1.2.3.4"))
}

func TestRateLimiter_BurstWindow(t *testing.T) {
	now := time.Now()
	limiter := newRateLimiter(100, 3, 10*time.Second, func() time.Time { return now })

	require.True(t, limiter.allow("1.2.3.4"))
	require.True(t, limiter.allow("1.2.3.4"))
	require.True(t, limiter.allow("1.2.3.4"))
	require.False(t, limiter.allow("1.2.3.4"))

	now = now.Add(11 * time.Second)
	require.True(t, limiter.allow("1.2.3.4"))
}

func TestRateLimiter_PerIPIsolation(t *testing.T) {
	now := time.Now()
	limiter := newRateLimiter(1, 0, 10*time.Second, func() time.Time { return now })

	require.True(t, limiter.allow("1.1.1.1"))
	require.False(t, limiter.allow("1.1.1.1"))
	require.True(t, limiter.allow("2.2.2.2"))
}

func TestRateLimiter_AuthenticatedCallerSkipsLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newRateLimiter(1, 0, 10*time.Second, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/api/v1/chat/message", nil)
		c.Set(ContextUserIDKey, "admin")
		limiter.handle(c)
		require.False(t, c.IsAborted(), "request %d", i+1)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/chat/message", nil)
	limiter.handle(c)
	require.False(t, c.IsAborted())

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest("POST", "/api/v1/chat/message", nil)
	limiter.handle(c2)
	require.True(t, c2.IsAborted())
}

func TestRateLimiter_SweepDropsIdleIPs(t *testing.T) {
	now := time.Now()
	limiter := newRateLimiter(5, 0, 10*time.Second, func() time.Time { return now })

	require.True(t, limiter.allow("1.1.1.1"))
	now = now.Add(3 * time.Minute)
	require.True(t, limiter.allow("2.2.2.2"))

	limiter.mu.Lock()
	_, stale := limiter.hits["1.1.1.1"]
	limiter.mu.Unlock()
	require.False(t, stale)
}
