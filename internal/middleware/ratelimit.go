package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lromeral/sitechat/internal/pkg/errcode"
	"github.com/lromeral/sitechat/internal/pkg/response"
)

// rateLimiter enforces two sliding windows per client IP: a per-minute
// allowance and a short burst window. Authenticated admin requests skip
// both.
type rateLimiter struct {
	mu          sync.Mutex
	perMinute   int
	burst       int
	burstWindow time.Duration
	hits        map[string][]time.Time
	now         func() time.Time
	lastSweep   time.Time
}

func RateLimit(perMinute, burst int, burstWindow time.Duration) gin.HandlerFunc {
	return newRateLimiter(perMinute, burst, burstWindow, time.Now).handle
}

func newRateLimiter(perMinute, burst int, burstWindow time.Duration, now func() time.Time) *rateLimiter {
	if burstWindow <= 0 {
		burstWindow = 10 * time.Second
	}
	return &rateLimiter{
		perMinute:   perMinute,
		burst:       burst,
		burstWindow: burstWindow,
		hits:        make(map[string][]time.Time),
		now:         now,
		lastSweep:   now(),
	}
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.perMinute <= 0 {
		c.Next()
		return
	}
	if _, ok := c.Get(ContextUserIDKey); ok {
		c.Next()
		return
	}
	ip := c.ClientIP()
	if !l.allow(ip) {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit", zap.String("ip", ip))
		response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	c.Next()
}

func (l *rateLimiter) allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)

	fresh := l.hits[ip][:0]
	inBurst := 0
	for _, t := range l.hits[ip] {
		if now.Sub(t) >= time.Minute {
			continue
		}
		fresh = append(fresh, t)
		if now.Sub(t) < l.burstWindow {
			inBurst++
		}
	}
	if len(fresh) >= l.perMinute {
		l.hits[ip] = fresh
		return false
	}
	if l.burst > 0 && inBurst >= l.burst {
		l.hits[ip] = fresh
		return false
	}
	l.hits[ip] = append(fresh, now)
	return true
}

// sweepLocked drops idle IPs so the map stays bounded by active clients.
func (l *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for ip, times := range l.hits {
		live := false
		for _, t := range times {
			if now.Sub(t) < time.Minute {
				live = true
				break
			}
		}
		if !live {
			delete(l.hits, ip)
		}
	}
}
