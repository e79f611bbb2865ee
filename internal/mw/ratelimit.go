package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// An unused bucket is kept until it would have refilled, within these bounds.
const (
	minIdle = time.Minute
	maxIdle = 24 * time.Hour
)

// KeyFunc picks the bucket a request is charged to. An empty key means the
// request is not charged to that kind of bucket.
type KeyFunc func(c *gin.Context) string

// ClientRateLimiter stores a rate limiter per client key. Buckets that stay
// unused long enough to have refilled are dropped.
type ClientRateLimiter struct {
	clients *cache.Cache
	mu      sync.Mutex
	r       rate.Limit
	b       int
	idle    time.Duration
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	idle := maxIdle
	if r > 0 {
		if refill := float64(b) / float64(r) * float64(time.Second); refill < float64(maxIdle) {
			idle = max(time.Duration(refill), minIdle)
		}
	}
	return &ClientRateLimiter{
		clients: cache.New(idle, idle),
		r:       r,
		b:       b,
		idle:    idle,
	}
}

// GetLimiter returns the rate limiter for key, creating it on first use.
// Every lookup pushes the bucket's expiry back.
func (l *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.clients.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
	}
	l.clients.Set(key, limiter, l.idle)
	return limiter.(*rate.Limiter)
}

// Len reports how many buckets are live.
func (l *ClientRateLimiter) Len() int {
	return l.clients.ItemCount()
}

// Allow charges one request to the ip bucket and then to each extra bucket.
// The ip bucket is always charged so rotating the extra keys cannot lift
// the address limit.
func (l *ClientRateLimiter) Allow(ip string, extra ...string) bool {
	if !l.GetLimiter(ip).Allow() {
		return false
	}
	for _, key := range extra {
		if key == "" {
			continue
		}
		if !l.GetLimiter(key).Allow() {
			return false
		}
	}
	return true
}

// ClientIP charges requests to the caller's address. When header is set its
// value is trusted over the connection address.
func ClientIP(header string) KeyFunc {
	return func(c *gin.Context) string {
		if header != "" {
			if v := c.GetHeader(header); v != "" {
				return "ip:" + v
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// Cookie charges requests to the named cookie's value. Callers without the
// cookie get an empty key.
func Cookie(name string) KeyFunc {
	return func(c *gin.Context) string {
		if v, err := c.Cookie(name); err == nil && v != "" {
			return "cookie:" + v
		}
		return ""
	}
}

// RateLimiter is a middleware for per-client rate limiting. Every request is
// charged to the ip bucket and additionally to each bucket named by extra.
func RateLimiter(r rate.Limit, b int, ip KeyFunc, extra ...KeyFunc) gin.HandlerFunc {
	return NewClientRateLimiter(r, b).Handler(ip, extra...)
}

// Handler builds the middleware over an existing limiter.
func (l *ClientRateLimiter) Handler(ip KeyFunc, extra ...KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := make([]string, 0, len(extra))
		for _, k := range extra {
			keys = append(keys, k(c))
		}
		if !l.Allow(ip(c), keys...) {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
