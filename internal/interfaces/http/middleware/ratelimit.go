package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/storefront/gateway/internal/interfaces/http/dto"
)

// RateLimiter is an in-memory fixed-window limiter with a token bucket per
// key. One instance guards one route group; the auth and VAT groups get
// their own, tighter instances so catalog browsing cannot starve them and
// login abuse is capped independently.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens  int
	resetAt time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and
// starts its janitor. Call Close when discarding the limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		stop:    make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// Close stops the janitor goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// janitor drops buckets that have sat past their window so idle keys do
// not accumulate forever.
func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, b := range rl.buckets {
				if now.Sub(b.resetAt) > rl.window {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Take spends one token for key and reports whether the request may
// proceed, how many tokens remain in the current window, and when a denied
// caller may retry. The decision and the remaining count come from one
// lock acquisition so concurrent requests cannot interleave between them.
func (rl *RateLimiter) Take(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &bucket{tokens: rl.limit, resetAt: now.Add(rl.window)}
		rl.buckets[key] = b
	}

	if b.tokens <= 0 {
		return false, 0, b.resetAt.Sub(now)
	}
	b.tokens--
	return true, b.tokens, 0
}

// RateLimit limits requests keyed by client IP.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RateLimitByKey limits requests with a custom key extractor, e.g.
// per-session limits on authenticated groups.
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	limitValue := strconv.Itoa(limiter.limit)

	return func(c *gin.Context) {
		allowed, remaining, retryAfter := limiter.Take(keyFunc(c))

		c.Header("X-RateLimit-Limit", limitValue)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				RequestIDFrom(c),
			))
			return
		}

		c.Next()
	}
}

// SessionRateLimitKey keys authenticated requests by session so one abusive
// device cannot consume another customer's budget behind a shared NAT.
// Anonymous requests fall back to the client IP.
func SessionRateLimitKey(c *gin.Context) string {
	if session := GetSession(c); session != nil {
		return "session:" + session.ID.String()
	}
	return c.ClientIP()
}
