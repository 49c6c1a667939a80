// Package limits throttles form posts, auth attempts and live socket
// connections per client.
package limits

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrRateLimitExceeded is returned when a key has no tokens left.
var ErrRateLimitExceeded = errors.New("limits: rate limit exceeded")

// RateLimiter limits the rate of operations per key.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	rate  float64 // tokens per second
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	idle    time.Duration
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// BucketOption configures a TokenBucket.
type BucketOption func(*TokenBucket)

// WithBucketClock replaces the time source.
func WithBucketClock(now func() time.Time) BucketOption {
	return func(tb *TokenBucket) {
		tb.now = now
	}
}

// WithIdleTimeout sets how long an untouched bucket is kept.
func WithIdleTimeout(d time.Duration) BucketOption {
	return func(tb *TokenBucket) {
		tb.idle = d
	}
}

// NewTokenBucket creates a limiter refilling rate tokens per second up to
// burst. Close stops its cleanup loop.
func NewTokenBucket(rate float64, burst int, opts ...BucketOption) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	tb := &TokenBucket{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		idle:    time.Hour,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(tb)
	}

	go tb.cleanupLoop()
	return tb
}

// Allow takes one token for key.
func (tb *TokenBucket) Allow(key string) bool {
	return tb.AllowN(key, 1)
}

// AllowN takes n tokens for key if available.
func (tb *TokenBucket) AllowN(key string, n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.burst), lastFill: now}
		tb.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastFill).Seconds() * tb.rate
	if b.tokens > float64(tb.burst) {
		b.tokens = float64(tb.burst)
	}
	b.lastFill = now

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// RetryAfter estimates how long key waits for its next token.
func (tb *TokenBucket) RetryAfter(key string) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	b, ok := tb.buckets[key]
	if !ok || b.tokens >= 1 || tb.rate <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / tb.rate * float64(time.Second))
}

// Prune drops buckets idle for longer than the idle timeout and returns
// how many were dropped.
func (tb *TokenBucket) Prune() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	n := 0
	for key, b := range tb.buckets {
		if now.Sub(b.lastFill) > tb.idle {
			delete(tb.buckets, key)
			n++
		}
	}
	return n
}

// Close stops the cleanup loop.
func (tb *TokenBucket) Close() {
	tb.mu.Lock()
	if tb.closed {
		tb.mu.Unlock()
		return
	}
	tb.closed = true
	close(tb.stop)
	tb.mu.Unlock()
	<-tb.done
}

func (tb *TokenBucket) cleanupLoop() {
	defer close(tb.done)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tb.Prune()
		case <-tb.stop:
			return
		}
	}
}

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// KeyFunc picks the bucket for a request (default ClientIP).
	KeyFunc func(*http.Request) string

	// All limits safe methods too. By default GET and HEAD pass.
	All bool

	// OnReject is called for every request answered with 429.
	OnReject func(r *http.Request, key string)
}

// Middleware rejects requests over the limit with 429.
func Middleware(limiter RateLimiter, config MiddlewareConfig) func(http.Handler) http.Handler {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.All && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if !limiter.Allow(key) {
				if config.OnReject != nil {
					config.OnReject(r, key)
				}
				if tb, ok := limiter.(*TokenBucket); ok {
					secs := int(tb.RetryAfter(key).Seconds()) + 1
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP, preferring the first X-Forwarded-For
// entry, then X-Real-IP, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		if ip = strings.TrimSpace(ip); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
