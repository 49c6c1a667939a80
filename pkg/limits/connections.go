package limits

import (
	"net/http"
	"sync"
)

// ConnectionLimiter caps concurrent live connections per client IP and in
// total. A zero limit disables that cap.
type ConnectionLimiter struct {
	maxPerIP  int
	maxGlobal int

	mu      sync.Mutex
	perIP   map[string]int
	total   int
	blocked int64
}

// NewConnectionLimiter creates a connection limiter.
func NewConnectionLimiter(maxPerIP, maxGlobal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxPerIP:  maxPerIP,
		maxGlobal: maxGlobal,
		perIP:     make(map[string]int),
	}
}

// Acquire reserves a slot for ip.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if (cl.maxGlobal > 0 && cl.total >= cl.maxGlobal) ||
		(cl.maxPerIP > 0 && cl.perIP[ip] >= cl.maxPerIP) {
		cl.blocked++
		return false
	}
	cl.perIP[ip]++
	cl.total++
	return true
}

// Release frees a slot taken by Acquire.
func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n, ok := cl.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(cl.perIP, ip)
	} else {
		cl.perIP[ip] = n - 1
	}
	cl.total--
}

// Count returns the open connections for ip.
func (cl *ConnectionLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.perIP[ip]
}

// Total returns all open connections.
func (cl *ConnectionLimiter) Total() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.total
}

// Blocked returns how many connections were refused.
func (cl *ConnectionLimiter) Blocked() int64 {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.blocked
}

// Middleware holds a slot for the lifetime of each request, which for a
// websocket upgrade is the lifetime of the socket.
func (cl *ConnectionLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !cl.Acquire(ip) {
				http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
				return
			}
			defer cl.Release(ip)
			next.ServeHTTP(w, r)
		})
	}
}
