// Package health runs dependency checks and serves them over HTTP.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the health status of a service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Status     Status         `json:"status"`
	DurationMS float64        `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Report is the overall health status.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckFunc reports a problem by returning an error.
type CheckFunc func(ctx context.Context) error

// Check defines a single health check.
type Check struct {
	Name    string
	Check   CheckFunc
	Timeout time.Duration

	// Critical failures make the report unhealthy; others degrade it.
	Critical bool
}

// Checker manages health checks for the application.
type Checker struct {
	checks  []Check
	version string
	mu      sync.RWMutex
}

// NewChecker creates a checker reporting version.
func NewChecker(version string) *Checker {
	return &Checker{version: version}
}

// AddCheck adds a non-critical check.
func (hc *Checker) AddCheck(name string, check CheckFunc, timeout time.Duration) {
	hc.add(Check{Name: name, Check: check, Timeout: timeout})
}

// AddCriticalCheck adds a check whose failure makes the service unhealthy.
func (hc *Checker) AddCriticalCheck(name string, check CheckFunc, timeout time.Duration) {
	hc.add(Check{Name: name, Check: check, Timeout: timeout, Critical: true})
}

func (hc *Checker) add(c Check) {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, c)
}

// Check runs all checks concurrently.
func (hc *Checker) Check(ctx context.Context) Report {
	hc.mu.RLock()
	checks := append([]Check(nil), hc.checks...)
	hc.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now().UTC(),
		Version:   hc.version,
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, c := range checks {
		g.Go(func() error {
			result := run(ctx, c)

			mu.Lock()
			defer mu.Unlock()
			report.Checks[c.Name] = result
			if result.Status != StatusHealthy {
				if c.Critical {
					report.Status = StatusUnhealthy
				} else if report.Status == StatusHealthy {
					report.Status = StatusDegraded
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func run(ctx context.Context, c Check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	result := CheckResult{
		Status:     StatusHealthy,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		if he, ok := err.(*Error); ok {
			result.Details = he.Details
		}
	}
	return result
}

// Handler serves the full report: 200 unless a critical check failed, 503
// otherwise.
func (hc *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := hc.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}

// LivenessHandler answers 200 while the process runs.
func (hc *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "alive",
			"timestamp": time.Now().UTC(),
		})
	})
}

// Error is a check failure with details for the report.
type Error struct {
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Pinger is anything that can verify its own connectivity, such as the
// submission archive or the snapshot store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck checks p.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// CapacityCheck fails when count reaches max, e.g. live sockets.
func CapacityCheck(what string, count func() int, max int) CheckFunc {
	return func(ctx context.Context) error {
		n := count()
		if max > 0 && n >= max {
			return &Error{
				Message: what + " at capacity",
				Details: map[string]any{"current": n, "max": max},
			}
		}
		return nil
	}
}

// StateCheck fails when state() is not one of the healthy values. It is
// used for sink circuit breakers.
func StateCheck(state func() string, healthy ...string) CheckFunc {
	return func(ctx context.Context) error {
		s := state()
		for _, h := range healthy {
			if s == h {
				return nil
			}
		}
		return &Error{Message: fmt.Sprintf("state %s", s), Details: map[string]any{"state": s}}
	}
}

// MemoryCheck fails when the heap exceeds maxBytes.
func MemoryCheck(maxBytes uint64) CheckFunc {
	return func(ctx context.Context) error {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		if m.HeapAlloc > maxBytes {
			return &Error{
				Message: "heap above limit",
				Details: map[string]any{"heap_bytes": m.HeapAlloc, "max_bytes": maxBytes},
			}
		}
		return nil
	}
}
