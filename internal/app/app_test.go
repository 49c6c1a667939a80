package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsche/edureg/pkg/audit"
	"github.com/hsche/edureg/pkg/metrics"
	"github.com/hsche/edureg/pkg/wizard"
)

// recorder is an in-memory audit log.
type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Close() error { return nil }

func (r *recorder) ofType(typ string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// manualScheduler holds deferred calls until fire is called.
type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

type manualTimer struct {
	stopped atomic.Bool
}

func (t *manualTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) wizard.Timer {
	t := &manualTimer{}
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, func() {
		if !t.stopped.Load() {
			f()
		}
	})
	s.mu.Unlock()
	return t
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func (s *manualScheduler) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func newTestApp(t *testing.T, opts Options) (*App, *recorder) {
	t.Helper()
	rec := &recorder{}
	if opts.Audit == nil {
		opts.Audit = rec
	}
	a, err := New(opts)
	require.NoError(t, err)
	return a, rec
}

func TestSecurityHooks(t *testing.T) {
	rec := &recorder{}
	m := metrics.New(MetricsNamespace)
	req := httptest.NewRequest(http.MethodPost, "/forms/program", nil)
	req.RemoteAddr = "10.0.0.7:5000"

	RateLimited(rec, m)(req, "10.0.0.7")
	CSRFViolation(rec, m)(req, errors.New("token missing"))
	CSRFViolation(rec, nil)(req, errors.New("token mismatch"))

	limited := rec.ofType(audit.EventRateLimited)
	require.Len(t, limited, 1)
	assert.Equal(t, "10.0.0.7", limited[0].SourceIP)
	assert.Equal(t, "/forms/program", limited[0].Path)

	violations := rec.ofType(audit.EventCSRFViolation)
	require.Len(t, violations, 2)
	assert.Equal(t, "token missing", violations[0].Details["reason"])

	assert.Equal(t, 1.0, m.RateLimited.Value())
	assert.Equal(t, 1.0, m.CSRFRejected.Value())
}
