package sink

import (
	"context"
	"errors"
	"time"

	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/retry"
)

// Reliable wraps a sink with retries and a circuit breaker. Validation
// errors are permanent and returned on the first attempt.
type Reliable struct {
	next    Sink
	name    string
	retry   *retry.Config
	breaker *Breaker
	logger  logging.Logger
}

// ReliableOption configures a Reliable sink.
type ReliableOption func(*Reliable)

// WithRetry sets the retry policy.
func WithRetry(cfg *retry.Config) ReliableOption {
	return func(r *Reliable) {
		r.retry = cfg
	}
}

// WithBreaker sets the circuit breaker.
func WithBreaker(b *Breaker) ReliableOption {
	return func(r *Reliable) {
		r.breaker = b
	}
}

// WithReliableLogger sets the logger used for retry notices.
func WithReliableLogger(l logging.Logger) ReliableOption {
	return func(r *Reliable) {
		r.logger = l
	}
}

// NewReliable wraps next.
func NewReliable(name string, next Sink, opts ...ReliableOption) *Reliable {
	r := &Reliable{
		next:    next,
		name:    name,
		retry:   retry.DefaultConfig(),
		breaker: NewBreaker(nil),
		logger:  logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Breaker exposes the circuit breaker, for health checks.
func (r *Reliable) Breaker() *Breaker {
	return r.breaker
}

// Submit delivers with retries while the circuit allows it.
func (r *Reliable) Submit(ctx context.Context, sub Submission) error {
	if err := r.breaker.Allow(); err != nil {
		return err
	}

	cfg := *r.retry
	cfg.RetryIf = func(err error) bool {
		var verr *ValidationError
		return !errors.As(err, &verr) && !retry.IsPermanent(err)
	}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.Warn("retrying submission",
			logging.String("sink", r.name),
			logging.String("submission_id", sub.ID),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Err(err),
		)
	}

	err := retry.Retry(ctx, &cfg, func(ctx context.Context) error {
		return r.next.Submit(ctx, sub)
	})

	var verr *ValidationError
	switch {
	case err == nil:
		r.breaker.RecordSuccess()
	case errors.As(err, &verr):
		// The destination answered; it is healthy.
		r.breaker.RecordSuccess()
	default:
		r.breaker.RecordError()
	}
	return err
}
