package sink

import (
	"sync"
	"time"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets deliveries through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects deliveries until the cool-down elapses.
	BreakerOpen
	// BreakerHalfOpen lets probe deliveries through.
	BreakerHalfOpen
)

// String returns the string representation of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// MaxErrors is the number of consecutive failures that opens the circuit.
	MaxErrors int

	// ResetTimeout is how long the circuit stays open.
	ResetTimeout time.Duration

	// SuccessThreshold is the number of half-open successes that close it.
	SuccessThreshold int

	// OnStateChange is called when the state changes.
	OnStateChange func(from, to BreakerState)
}

// DefaultBreakerConfig returns the defaults used for sinks.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxErrors:        5,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 1,
	}
}

// Breaker stops calling a destination after repeated failures.
type Breaker struct {
	config *BreakerConfig
	now    func() time.Time

	mu        sync.Mutex
	state     BreakerState
	errors    int
	successes int
	openedAt  time.Time
}

// NewBreaker creates a breaker. A nil config uses the defaults.
func NewBreaker(config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{config: config, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow returns ErrCircuitOpen while the circuit is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return ErrCircuitOpen
		}
		b.setState(BreakerHalfOpen)
	}
	return nil
}

// RecordSuccess records a successful delivery.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.setState(BreakerClosed)
		}
	default:
		b.errors = 0
	}
}

// RecordError records a failed delivery.
func (b *Breaker) RecordError() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.errors++
		if b.errors >= b.config.MaxErrors {
			b.open()
		}
	case BreakerHalfOpen:
		b.open()
	case BreakerOpen:
		b.openedAt = b.now()
	}
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.setState(BreakerOpen)
}

// setState must be called with mu held.
func (b *Breaker) setState(to BreakerState) {
	from := b.state
	b.state = to
	b.errors = 0
	b.successes = 0
	if b.config.OnStateChange != nil && from != to {
		b.config.OnStateChange(from, to)
	}
}
