// Package sink delivers completed form submissions to their destinations.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hsche/edureg/pkg/forms"
)

// Submission is the immutable snapshot handed to a Sink exactly once per
// successful submit.
type Submission struct {
	ID          string       `json:"id"`
	Form        string       `json:"form"`
	SessionID   string       `json:"session_id,omitempty"`
	Values      forms.Values `json:"values"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// Sink accepts submissions.
type Sink interface {
	Submit(ctx context.Context, s Submission) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, s Submission) error

// Submit calls f.
func (f Func) Submit(ctx context.Context, s Submission) error {
	return f(ctx, s)
}

// Delivery errors.
var (
	// ErrUnavailable reports a network or destination failure. Retryable.
	ErrUnavailable = errors.New("sink: destination unavailable")

	// ErrCircuitOpen is returned while a failing destination is skipped.
	ErrCircuitOpen = errors.New("sink: circuit breaker is open")
)

// ValidationError is a server-side rejection. Fields maps field names to
// messages; it is never retried.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "sink: submission rejected: " + strings.Join(parts, ", ")
}

// Unavailable wraps a transport error as ErrUnavailable.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Message returns the user-facing text for a delivery error.
func Message(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "The submission was rejected. Please review the highlighted fields."
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrUnavailable):
		return "The submission service is unavailable. Please try again in a moment."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "The submission timed out. Please try again."
	default:
		return "The submission could not be saved. Please try again."
	}
}

// FieldErrors returns the per-field messages carried by err, if any.
func FieldErrors(err error) map[string]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

// Discard accepts and drops every submission.
var Discard Sink = Func(func(context.Context, Submission) error { return nil })
