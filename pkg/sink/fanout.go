package sink

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Named pairs a sink with a name used in errors and health checks.
type Named struct {
	Name string
	Sink Sink
}

// Fanout delivers every submission to all of its sinks concurrently.
// It fails if any sink fails; the errors are joined.
type Fanout struct {
	sinks []Named
}

// NewFanout creates a fan-out sink.
func NewFanout(sinks ...Named) *Fanout {
	return &Fanout{sinks: sinks}
}

// Add appends a sink.
func (f *Fanout) Add(name string, s Sink) {
	f.sinks = append(f.sinks, Named{Name: name, Sink: s})
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Submit delivers to all sinks.
func (f *Fanout) Submit(ctx context.Context, sub Submission) error {
	errs := make([]error, len(f.sinks))

	var g errgroup.Group
	for i, n := range f.sinks {
		g.Go(func() error {
			if err := n.Sink.Submit(ctx, sub); err != nil {
				errs[i] = fmt.Errorf("%s: %w", n.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
