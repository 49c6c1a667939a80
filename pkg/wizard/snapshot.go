package wizard

import "time"

// Snapshot is the persisted form of a controller's state.
type Snapshot struct {
	Form      string            `msgpack:"form" json:"form"`
	Values    map[string]any    `msgpack:"values" json:"values"`
	Errors    map[string]string `msgpack:"errors" json:"errors"`
	Current   int               `msgpack:"current" json:"current"`
	Completed []int             `msgpack:"completed" json:"completed"`
	Submitted bool              `msgpack:"submitted" json:"submitted"`

	// SubmittedAt is zero unless Submitted is set.
	SubmittedAt time.Time `msgpack:"submitted_at,omitempty" json:"submitted_at,omitempty"`
}

// Snapshot captures the current state.
func (c *Controller) Snapshot() Snapshot {
	v := c.View()
	c.mu.Lock()
	at := c.submittedAt
	c.mu.Unlock()
	return Snapshot{
		Form:        v.Schema.Slug,
		Values:      v.Values,
		Errors:      v.Errors,
		Current:     v.Current,
		Completed:   v.Completed,
		Submitted:   v.Submitted,
		SubmittedAt: at,
	}
}

// Restore replaces the state with a snapshot of the same form. Values for
// undeclared fields are dropped and indices are clamped into range. A
// submitted snapshot keeps only what is left of its auto-reset delay; one
// whose delay has already run out is reset at once.
func (c *Controller) Restore(s Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Form != c.schema.Slug {
		return false
	}

	c.resetLocked()

	for name, v := range s.Values {
		if c.schema.Field(name) != nil {
			c.values.Set(name, v)
		}
	}
	for k, msg := range s.Errors {
		c.errors[k] = msg
	}

	n := c.schema.SectionCount()
	for _, i := range s.Completed {
		if i >= 0 && i < n {
			c.completed[i] = true
		}
	}
	c.current = clamp(s.Current, 0, n-1)
	if !c.reachableLocked(c.current) {
		c.current = clamp(c.maxCompletedLocked()+1, 0, n-1)
	}

	if !s.Submitted {
		return true
	}
	c.submitted = true
	c.submittedAt = s.SubmittedAt
	remaining := c.resetDelay
	if !s.SubmittedAt.IsZero() {
		remaining = min(c.resetDelay-c.now().Sub(s.SubmittedAt), c.resetDelay)
	}
	if c.resetDelay > 0 && remaining <= 0 {
		c.resetLocked()
		return true
	}
	c.scheduleResetLocked(remaining)
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
