// Package wizard implements the multi-section form controller: field
// updates, per-section validation, gated navigation, submission and the
// deferred auto-reset. It is headless; renderers read a View.
package wizard

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/sink"
)

// FormErrorKey is the ErrorMap key used for errors that belong to the whole
// form rather than a field (e.g. a failed delivery).
const FormErrorKey = "_form"

// DefaultResetDelay is how long the success message stays before the form
// resets itself.
const DefaultResetDelay = 5 * time.Second

// Controller owns the state of one form instance. All methods are safe for
// concurrent use; operations are applied one at a time.
type Controller struct {
	schema     *forms.Schema
	lookup     *forms.LookupTable
	sink       sink.Sink
	scheduler  Scheduler
	resetDelay time.Duration
	sessionID  string
	logger     logging.Logger
	sanitize   func(string) string
	onChange   func()
	now        func() time.Time

	mu        sync.Mutex
	values    forms.Values
	errors    map[string]string
	current   int
	completed map[int]bool
	submitted bool
	timer     Timer

	// submittedAt is when the sink accepted the submission.
	submittedAt time.Time
	// pendingID is reused by a retry after a failed delivery so sinks that
	// did store the first attempt can recognize the duplicate.
	pendingID string
	// generation changes on every reset; a deferred reset from an older
	// generation is ignored.
	generation uint64
	closed     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets where submissions go. The default discards them.
func WithSink(s sink.Sink) Option {
	return func(c *Controller) {
		c.sink = s
	}
}

// WithScheduler replaces the timer source for the auto-reset.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// WithResetDelay sets the auto-reset delay. Zero or negative disables it.
func WithResetDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.resetDelay = d
	}
}

// WithSessionID tags submissions with the owning session.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		c.sessionID = id
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithSanitizer cleans free-text input before it is stored.
func WithSanitizer(fn func(string) string) Option {
	return func(c *Controller) {
		c.sanitize = fn
	}
}

// WithOnChange registers a callback run after state changes that happen
// outside an explicit call, i.e. the deferred auto-reset.
func WithOnChange(fn func()) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithClock replaces the clock used to stamp submissions.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a controller in its initial state. The schema and its lookup
// table are copied; later changes to them do not affect the controller.
func New(schema *forms.Schema, opts ...Option) *Controller {
	schema = schema.Clone()
	c := &Controller{
		schema:     schema,
		lookup:     schema.Lookup,
		sink:       sink.Discard,
		scheduler:  RealScheduler,
		resetDelay: DefaultResetDelay,
		logger:     logging.NopLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.String("form", schema.Slug))
	c.resetLocked()
	return c
}

// Schema returns the controller's schema. It must not be modified.
func (c *Controller) Schema() *forms.Schema {
	return c.schema
}

// UpdateField overwrites a field value and clears its error. Setting the
// lookup key field to a known key also overwrites every dependent field.
// Unknown field names are ignored.
func (c *Controller) UpdateField(name string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.schema.Field(name)
	if f == nil {
		c.logger.Debug("ignoring unknown field", logging.String("field", name))
		return false
	}

	c.values.Set(name, c.clean(*f, value))
	delete(c.errors, name)
	c.pendingID = ""

	if c.lookup != nil && name == c.lookup.KeyField {
		if c.lookup.Apply(c.values, c.values.String(name)) {
			c.logger.Debug("lookup applied", logging.String("key", c.values.String(name)))
		}
	}
	return true
}

// clean normalizes an incoming value. Number fields keep parseable input as
// float64; anything else stays text so validation can report it.
func (c *Controller) clean(f forms.Field, value any) any {
	v := forms.Normalize(value)
	if s, ok := v.(string); ok && f.Multiple {
		lines := forms.SplitLines(s)
		if lines == nil {
			lines = []string{}
		}
		v = lines
	}
	if s, ok := v.(string); ok && f.Type.Numeric() {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			return n
		}
	}
	if c.sanitize == nil || f.Type.Choice() {
		return v
	}
	switch val := v.(type) {
	case string:
		return c.sanitize(val)
	case []string:
		out := make([]string, len(val))
		for i, s := range val {
			out[i] = c.sanitize(s)
		}
		return out
	}
	return v
}

// ValidateSection evaluates the rules of section i and replaces the
// ErrorMap with the result. It reports whether the section is valid.
func (c *Controller) ValidateSection(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked(i)
}

func (c *Controller) validateLocked(i int) bool {
	c.errors = c.schema.ValidateSection(i, c.values)
	return len(c.errors) == 0
}

// Next validates the current section; if valid it is marked completed and
// the controller advances (staying put on the last section).
func (c *Controller) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.validateLocked(c.current) {
		return false
	}
	c.completed[c.current] = true
	if c.current < c.schema.SectionCount()-1 {
		c.current++
	}
	return true
}

// Previous moves back one section, stopping at the first.
func (c *Controller) Previous() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current > 0 {
		c.current--
	}
}

// JumpTo moves to section i if it is reachable: i may be any completed
// section or the one right after the highest completed section. A denied
// jump changes nothing and reports false.
func (c *Controller) JumpTo(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.reachableLocked(i) {
		return false
	}
	c.current = i
	return true
}

func (c *Controller) reachableLocked(i int) bool {
	if i < 0 || i >= c.schema.SectionCount() {
		return false
	}
	return i <= c.maxCompletedLocked()+1
}

func (c *Controller) maxCompletedLocked() int {
	highest := -1
	for i := range c.completed {
		if i > highest {
			highest = i
		}
	}
	return highest
}

// Submit delivers the form to the sink. It does nothing unless the
// controller is on the last section and has not been submitted. Every
// section is validated again; the first invalid one becomes current and
// nothing is sent. The sink is called at most once per successful submit.
// On failure the submitted flag is cleared and the error is recorded under
// FormErrorKey; a retry with unchanged values reuses the submission ID.
// On success an auto-reset is scheduled.
func (c *Controller) Submit(ctx context.Context) (bool, error) {
	c.mu.Lock()
	last := c.schema.SectionCount() - 1
	if c.submitted || c.current != last {
		c.mu.Unlock()
		return false, nil
	}
	for i := 0; i <= last; i++ {
		if !c.validateLocked(i) {
			c.current = i
			c.mu.Unlock()
			return false, nil
		}
	}

	if c.pendingID == "" {
		c.pendingID = uuid.NewString()
	}
	c.submitted = true
	sub := sink.Submission{
		ID:          c.pendingID,
		Form:        c.schema.Slug,
		SessionID:   c.sessionID,
		Values:      c.values.Clone(),
		SubmittedAt: c.now().UTC(),
	}
	gen := c.generation
	c.mu.Unlock()

	err := c.sink.Submit(ctx, sub)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// Reset or closed while the sink was running.
		return err == nil, err
	}
	if err != nil {
		c.submitted = false
		for field, msg := range sink.FieldErrors(err) {
			c.errors[field] = msg
		}
		c.errors[FormErrorKey] = sink.Message(err)
		c.logger.Warn("submission failed", logging.String("submission_id", sub.ID), logging.Err(err))
		return false, err
	}

	c.pendingID = ""
	c.submittedAt = sub.SubmittedAt
	c.logger.Info("form submitted", logging.String("submission_id", sub.ID))
	c.scheduleResetLocked(c.resetDelay)
	return true, nil
}

func (c *Controller) scheduleResetLocked(d time.Duration) {
	if c.resetDelay <= 0 || c.closed {
		return
	}
	gen := c.generation
	c.timer = c.scheduler.AfterFunc(d, func() {
		c.mu.Lock()
		if gen != c.generation || c.closed {
			c.mu.Unlock()
			return
		}
		c.resetLocked()
		cb := c.onChange
		c.mu.Unlock()

		c.logger.Debug("form auto-reset")
		if cb != nil {
			cb()
		}
	})
}

// Reset restores the initial state and cancels a pending auto-reset.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.cancelTimerLocked()
	c.values = c.schema.InitialValues()
	c.errors = map[string]string{}
	c.current = 0
	c.completed = map[int]bool{}
	c.submitted = false
	c.submittedAt = time.Time{}
	c.pendingID = ""
}

func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
}

// Close cancels any pending auto-reset. The controller must not be used
// afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.closed = true
}
