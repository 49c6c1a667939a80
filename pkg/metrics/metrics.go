// Package metrics keeps edureg's counters and serves them in the Prometheus
// text exposition format.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the application metrics.
type Metrics struct {
	namespace string

	// Wizard lifecycle, labelled by form slug or event name.
	FormsOpened    *CounterVec
	Events         *CounterVec
	Submissions    *CounterVec
	SubmitFailures *CounterVec
	Resets         *CounterVec

	// Delivery
	SinkLatency *Histogram

	// Security
	CSRFRejected *Counter
	RateLimited  *Counter

	mu     sync.RWMutex
	gauges []gaugeFunc
}

type gaugeFunc struct {
	name string
	help string
	fn   func() float64
}

// New creates an empty metrics set. Every metric name is prefixed with
// namespace and an underscore.
func New(namespace string) *Metrics {
	name := func(s string) string { return namespace + "_" + s }
	return &Metrics{
		namespace: namespace,

		FormsOpened:    NewCounterVec(name("forms_opened_total"), "Form pages rendered", "form"),
		Events:         NewCounterVec(name("wizard_events_total"), "Wizard events handled", "event"),
		Submissions:    NewCounterVec(name("submissions_total"), "Forms submitted", "form"),
		SubmitFailures: NewCounterVec(name("submit_failures_total"), "Submissions rejected by a sink", "form"),
		Resets:         NewCounterVec(name("resets_total"), "Wizard resets", "form"),

		SinkLatency: NewHistogram(name("sink_duration_seconds"), "Time spent delivering a submission"),

		CSRFRejected: NewCounter(name("csrf_rejected_total"), "Requests rejected for a bad CSRF token"),
		RateLimited:  NewCounter(name("rate_limited_total"), "Requests rejected by the rate limiter"),
	}
}

// GaugeFunc registers a gauge read from fn at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges = append(m.gauges, gaugeFunc{name: m.namespace + "_" + name, help: help, fn: fn})
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = m.Write(w)
	})
}

// Write writes every metric to w.
func (m *Metrics) Write(w io.Writer) error {
	ew := &errWriter{w: w}

	for _, cv := range []*CounterVec{m.FormsOpened, m.Events, m.Submissions, m.SubmitFailures, m.Resets} {
		cv.write(ew)
	}
	m.CSRFRejected.write(ew)
	m.RateLimited.write(ew)
	m.SinkLatency.write(ew)

	m.mu.RLock()
	gauges := append([]gaugeFunc(nil), m.gauges...)
	m.mu.RUnlock()
	for _, g := range gauges {
		ew.printf("# HELP %s %s\n# TYPE %s gauge\n%s %s\n", g.name, g.help, g.name, g.name, formatValue(g.fn()))
	}
	return ew.err
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// NewCounter creates a new counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds delta, which must not be negative.
func (c *Counter) Add(delta int64) {
	if delta > 0 {
		c.value.Add(delta)
	}
}

// Value returns the current counter value.
func (c *Counter) Value() float64 {
	return float64(c.value.Load())
}

func (c *Counter) write(ew *errWriter) {
	ew.printf("# HELP %s %s\n# TYPE %s counter\n%s %s\n", c.name, c.help, c.name, c.name, formatValue(c.Value()))
}

// CounterVec is a counter with one label.
type CounterVec struct {
	name   string
	help   string
	label  string
	mu     sync.RWMutex
	values map[string]*Counter
}

// NewCounterVec creates a new counter vector.
func NewCounterVec(name, help, label string) *CounterVec {
	return &CounterVec{
		name:   name,
		help:   help,
		label:  label,
		values: make(map[string]*Counter),
	}
}

// WithLabel returns the counter for the given label value.
func (cv *CounterVec) WithLabel(value string) *Counter {
	cv.mu.RLock()
	c, ok := cv.values[value]
	cv.mu.RUnlock()
	if ok {
		return c
	}

	cv.mu.Lock()
	defer cv.mu.Unlock()
	if c, ok := cv.values[value]; ok {
		return c
	}
	c = NewCounter(cv.name, cv.help)
	cv.values[value] = c
	return c
}

// Inc increments the counter for the given label value.
func (cv *CounterVec) Inc(value string) {
	cv.WithLabel(value).Inc()
}

// Value returns the count for one label value.
func (cv *CounterVec) Value(value string) float64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	if c, ok := cv.values[value]; ok {
		return c.Value()
	}
	return 0
}

// Values returns all counter values by label value.
func (cv *CounterVec) Values() map[string]float64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()

	result := make(map[string]float64, len(cv.values))
	for label, counter := range cv.values {
		result[label] = counter.Value()
	}
	return result
}

func (cv *CounterVec) write(ew *errWriter) {
	values := cv.Values()
	labels := make([]string, 0, len(values))
	for l := range values {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	ew.printf("# HELP %s %s\n# TYPE %s counter\n", cv.name, cv.help, cv.name)
	for _, l := range labels {
		ew.printf("%s{%s=%q} %s\n", cv.name, cv.label, l, formatValue(values[l]))
	}
}

// Histogram summarizes observed values as count, sum, min and max.
type Histogram struct {
	name  string
	help  string
	mu    sync.Mutex
	sum   float64
	count int64
	min   float64
	max   float64
}

// NewHistogram creates a new histogram.
func NewHistogram(name, help string) *Histogram {
	return &Histogram{name: name, help: help}
}

// Observe records a value.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 || value < h.min {
		h.min = value
	}
	if h.count == 0 || value > h.max {
		h.max = value
	}
	h.sum += value
	h.count++
}

// ObserveDuration records a duration in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Timer returns a timer that records the elapsed time when stopped.
func (h *Histogram) Timer() *Timer {
	return &Timer{histogram: h, start: time.Now()}
}

// Stats returns histogram statistics.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := HistogramStats{
		Count: h.count,
		Sum:   h.sum,
		Min:   h.min,
		Max:   h.max,
	}
	if h.count > 0 {
		stats.Avg = h.sum / float64(h.count)
	}
	return stats
}

func (h *Histogram) write(ew *errWriter) {
	s := h.Stats()
	ew.printf("# HELP %s %s\n# TYPE %s summary\n", h.name, h.help, h.name)
	ew.printf("%s_sum %s\n%s_count %d\n", h.name, formatValue(s.Sum), h.name, s.Count)
	ew.printf("%s_min %s\n%s_max %s\n", h.name, formatValue(s.Min), h.name, formatValue(s.Max))
}

// HistogramStats contains histogram statistics.
type HistogramStats struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Avg   float64
}

// Timer tracks operation duration.
type Timer struct {
	histogram *Histogram
	start     time.Time
}

// Stop records the elapsed time.
func (t *Timer) Stop() {
	t.histogram.ObserveDuration(time.Since(t.start))
}
