package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterVec(t *testing.T) {
	cv := NewCounterVec("edureg_submissions_total", "Forms submitted", "form")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cv.Inc("program")
		}()
	}
	wg.Wait()
	cv.Inc("faculty")

	assert.Equal(t, 50.0, cv.Value("program"))
	assert.Equal(t, 1.0, cv.Value("faculty"))
	assert.Equal(t, 0.0, cv.Value("university"))
	assert.Len(t, cv.Values(), 2)
}

func TestCounterIgnoresNegativeDelta(t *testing.T) {
	c := NewCounter("c", "")
	c.Add(3)
	c.Add(-2)
	assert.Equal(t, 3.0, c.Value())
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("h", "")
	assert.Equal(t, HistogramStats{}, h.Stats())

	h.Observe(2)
	h.Observe(0.5)
	h.ObserveDuration(1500 * time.Millisecond)

	s := h.Stats()
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, 4.0, s.Sum)
	assert.Equal(t, 0.5, s.Min)
	assert.Equal(t, 2.0, s.Max)
	assert.InDelta(t, 4.0/3, s.Avg, 1e-9)

	timer := h.Timer()
	timer.Stop()
	assert.Equal(t, int64(4), h.Stats().Count)
}

func TestHandler(t *testing.T) {
	m := New("edureg")
	m.Submissions.Inc("program")
	m.Submissions.Inc("faculty")
	m.Submissions.Inc("program")
	m.Events.Inc("next_step")
	m.CSRFRejected.Inc()
	m.SinkLatency.Observe(0.25)
	m.GaugeFunc("live_sockets", "Open live sockets", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE edureg_submissions_total counter\n",
		"edureg_submissions_total{form=\"faculty\"} 1\nedureg_submissions_total{form=\"program\"} 2\n",
		`edureg_wizard_events_total{event="next_step"} 1`,
		"edureg_csrf_rejected_total 1\n",
		"edureg_sink_duration_seconds_sum 0.25\n",
		"edureg_sink_duration_seconds_count 1\n",
		"# TYPE edureg_live_sockets gauge\nedureg_live_sockets 3\n",
	} {
		assert.Contains(t, body, want)
	}
}
