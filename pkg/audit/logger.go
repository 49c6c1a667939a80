// Package audit records an append-only JSON-lines trail of form lifecycle
// and security events.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hsche/edureg/pkg/logging"
)

// Event types.
const (
	EventFormOpened       = "form_opened"
	EventSectionCompleted = "section_completed"
	EventSubmitted        = "submitted"
	EventSubmitFailed     = "submit_failed"
	EventReset            = "reset"
	EventCSRFViolation    = "csrf_violation"
	EventRateLimited      = "rate_limited"
	EventAuthAttempt      = "auth_attempt"
)

// Severity levels.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Event is one audit record.
type Event struct {
	Timestamp    time.Time      `json:"timestamp"`
	Type         string         `json:"type"`
	Severity     string         `json:"severity"`
	Form         string         `json:"form,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	SubmissionID string         `json:"submission_id,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	SourceIP     string         `json:"source_ip,omitempty"`
	Path         string         `json:"path,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// Logger records audit events.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// JSONLogger writes one JSON object per line.
type JSONLogger struct {
	mu      sync.Mutex
	encoder *json.Encoder
	writer  io.Writer
	now     func() time.Time
}

// NewJSONLogger creates a JSON-lines audit logger.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		encoder: json.NewEncoder(w),
		writer:  w,
		now:     time.Now,
	}
}

// OpenFile appends audit records to path.
func OpenFile(path string) (*JSONLogger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return NewJSONLogger(f), nil
}

// Log writes event, filling the timestamp, severity and request id when
// missing.
func (l *JSONLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	if event.RequestID == "" {
		event.RequestID = logging.RequestID(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.encoder.Encode(event); err != nil {
		logging.L(ctx).Warn("audit: encode failed", logging.String("type", event.Type), logging.Err(err))
	}
}

// Close closes the underlying writer if it is a Closer.
func (l *JSONLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.writer.(io.Closer); ok && l.writer != os.Stdout && l.writer != os.Stderr {
		return closer.Close()
	}
	return nil
}

// NopLogger discards events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

// AsyncLogger moves encoding off the request path. When the buffer is full
// the event is written synchronously.
type AsyncLogger struct {
	logger Logger
	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewAsyncLogger wraps logger with a buffered worker.
func NewAsyncLogger(logger Logger, bufferSize int) *AsyncLogger {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	a := &AsyncLogger{
		logger: logger,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.worker()
	return a
}

func (a *AsyncLogger) worker() {
	defer a.wg.Done()
	for {
		select {
		case event := <-a.events:
			a.logger.Log(context.Background(), event)
		case <-a.done:
			for {
				select {
				case event := <-a.events:
					a.logger.Log(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Log queues event. Context values are resolved before queueing.
func (a *AsyncLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = logging.RequestID(ctx)
	}
	select {
	case a.events <- event:
	default:
		a.logger.Log(ctx, event)
	}
}

// Close flushes queued events and closes the wrapped logger.
func (a *AsyncLogger) Close() error {
	a.once.Do(func() { close(a.done) })
	a.wg.Wait()
	return a.logger.Close()
}
