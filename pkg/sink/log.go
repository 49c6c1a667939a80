package sink

import (
	"context"

	"github.com/hsche/edureg/pkg/logging"
)

// LogSink writes each submission to the structured log.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a log sink. A nil logger uses the default logger.
func NewLogSink(logger logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger.With(logging.String("sink", "log"))}
}

// Submit logs the submission.
func (s *LogSink) Submit(ctx context.Context, sub Submission) error {
	s.logger.WithContext(ctx).Info("form submitted",
		logging.String("submission_id", sub.ID),
		logging.String("form", sub.Form),
		logging.String("session_id", sub.SessionID),
		logging.Any("values", sub.Values),
	)
	return nil
}
