package app

import (
	"context"
	"fmt"

	"github.com/hsche/edureg/internal/config"
	"github.com/hsche/edureg/pkg/health"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/metrics"
	"github.com/hsche/edureg/pkg/shutdown"
	"github.com/hsche/edureg/pkg/sink"
)

// ArchiveFile is the SQLite archive inside the data directory.
const ArchiveFile = "submissions.db"

// buildSink assembles the configured sinks into one fan-out. Network
// destinations are wrapped with retries and a circuit breaker whose state
// is reported by the health checker. Delivery time is observed on m.
func buildSink(ctx context.Context, cfg *config.Config, logger logging.Logger, m *metrics.Metrics, sd *shutdown.Handler, checker *health.Checker) (sink.Sink, error) {
	fan := sink.NewFanout()

	reliable := func(name string, next sink.Sink) sink.Sink {
		r := sink.NewReliable(name, next, sink.WithReliableLogger(logger))
		checker.AddCheck("sink_"+name, health.StateCheck(func() string {
			return r.Breaker().State().String()
		}, sink.BreakerClosed.String(), sink.BreakerHalfOpen.String()), 0)
		return r
	}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkLog:
			fan.Add(name, sink.NewLogSink(logger))

		case config.SinkNATS:
			emb, err := sink.StartEmbedded(cfg.Path("nats"))
			if err != nil {
				return nil, fmt.Errorf("starting nats: %w", err)
			}
			sd.RegisterCloser("nats", shutdown.PrioritySinks, emb)

			js, err := sink.NewJetStreamSink(ctx, emb.Conn)
			if err != nil {
				return nil, fmt.Errorf("creating jetstream sink: %w", err)
			}
			fan.Add(name, reliable(name, js))
			logger.Info("publishing submissions", logging.String("stream", sink.StreamName))

		case config.SinkSQLite:
			archive, err := sink.OpenArchive(cfg.Path(ArchiveFile))
			if err != nil {
				return nil, fmt.Errorf("opening archive: %w", err)
			}
			sd.RegisterCloser("archive", shutdown.PriorityStorage, archive)
			checker.AddCriticalCheck("archive", health.PingCheck(archive), 0)
			fan.Add(name, reliable(name, archive))

		default:
			return nil, fmt.Errorf("%w: unknown sink %q", config.ErrInvalid, name)
		}
	}
	return timed(fan, m.SinkLatency), nil
}

func timed(next sink.Sink, h *metrics.Histogram) sink.Sink {
	return sink.Func(func(ctx context.Context, s sink.Submission) error {
		defer h.Timer().Stop()
		return next.Submit(ctx, s)
	})
}
