package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/metrics"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
)

// Sink receives alert-created events. Implementations are best effort; the
// engine logs a returned error and carries on.
type Sink interface {
	Notify(ctx context.Context, ev model.AlertCreatedEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev model.AlertCreatedEvent) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, ev model.AlertCreatedEvent) error { return f(ctx, ev) }

// LogSink writes each event as a warning.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink that logs events through log.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Notify logs the event.
func (s *LogSink) Notify(_ context.Context, ev model.AlertCreatedEvent) error {
	s.log.Warn().
		Str("event_id", ev.ID).
		Int64("alert_id", ev.AlertID).
		Str("type", string(ev.Type)).
		Float64("value", ev.Value).
		Float64("threshold", ev.Threshold).
		Msgf("[ALERT] %s: %s is at %.1f%% (threshold: %g%%)", ev.Message, ev.Type, ev.Value, ev.Threshold)
	metrics.NotificationsTotal.WithLabelValues("log", "sent").Inc()
	return nil
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

// Notify delivers ev to all sinks, even when an earlier one fails.
func (m Multi) Notify(ctx context.Context, ev model.AlertCreatedEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
