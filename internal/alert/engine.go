package alert

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/metrics"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/notify"
)

// Store is the alert persistence the engine depends on.
type Store interface {
	// FindActiveAlertByType returns the active alert of type t, or nil.
	FindActiveAlertByType(ctx context.Context, t model.AlertType) (*model.Alert, error)
	// ListActiveAlerts returns every active alert.
	ListActiveAlerts(ctx context.Context) ([]model.Alert, error)
	// SaveAlert inserts a (ID assigned in place) or updates it by ID.
	SaveAlert(ctx context.Context, a *model.Alert) error
}

// Engine turns metric snapshots into alert create, update and resolve
// operations. It is the only writer of alert state.
type Engine struct {
	thresholds *Thresholds
	store      Store
	sink       notify.Sink
	log        zerolog.Logger
	now        func() time.Time

	// mu serializes ticks so two evaluations never race on the same store.
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the notification sink for newly raised alerts.
func WithSink(s notify.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over thresholds and store.
func NewEngine(thresholds *Thresholds, store Store, opts ...Option) *Engine {
	e := &Engine{
		thresholds: thresholds,
		store:      store,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds returns the configuration the engine evaluates against.
func (e *Engine) Thresholds() *Thresholds { return e.thresholds }

// Tick runs EvaluateTick followed by ResolveRecovered for one snapshot.
// Errors from both passes are joined; a failure in one does not skip the other.
func (e *Engine) Tick(ctx context.Context, snap model.MetricSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.evaluate(ctx, snap), e.resolve(ctx, snap))
}

// EvaluateTick raises or updates alerts for every configured type whose
// snapshot value is strictly above its threshold.
func (e *Engine) EvaluateTick(ctx context.Context, snap model.MetricSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluate(ctx, snap)
}

// ResolveRecovered resolves every active alert, configured or not, whose
// current value is strictly below the threshold stored on the alert.
func (e *Engine) ResolveRecovered(ctx context.Context, snap model.MetricSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolve(ctx, snap)
}

func (e *Engine) evaluate(ctx context.Context, snap model.MetricSnapshot) error {
	var errs []error
	for _, t := range model.AlertTypes() {
		cfg, ok := e.thresholds.Get(t)
		if !ok {
			continue
		}
		value, _ := snap.Value(t)
		if value <= cfg.Threshold {
			continue
		}
		if err := e.checkMetric(ctx, t, value, cfg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) checkMetric(ctx context.Context, t model.AlertType, value float64, cfg model.Threshold) error {
	existing, err := e.store.FindActiveAlertByType(ctx, t)
	if err != nil {
		return fmt.Errorf("find active alert: %w", err)
	}
	now := e.now()

	if existing != nil {
		existing.Value = value
		existing.UpdatedAt = now
		if err := e.store.SaveAlert(ctx, existing); err != nil {
			return fmt.Errorf("update alert %d: %w", existing.ID, err)
		}
		metrics.AlertsUpdatedTotal.WithLabelValues(string(t)).Inc()
		return nil
	}

	a := &model.Alert{
		Type:      t,
		Threshold: cfg.Threshold,
		Value:     value,
		Status:    model.StatusActive,
		Message:   cfg.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.SaveAlert(ctx, a); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	metrics.AlertsCreatedTotal.WithLabelValues(string(t)).Inc()
	metrics.ActiveAlerts.WithLabelValues(string(t)).Set(1)
	e.log.Warn().
		Int64("alert_id", a.ID).
		Str("type", string(t)).
		Float64("value", value).
		Float64("threshold", cfg.Threshold).
		Msgf("alert triggered: %s at %.1f%% (threshold: %g%%)", t, value, cfg.Threshold)

	e.notify(ctx, model.AlertCreatedEvent{
		ID:        uuid.NewString(),
		AlertID:   a.ID,
		Type:      t,
		Value:     value,
		Threshold: cfg.Threshold,
		Message:   cfg.Message,
		Timestamp: now,
	})
	return nil
}

func (e *Engine) resolve(ctx context.Context, snap model.MetricSnapshot) error {
	active, err := e.store.ListActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("list active alerts: %w", err)
	}

	var errs []error
	for i := range active {
		a := &active[i]
		if !a.Active() {
			continue
		}
		current, ok := snap.Value(a.Type)
		if !ok {
			e.log.Warn().Int64("alert_id", a.ID).Str("type", string(a.Type)).Msg("active alert has unknown type, skipping")
			continue
		}
		if current >= a.Threshold {
			continue
		}

		now := e.now()
		a.Status = model.StatusResolved
		a.Value = current
		a.UpdatedAt = now
		a.ResolvedAt = &now
		if err := e.store.SaveAlert(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: resolve alert %d: %w", a.Type, a.ID, err))
			continue
		}
		metrics.AlertsResolvedTotal.WithLabelValues(string(a.Type)).Inc()
		metrics.ActiveAlerts.WithLabelValues(string(a.Type)).Set(0)
		e.log.Info().
			Int64("alert_id", a.ID).
			Str("type", string(a.Type)).
			Float64("value", current).
			Float64("threshold", a.Threshold).
			Msgf("alert resolved: %s at %.1f%% (threshold: %g%%)", a.Type, current, a.Threshold)
	}
	return errors.Join(errs...)
}

// notify hands ev to the sink. Sink errors and panics are logged only.
func (e *Engine) notify(ctx context.Context, ev model.AlertCreatedEvent) {
	if e.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("event_id", ev.ID).
				Msg("notification sink panic recovered")
			metrics.PanicsRecovered.WithLabelValues("engine").Inc()
		}
	}()
	if err := e.sink.Notify(ctx, ev); err != nil {
		e.log.Error().Err(err).Str("event_id", ev.ID).Msg("notification failed")
	}
}
