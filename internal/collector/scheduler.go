package collector

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/metrics"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
)

// Evaluator consumes one snapshot per tick.
type Evaluator interface {
	Tick(ctx context.Context, snap model.MetricSnapshot) error
}

// Recorder persists snapshots for history queries.
type Recorder interface {
	InsertSnapshot(ctx context.Context, snap *model.MetricSnapshot) error
}

// BroadcastFunc is called with each snapshot for real-time streaming.
type BroadcastFunc func(snap model.MetricSnapshot)

// Scheduler samples the host and evaluates alerts at a fixed interval.
// Ticks never overlap: a tick that overruns the interval causes the missed
// ticker fire to be dropped.
type Scheduler struct {
	sampler   Sampler
	evaluator Evaluator
	recorder  Recorder
	log       zerolog.Logger

	mu         sync.Mutex
	interval   time.Duration
	broadcast  BroadcastFunc
	cancel     context.CancelFunc
	done       chan struct{}
	intervalCh chan time.Duration // signals the loop to reset the ticker
}

// NewScheduler creates a scheduler. recorder may be nil.
func NewScheduler(sampler Sampler, evaluator Evaluator, recorder Recorder, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval < time.Second {
		interval = time.Second
	}
	return &Scheduler{
		sampler:    sampler,
		evaluator:  evaluator,
		recorder:   recorder,
		log:        log,
		interval:   interval,
		intervalCh: make(chan time.Duration, 1),
	}
}

// SetBroadcast sets the function called with each snapshot.
func (s *Scheduler) SetBroadcast(fn BroadcastFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = fn
}

// Interval returns the current tick interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Start begins the tick loop. It runs one tick immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.interval, s.done)
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("scheduler stopped")
}

// UpdateInterval changes the tick interval at runtime. Values below one
// second are raised to one second.
func (s *Scheduler) UpdateInterval(d time.Duration) {
	if d < time.Second {
		d = time.Second
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()

	// Non-blocking send to notify the loop; drop a stale pending value first.
	select {
	case <-s.intervalCh:
	default:
	}
	select {
	case s.intervalCh <- d:
	default:
	}
	s.log.Info().Dur("interval", d).Msg("interval updated")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("scheduler started")
	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.intervalCh:
			ticker.Reset(d)
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// runTick performs one sample-and-evaluate cycle. The work runs on a context
// detached from cancellation so Stop never interrupts a tick halfway.
func (s *Scheduler) runTick(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("tick panic recovered")
			metrics.PanicsRecovered.WithLabelValues("scheduler").Inc()
		}
	}()

	snap := s.sampler.Sample(ctx)

	if s.recorder != nil {
		if err := s.recorder.InsertSnapshot(ctx, &snap); err != nil {
			s.log.Error().Err(err).Msg("store snapshot failed")
		}
	}

	s.mu.Lock()
	fn := s.broadcast
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}

	if err := s.evaluator.Tick(ctx, snap); err != nil {
		metrics.TickErrorsTotal.Inc()
		s.log.Error().Err(err).Msg("alert evaluation failed")
		return
	}
	s.log.Debug().
		Float64("cpu", snap.CPUUsage).
		Float64("memory", snap.MemoryUsage).
		Float64("disk", snap.DiskUsage).
		Dur("took", time.Since(start)).
		Msg("tick complete")
}
