package notify

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/metrics"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
)

// ErrQueueFull is returned by Async.Notify when the event had to be dropped.
var ErrQueueFull = errors.New("notification queue full")

const (
	defaultQueueSize     = 64
	defaultNotifyTimeout = 10 * time.Second
)

// Async delivers events to an inner sink on a background goroutine so Notify
// never blocks the caller. Events are dropped when the queue is full.
type Async struct {
	inner   Sink
	queue   chan model.AlertCreatedEvent
	timeout time.Duration
	log     zerolog.Logger

	once sync.Once
	wg   sync.WaitGroup
}

// NewAsync starts the delivery goroutine. queueSize <= 0 selects the default.
func NewAsync(inner Sink, queueSize int, log zerolog.Logger) *Async {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	a := &Async{
		inner:   inner,
		queue:   make(chan model.AlertCreatedEvent, queueSize),
		timeout: defaultNotifyTimeout,
		log:     log,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Notify enqueues ev without blocking.
func (a *Async) Notify(_ context.Context, ev model.AlertCreatedEvent) error {
	select {
	case a.queue <- ev:
		return nil
	default:
		metrics.NotificationsTotal.WithLabelValues("async", "dropped").Inc()
		return ErrQueueFull
	}
}

// Close stops accepting events, drains the queue and waits for delivery to finish.
// Notify must not be called after Close.
func (a *Async) Close() error {
	a.once.Do(func() { close(a.queue) })
	a.wg.Wait()
	return nil
}

func (a *Async) run() {
	defer a.wg.Done()
	for ev := range a.queue {
		a.deliver(ev)
	}
}

func (a *Async) deliver(ev model.AlertCreatedEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("notification sink panic recovered")
			metrics.PanicsRecovered.WithLabelValues("notify").Inc()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.inner.Notify(ctx, ev); err != nil {
		a.log.Error().Err(err).Str("event_id", ev.ID).Msg("notification delivery failed")
		metrics.NotificationsTotal.WithLabelValues("async", "failed").Inc()
	}
}
