package alert

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/notify"
)

// memStore is an in-memory Store that rejects a second active alert per type.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	alerts  map[int64]model.Alert
	saveErr error
	findErr error
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[int64]model.Alert)}
}

func (m *memStore) FindActiveAlertByType(_ context.Context, t model.AlertType) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.alerts {
		if a.Type == t && a.Status == model.StatusActive {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListActiveAlerts(_ context.Context) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Alert
	for _, a := range m.alerts {
		if a.Status == model.StatusActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SaveAlert(_ context.Context, a *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if a.Status == model.StatusActive {
		for id, other := range m.alerts {
			if id != a.ID && other.Type == a.Type && other.Status == model.StatusActive {
				return errors.New("duplicate active alert")
			}
		}
	}
	if a.ID == 0 {
		m.nextID++
		a.ID = m.nextID
	}
	m.alerts[a.ID] = *a
	return nil
}

func (m *memStore) all() []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) activeCount(t model.AlertType) int {
	n := 0
	for _, a := range m.all() {
		if a.Type == t && a.Status == model.StatusActive {
			n++
		}
	}
	return n
}

type captureSink struct {
	mu     sync.Mutex
	events []model.AlertCreatedEvent
}

func (c *captureSink) Notify(_ context.Context, ev model.AlertCreatedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type fixture struct {
	engine *Engine
	store  *memStore
	sink   *captureSink
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		sink:  &captureSink{},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(NewThresholds(), f.store,
		WithSink(f.sink),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

// snap returns a snapshot with the given cpu usage and memory/disk at zero.
func snap(cpu float64) model.MetricSnapshot {
	return model.MetricSnapshot{CPUUsage: cpu}
}

func (f *fixture) tick(t *testing.T, s model.MetricSnapshot) {
	t.Helper()
	f.now = f.now.Add(time.Minute)
	if err := f.engine.Tick(context.Background(), s); err != nil {
		t.Fatalf("Tick: %v", err)
	}
}

func TestTickCreatesAlert(t *testing.T) {
	f := newFixture(t)
	f.tick(t, snap(85))

	all := f.store.all()
	if len(all) != 1 {
		t.Fatalf("alerts = %d, want 1", len(all))
	}
	a := all[0]
	if a.Type != model.AlertCPU || a.Threshold != 80 || a.Value != 85 || a.Status != model.StatusActive {
		t.Errorf("alert = %+v", a)
	}
	if a.Message != "CPU usage is high" {
		t.Errorf("message = %q", a.Message)
	}
	if !a.CreatedAt.Equal(f.now) || a.ResolvedAt != nil {
		t.Errorf("createdAt = %v resolvedAt = %v", a.CreatedAt, a.ResolvedAt)
	}
	if f.sink.len() != 1 {
		t.Fatalf("notifications = %d, want 1", f.sink.len())
	}
	ev := f.sink.events[0]
	if ev.AlertID != a.ID || ev.Value != 85 || ev.Threshold != 80 || ev.ID == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestTickUpdatesWithoutDuplicating(t *testing.T) {
	f := newFixture(t)
	f.tick(t, snap(85))
	created := f.store.all()[0]
	f.tick(t, snap(90))

	all := f.store.all()
	if len(all) != 1 {
		t.Fatalf("alerts = %d, want 1", len(all))
	}
	if all[0].ID != created.ID || all[0].Value != 90 || all[0].Status != model.StatusActive {
		t.Errorf("alert = %+v", all[0])
	}
	if !all[0].UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updatedAt not advanced: %v -> %v", created.UpdatedAt, all[0].UpdatedAt)
	}
	if f.sink.len() != 1 {
		t.Errorf("notifications = %d, want 1 (updates must not notify)", f.sink.len())
	}
}

func TestTickResolvesOnRecovery(t *testing.T) {
	f := newFixture(t)
	f.tick(t, snap(85))
	f.tick(t, snap(90))
	f.tick(t, snap(70))

	a := f.store.all()[0]
	if a.Status != model.StatusResolved {
		t.Fatalf("status = %s, want resolved", a.Status)
	}
	if a.ResolvedAt == nil || !a.ResolvedAt.Equal(f.now) {
		t.Errorf("resolvedAt = %v, want %v", a.ResolvedAt, f.now)
	}
	if a.Value != 70 {
		t.Errorf("value = %v, want 70", a.Value)
	}
	if f.sink.len() != 1 {
		t.Errorf("notifications = %d, want 1 (resolution must not notify)", f.sink.len())
	}
}

func TestTickBoundaryIsStrict(t *testing.T) {
	f := newFixture(t)
	f.tick(t, snap(80))
	if n := len(f.store.all()); n != 0 {
		t.Fatalf("value equal to threshold created %d alerts", n)
	}

	f.tick(t, snap(81))
	f.tick(t, snap(80))
	a := f.store.all()[0]
	if a.Status != model.StatusActive {
		t.Errorf("value equal to threshold resolved alert: %+v", a)
	}
	if a.Value != 81 {
		t.Errorf("value = %v, want 81 (equal value is neither update nor resolution)", a.Value)
	}
}

func TestTickUsesStoredThresholdForResolution(t *testing.T) {
	f := newFixture(t)
	f.tick(t, snap(85)) // stored threshold 80

	if err := f.engine.Thresholds().Set(model.AlertCPU, 60, ""); err != nil {
		t.Fatal(err)
	}
	f.tick(t, snap(75)) // above new threshold: update only, 75 < 80 resolves

	a := f.store.all()[0]
	if a.Status != model.StatusResolved || a.Value != 75 {
		t.Errorf("alert = %+v, want resolved at 75", a)
	}
}

func TestTickRaisedThresholdSkipsCreation(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Thresholds().Set(model.AlertDisk, 95, ""); err != nil {
		t.Fatal(err)
	}
	f.tick(t, model.MetricSnapshot{DiskUsage: 92})
	if n := len(f.store.all()); n != 0 {
		t.Errorf("alerts = %d, want 0 (92 < 95)", n)
	}
}

func TestTickResolvesAlertWhoseThresholdWasRemoved(t *testing.T) {
	f := newFixture(t)
	f.tick(t, model.MetricSnapshot{MemoryUsage: 95})
	f.engine.Thresholds().Remove(model.AlertMemory)

	f.tick(t, model.MetricSnapshot{MemoryUsage: 96})
	if a := f.store.all()[0]; a.Value != 95 {
		t.Errorf("untracked type updated: value = %v, want 95", a.Value)
	}

	f.tick(t, model.MetricSnapshot{MemoryUsage: 10})
	if a := f.store.all()[0]; a.Status != model.StatusResolved {
		t.Errorf("status = %s, want resolved", a.Status)
	}
}

func TestResolveRecoveredIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.tick(t, snap(85))
	f.tick(t, snap(70))
	first := f.store.all()[0]

	f.now = f.now.Add(time.Hour)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := f.engine.ResolveRecovered(ctx, snap(10)); err != nil {
			t.Fatalf("ResolveRecovered: %v", err)
		}
	}
	again := f.store.all()[0]
	if !again.ResolvedAt.Equal(*first.ResolvedAt) || again.Value != first.Value {
		t.Errorf("resolved alert changed: %+v -> %+v", first, again)
	}
}

func TestTickNewAlertAfterResolution(t *testing.T) {
	f := newFixture(t)
	f.tick(t, snap(85))
	f.tick(t, snap(50))
	f.tick(t, snap(99))

	all := f.store.all()
	if len(all) != 2 {
		t.Fatalf("alerts = %d, want 2", len(all))
	}
	if all[0].Status != model.StatusResolved || all[1].Status != model.StatusActive {
		t.Errorf("statuses = %s, %s", all[0].Status, all[1].Status)
	}
	if f.sink.len() != 2 {
		t.Errorf("notifications = %d, want 2", f.sink.len())
	}
}

func TestTickTracksTypesIndependently(t *testing.T) {
	f := newFixture(t)
	f.tick(t, model.MetricSnapshot{CPUUsage: 90, MemoryUsage: 85, DiskUsage: 95})
	f.tick(t, model.MetricSnapshot{CPUUsage: 10, MemoryUsage: 88, DiskUsage: 96})

	for _, typ := range model.AlertTypes() {
		want := 1
		if typ == model.AlertCPU {
			want = 0
		}
		if got := f.store.activeCount(typ); got != want {
			t.Errorf("%s active = %d, want %d", typ, got, want)
		}
	}
}

func TestTickInvariantHoldsAcrossSequence(t *testing.T) {
	f := newFixture(t)
	values := []float64{10, 85, 90, 80, 79, 81, 100, 0, 80, 80.1, 95}
	for _, v := range values {
		f.tick(t, model.MetricSnapshot{CPUUsage: v, MemoryUsage: v, DiskUsage: v})
		for _, typ := range model.AlertTypes() {
			if n := f.store.activeCount(typ); n > 1 {
				t.Fatalf("after %v: %d active %s alerts", v, n, typ)
			}
		}
	}
}

func TestTickConcurrentCallsKeepInvariant(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.engine.Tick(context.Background(), snap(95))
		}()
	}
	wg.Wait()
	if n := f.store.activeCount(model.AlertCPU); n != 1 {
		t.Errorf("active cpu alerts = %d, want 1", n)
	}
	if f.sink.len() != 1 {
		t.Errorf("notifications = %d, want 1", f.sink.len())
	}
}

func TestTickPropagatesStoreErrors(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("disk full")
	f.store.saveErr = cause

	err := f.engine.Tick(context.Background(), snap(85))
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want %v", err, cause)
	}
	if f.sink.len() != 0 {
		t.Error("notified for an alert that was never persisted")
	}

	// The next tick re-reads state and succeeds once the store recovers.
	f.store.saveErr = nil
	f.tick(t, snap(85))
	if n := f.store.activeCount(model.AlertCPU); n != 1 {
		t.Errorf("active cpu alerts = %d, want 1", n)
	}
}

func TestTickFindErrorDoesNotBlockOtherPasses(t *testing.T) {
	f := newFixture(t)
	f.tick(t, snap(85))
	f.store.findErr = errors.New("read failed")

	err := f.engine.Tick(context.Background(), snap(10))
	if err != nil {
		t.Fatalf("below-threshold tick should not look up alerts: %v", err)
	}
	if a := f.store.all()[0]; a.Status != model.StatusResolved {
		t.Errorf("status = %s, want resolved", a.Status)
	}
}

func TestTickEmptyStoreAndNoConfig(t *testing.T) {
	store := newMemStore()
	th := NewThresholds()
	for _, typ := range model.AlertTypes() {
		th.Remove(typ)
	}
	e := NewEngine(th, store)
	if err := e.Tick(context.Background(), model.MetricSnapshot{CPUUsage: 100, MemoryUsage: 100, DiskUsage: 100}); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(store.all()) != 0 {
		t.Error("alerts created without configuration")
	}
}

func TestTickSinkFailureDoesNotAbort(t *testing.T) {
	store := newMemStore()
	failing := notify.SinkFunc(func(ctx context.Context, ev model.AlertCreatedEvent) error {
		return errors.New("webhook down")
	})
	panicking := notify.SinkFunc(func(ctx context.Context, ev model.AlertCreatedEvent) error {
		panic("boom")
	})

	for _, sink := range []notify.Sink{failing, panicking} {
		e := NewEngine(NewThresholds(), newMemStore(), WithSink(sink))
		if err := e.Tick(context.Background(), model.MetricSnapshot{CPUUsage: 90, MemoryUsage: 90, DiskUsage: 95}); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}

	e := NewEngine(NewThresholds(), store, WithSink(panicking))
	e.Tick(context.Background(), model.MetricSnapshot{CPUUsage: 90, MemoryUsage: 90, DiskUsage: 95})
	for _, typ := range model.AlertTypes() {
		if n := store.activeCount(typ); n != 1 {
			t.Errorf("%s active = %d, want 1", typ, n)
		}
	}
}
