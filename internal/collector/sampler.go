package collector

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/metrics"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
)

var errNoData = errors.New("no data returned")

// HostSampler reads CPU, memory and disk utilization through gopsutil.
type HostSampler struct {
	diskPath string
	log      zerolog.Logger

	mu        sync.Mutex
	prevTimes *cpu.TimesStat // previous total CPU times for delta calculation
	last      model.MetricSnapshot

	// Overridable readers for testing.
	cpuTimes      func(ctx context.Context, perCPU bool) ([]cpu.TimesStat, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	now           func() time.Time
}

// NewHostSampler creates a sampler reporting usage of the filesystem mounted at diskPath.
func NewHostSampler(diskPath string, log zerolog.Logger) *HostSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostSampler{
		diskPath:      diskPath,
		log:           log,
		cpuTimes:      cpu.TimesWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		now:           time.Now,
	}
}

// Sample takes one reading. A failed sub-measurement keeps its last known
// value (zero before the first success) and logs a warning.
func (h *HostSampler) Sample(ctx context.Context) model.MetricSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := h.last
	snap.ID = 0

	if v, ok := h.readCPU(ctx); ok {
		snap.CPUUsage = v
	}
	if v, ok := h.readMemory(ctx); ok {
		snap.MemoryUsage = v
	}
	if v, ok := h.readDisk(ctx); ok {
		snap.DiskUsage = v
	}

	ts := h.now()
	if ts.Before(h.last.Timestamp) {
		ts = h.last.Timestamp
	}
	snap.Timestamp = ts
	h.last = snap

	metrics.HostUsage.WithLabelValues(string(model.AlertCPU)).Set(snap.CPUUsage)
	metrics.HostUsage.WithLabelValues(string(model.AlertMemory)).Set(snap.MemoryUsage)
	metrics.HostUsage.WithLabelValues(string(model.AlertDisk)).Set(snap.DiskUsage)
	return snap
}

// readCPU returns busy% since the previous call, or since boot on the first.
func (h *HostSampler) readCPU(ctx context.Context) (float64, bool) {
	times, err := h.cpuTimes(ctx, false)
	if err == nil && len(times) == 0 {
		err = errNoData
	}
	if err != nil {
		h.warn(model.AlertCPU, err)
		return 0, false
	}
	cur := times[0]
	prev := h.prevTimes
	h.prevTimes = &cur

	busy, total := busyTotal(cur)
	if prev != nil {
		pBusy, pTotal := busyTotal(*prev)
		busy, total = busy-pBusy, total-pTotal
	}
	if total <= 0 {
		// No elapsed ticks between calls; keep the previous reading.
		return 0, false
	}
	return clampPct(busy / total * 100), true
}

func (h *HostSampler) readMemory(ctx context.Context) (float64, bool) {
	vm, err := h.virtualMemory(ctx)
	if err == nil && vm == nil {
		err = errNoData
	}
	if err != nil {
		h.warn(model.AlertMemory, err)
		return 0, false
	}
	return clampPct(vm.UsedPercent), true
}

func (h *HostSampler) readDisk(ctx context.Context) (float64, bool) {
	usage, err := h.diskUsage(ctx, h.diskPath)
	if err == nil && usage == nil {
		err = errNoData
	}
	if err != nil {
		h.warn(model.AlertDisk, err)
		return 0, false
	}
	return clampPct(usage.UsedPercent), true
}

func (h *HostSampler) warn(t model.AlertType, err error) {
	metrics.SampleFailuresTotal.WithLabelValues(string(t)).Inc()
	h.log.Warn().Err(err).Str("type", string(t)).Msg("measurement failed, using last known value")
}

func busyTotal(t cpu.TimesStat) (busy, total float64) {
	idle := t.Idle + t.Iowait
	busy = t.User + t.System + t.Nice + t.Irq + t.Softirq + t.Steal
	return busy, busy + idle
}

func clampPct(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
