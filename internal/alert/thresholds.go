package alert

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
)

// ErrInvalidThreshold is returned when a threshold is outside [0,100].
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

// DefaultMessage returns the built-in message for t.
func DefaultMessage(t model.AlertType) string {
	switch t {
	case model.AlertCPU:
		return "CPU usage is high"
	case model.AlertMemory:
		return "Memory usage is high"
	case model.AlertDisk:
		return "Disk usage is high"
	}
	return ""
}

// DefaultThresholds returns the startup seeds: CPU 80, memory 80, disk 90.
func DefaultThresholds() map[model.AlertType]model.Threshold {
	return map[model.AlertType]model.Threshold{
		model.AlertCPU:    {Threshold: 80, Message: DefaultMessage(model.AlertCPU)},
		model.AlertMemory: {Threshold: 80, Message: DefaultMessage(model.AlertMemory)},
		model.AlertDisk:   {Threshold: 90, Message: DefaultMessage(model.AlertDisk)},
	}
}

// Thresholds is the mutable per-type threshold configuration. It is safe for
// concurrent use; readers never observe a half-written entry.
type Thresholds struct {
	mu    sync.RWMutex
	byTyp map[model.AlertType]model.Threshold
}

// NewThresholds creates a configuration seeded with DefaultThresholds.
func NewThresholds() *Thresholds {
	return &Thresholds{byTyp: DefaultThresholds()}
}

// Set upserts the threshold for t. An empty message falls back to
// DefaultMessage. Invalid input leaves the configuration unchanged.
func (c *Thresholds) Set(t model.AlertType, value float64, message string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", model.ErrUnknownAlertType, t)
	}
	if math.IsNaN(value) || value < 0 || value > 100 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, value)
	}
	if message == "" {
		message = DefaultMessage(t)
	}

	c.mu.Lock()
	c.byTyp[t] = model.Threshold{Threshold: value, Message: message}
	c.mu.Unlock()
	return nil
}

// Remove stops tracking t. Active alerts of that type still resolve.
func (c *Thresholds) Remove(t model.AlertType) {
	c.mu.Lock()
	delete(c.byTyp, t)
	c.mu.Unlock()
}

// Get returns the threshold for t, if one is configured.
func (c *Thresholds) Get(t model.AlertType) (model.Threshold, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	th, ok := c.byTyp[t]
	return th, ok
}

// Snapshot returns a copy of the current configuration.
func (c *Thresholds) Snapshot() map[model.AlertType]model.Threshold {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[model.AlertType]model.Threshold, len(c.byTyp))
	for t, th := range c.byTyp {
		out[t] = th
	}
	return out
}
