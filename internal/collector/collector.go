package collector

import (
	"context"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
)

// Sampler produces one host utilization snapshot per call. Implementations
// never fail: a measurement that cannot be taken degrades to a fallback value.
type Sampler interface {
	Sample(ctx context.Context) model.MetricSnapshot
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(ctx context.Context) model.MetricSnapshot

// Sample calls f.
func (f SamplerFunc) Sample(ctx context.Context) model.MetricSnapshot { return f(ctx) }
