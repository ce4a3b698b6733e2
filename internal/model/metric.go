package model

import "time"

// MetricSnapshot is one host utilization reading. Each usage is a percentage in [0,100].
type MetricSnapshot struct {
	ID          int64     `json:"id,omitempty"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	DiskUsage   float64   `json:"disk_usage"`
	Timestamp   time.Time `json:"timestamp"`
}

// Value returns the usage field matching t. ok is false for unknown types.
func (s MetricSnapshot) Value(t AlertType) (v float64, ok bool) {
	switch t {
	case AlertCPU:
		return s.CPUUsage, true
	case AlertMemory:
		return s.MemoryUsage, true
	case AlertDisk:
		return s.DiskUsage, true
	}
	return 0, false
}
