package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownAlertType is returned when a string does not name a monitored resource.
var ErrUnknownAlertType = errors.New("unknown alert type")

// AlertType identifies the monitored resource dimension of an alert.
type AlertType string

const (
	AlertCPU    AlertType = "cpu"
	AlertMemory AlertType = "memory"
	AlertDisk   AlertType = "disk"
)

// AlertTypes returns every monitored resource type in evaluation order.
func AlertTypes() []AlertType {
	return []AlertType{AlertCPU, AlertMemory, AlertDisk}
}

// Valid reports whether t is one of the monitored resource types.
func (t AlertType) Valid() bool {
	switch t {
	case AlertCPU, AlertMemory, AlertDisk:
		return true
	}
	return false
}

// ParseAlertType converts a case-insensitive name into an AlertType.
func ParseAlertType(s string) (AlertType, error) {
	t := AlertType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlertType, s)
	}
	return t, nil
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusActive   AlertStatus = "active"
	StatusResolved AlertStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s AlertStatus) Valid() bool {
	return s == StatusActive || s == StatusResolved
}

// Alert is a persisted threshold breach. Only Value changes while the alert is
// active; Status and ResolvedAt change once, on recovery.
type Alert struct {
	ID         int64       `json:"id"`
	Type       AlertType   `json:"type"`
	Threshold  float64     `json:"threshold"`
	Value      float64     `json:"value"`
	Status     AlertStatus `json:"status"`
	Message    string      `json:"message"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	ResolvedAt *time.Time  `json:"resolved_at"`
}

// Active reports whether the breach has not yet been observed to recover.
func (a *Alert) Active() bool { return a.Status == StatusActive }

// Threshold is the configured breach level and message for one alert type.
type Threshold struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Message   string  `json:"message" yaml:"message"`
}

// AlertCreatedEvent is emitted once when a new alert is raised.
type AlertCreatedEvent struct {
	ID        string    `json:"id"`
	AlertID   int64     `json:"alert_id"`
	Type      AlertType `json:"type"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
