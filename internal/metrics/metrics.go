package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostalert_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hostalert_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// Scheduler metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hostalert_tick_duration_seconds",
			Help:    "Time taken by one sample-and-evaluate cycle",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	TickErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostalert_tick_errors_total",
			Help: "Total number of ticks whose evaluation returned an error",
		},
	)

	// Sampler metrics
	SampleFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostalert_sample_failures_total",
			Help: "Total number of failed host sub-measurements",
		},
		[]string{"type"},
	)

	HostUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hostalert_host_usage_percent",
			Help: "Latest sampled host utilization",
		},
		[]string{"type"},
	)

	// Alert lifecycle metrics
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostalert_alerts_created_total",
			Help: "Total number of alerts raised",
		},
		[]string{"type"},
	)

	AlertsUpdatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostalert_alerts_updated_total",
			Help: "Total number of value updates applied to active alerts",
		},
		[]string{"type"},
	)

	AlertsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostalert_alerts_resolved_total",
			Help: "Total number of alerts resolved",
		},
		[]string{"type"},
	)

	ActiveAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hostalert_active_alerts",
			Help: "Whether an alert is currently active per type (0 or 1)",
		},
		[]string{"type"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostalert_notifications_total",
			Help: "Total number of alert notifications by sink and outcome",
		},
		[]string{"sink", "status"}, // status: sent, failed, dropped
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostalert_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
