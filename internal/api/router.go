package api

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/alert"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/collector"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/store"
)

// Deps are the components the HTTP API reads from and controls.
// Sampler, Scheduler and Hub may be nil.
type Deps struct {
	Store      *store.Store
	Thresholds *alert.Thresholds
	Sampler    collector.Sampler
	Scheduler  *collector.Scheduler
	Hub        *Hub
	Log        zerolog.Logger
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	aa := &alertsAPI{store: d.Store, thresholds: d.Thresholds, log: d.Log}
	ma := &metricsAPI{store: d.Store, sampler: d.Sampler}
	sa := &settingsAPI{store: d.Store, scheduler: d.Scheduler, log: d.Log}

	// Alerts
	mux.HandleFunc("GET /api/v1/alerts", aa.list)
	mux.HandleFunc("GET /api/v1/alerts/thresholds", aa.listThresholds)
	mux.HandleFunc("POST /api/v1/alerts/thresholds", aa.setThreshold)
	mux.HandleFunc("GET /api/v1/alerts/{id}", aa.get)

	// Metrics
	mux.HandleFunc("GET /api/v1/metrics", ma.current)
	mux.HandleFunc("GET /api/v1/metrics/history", ma.history)

	// Settings
	mux.HandleFunc("GET /api/v1/settings", sa.list)
	mux.HandleFunc("PUT /api/v1/settings", sa.update)

	// WebSocket
	if d.Hub != nil {
		mux.HandleFunc("GET /api/v1/ws", d.Hub.HandleWS)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return recovery(d.Log, logging(d.Log, cors(mux)))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
