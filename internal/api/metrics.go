package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/collector"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/store"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type metricsAPI struct {
	store   *store.Store
	sampler collector.Sampler
}

// current returns the most recent stored snapshot. Before the first tick
// has been recorded it takes a fresh sample instead.
func (a *metricsAPI) current(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.LatestSnapshot(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, store.ErrNotFound):
		if a.sampler == nil {
			writeError(w, http.StatusNotFound, "no metrics collected yet")
			return
		}
		writeJSON(w, http.StatusOK, a.sampler.Sample(r.Context()))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *metricsAPI) history(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	snaps, err := a.store.SnapshotHistory(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []model.MetricSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}
