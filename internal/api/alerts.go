package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/alert"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/store"
)

var validate = validator.New()

type alertsAPI struct {
	store      *store.Store
	thresholds *alert.Thresholds
	log        zerolog.Logger
}

// setThresholdRequest is the body of POST /api/v1/alerts/thresholds.
type setThresholdRequest struct {
	Type      string   `json:"type" validate:"required,oneof=cpu memory disk"`
	Threshold *float64 `json:"threshold" validate:"required,gte=0,lte=100"`
	Message   string   `json:"message" validate:"omitempty,max=256"`
}

func (a *alertsAPI) list(w http.ResponseWriter, r *http.Request) {
	status := model.AlertStatus(strings.ToLower(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be active or resolved")
		return
	}

	alerts, err := a.store.ListAlerts(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *alertsAPI) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	al, err := a.store.GetAlert(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, al)
}

func (a *alertsAPI) listThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"thresholds": a.thresholds.Snapshot(),
	})
}

func (a *alertsAPI) setThreshold(w http.ResponseWriter, r *http.Request) {
	var req setThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "validation failed",
			"details": err.Error(),
		})
		return
	}

	t := model.AlertType(req.Type)
	if err := a.thresholds.Set(t, *req.Threshold, req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	th, _ := a.thresholds.Get(t)
	a.log.Info().
		Str("type", string(t)).
		Float64("threshold", th.Threshold).
		Msg("threshold updated")

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"type":      t,
		"threshold": th.Threshold,
		"message":   th.Message,
	})
}
