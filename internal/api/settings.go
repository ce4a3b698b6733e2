package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/collector"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/store"
)

// Runtime setting keys persisted in the settings table.
const (
	SettingCollectInterval = "collect_interval"
	SettingRetentionHours  = "retention_hours"
)

type settingsAPI struct {
	store     *store.Store
	scheduler *collector.Scheduler
	log       zerolog.Logger
}

// ParseInterval accepts a Go duration ("30s") or a whole number of seconds.
func ParseInterval(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		sec, aerr := strconv.Atoi(v)
		if aerr != nil {
			return 0, fmt.Errorf("invalid interval %q", v)
		}
		d = time.Duration(sec) * time.Second
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval must be at least 1s, got %v", d)
	}
	return d, nil
}

// ParseRetention accepts a positive number of hours.
func ParseRetention(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("retention_hours must be a positive integer, got %q", v)
	}
	return n, nil
}

func (a *settingsAPI) list(w http.ResponseWriter, r *http.Request) {
	settings, err := a.store.GetAllSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m := make(map[string]string)
	for _, s := range settings {
		m[s.Key] = s.Value
	}
	if _, ok := m[SettingCollectInterval]; !ok && a.scheduler != nil {
		m[SettingCollectInterval] = a.scheduler.Interval().String()
	}
	if fi, err := os.Stat(a.store.DBPath()); err == nil {
		m["db_size"] = strconv.FormatInt(fi.Size(), 10)
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *settingsAPI) update(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Validate everything before writing anything.
	var interval time.Duration
	keys := make([]string, 0, len(body))
	for k, v := range body {
		switch k {
		case SettingCollectInterval:
			d, err := ParseInterval(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			interval = d
			body[k] = d.String()
		case SettingRetentionHours:
			if _, err := ParseRetention(v); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown setting %q", k))
			return
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := a.store.SetSetting(r.Context(), k, body[k]); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	// Apply collect_interval change to running scheduler
	if interval > 0 && a.scheduler != nil {
		a.scheduler.UpdateInterval(interval)
	}
	a.log.Info().Strs("keys", keys).Msg("settings updated")

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
