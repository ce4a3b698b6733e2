package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/config"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "main.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestForwardFlagsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ConfigPath = filepath.Join(dir, "none.yaml")
	cfg.Listen = "0.0.0.0:7000"
	cfg.DBPath = filepath.Join(dir, "x.db")
	cfg.CollectInterval = 15 * time.Second
	cfg.DiskPath = "/data"

	got, err := config.Load(buildForwardFlags(cfg))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Listen != cfg.Listen || got.DBPath != cfg.DBPath ||
		got.CollectInterval != cfg.CollectInterval || got.DiskPath != cfg.DiskPath {
		t.Errorf("child config = %+v", got)
	}
}

func TestBuildThresholds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Thresholds = map[model.AlertType]model.Threshold{
		model.AlertDisk: {Threshold: 95, Message: "disk nearly full"},
	}
	th, err := buildThresholds(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if d, _ := th.Get(model.AlertDisk); d.Threshold != 95 || d.Message != "disk nearly full" {
		t.Errorf("disk = %+v", d)
	}
	if c, _ := th.Get(model.AlertCPU); c.Threshold != 80 {
		t.Errorf("cpu = %+v, want default", c)
	}

	cfg.Thresholds[model.AlertCPU] = model.Threshold{Threshold: 101}
	if _, err := buildThresholds(cfg); err == nil {
		t.Error("out-of-range override accepted")
	}
}

func TestApplyDBSettings(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	applyDBSettings(ctx, db, cfg, zerolog.Nop())
	if cfg.CollectInterval != time.Minute || cfg.RetentionHours != 24 {
		t.Fatalf("defaults changed without settings: %+v", cfg)
	}

	db.SetSetting(ctx, "collect_interval", "20s")
	db.SetSetting(ctx, "retention_hours", "6")
	applyDBSettings(ctx, db, cfg, zerolog.Nop())
	if cfg.CollectInterval != 20*time.Second || cfg.RetentionHours != 6 {
		t.Errorf("interval = %v retention = %d", cfg.CollectInterval, cfg.RetentionHours)
	}

	db.SetSetting(ctx, "collect_interval", "garbage")
	applyDBSettings(ctx, db, cfg, zerolog.Nop())
	if cfg.CollectInterval != 20*time.Second {
		t.Errorf("invalid stored interval applied: %v", cfg.CollectInterval)
	}
}

func TestPurgeOnceUsesStoredRetention(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	now := time.Now()
	for _, age := range []time.Duration{30 * time.Hour, 3 * time.Hour, time.Minute} {
		if err := db.InsertSnapshot(ctx, &model.MetricSnapshot{Timestamp: now.Add(-age)}); err != nil {
			t.Fatal(err)
		}
	}

	if n := purgeOnce(ctx, db, 24, zerolog.Nop()); n != 1 {
		t.Fatalf("purged %d with 24h retention, want 1", n)
	}
	db.SetSetting(ctx, "retention_hours", "2")
	if n := purgeOnce(ctx, db, 24, zerolog.Nop()); n != 1 {
		t.Errorf("purged %d with stored 2h retention, want 1", n)
	}
}

func TestPidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostalert.pid")
	if _, err := readPidFile(path); err == nil {
		t.Error("missing file read without error")
	}
	if err := writePidFile(path, 4242); err != nil {
		t.Fatal(err)
	}
	pid, err := readPidFile(path)
	if err != nil || pid != 4242 {
		t.Errorf("pid = %d, %v", pid, err)
	}
	os.WriteFile(path, []byte("nope\n"), 0644)
	if _, err := readPidFile(path); err == nil {
		t.Error("invalid pid accepted")
	}
}
