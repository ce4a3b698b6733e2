package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/alert"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/api"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/collector"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/config"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/logger"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/notify"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/store"
)

var version = "dev"

// daemonEnv marks a process started by "start" so it logs JSON to its log file.
const daemonEnv = "HOSTALERT_DAEMON"

const purgeInterval = 10 * time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "start":
		cmdStart(args)
	case "stop":
		cmdStop(args)
	case "status":
		cmdStatus(args)
	case "run":
		// Foreground mode (also used internally by daemon child)
		if err := cmdRun(args, os.Getenv(daemonEnv) == "1"); err != nil {
			fmt.Fprintf(os.Stderr, "hostalert: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("hostalert %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	exe := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, `hostalert: host CPU, memory and disk threshold alerts (%s)

Usage:
  %s <command> [flags]

Commands:
  start          Start daemon (background)
  stop           Stop daemon
  status         Show daemon status
  run            Run in foreground
  version        Print version

Flags:
  -config PATH     Config file path (default: config.yaml)
  -listen ADDR     Listen address (default: 127.0.0.1:9924)
  -db PATH         SQLite database path
  -interval D      Sampling interval (default: 1m)
  -disk-path P     Mount point whose usage is monitored (default: /)
  -log-level L     debug, info, warn or error
  -pid-file P      PID file path
  -log-file P      Log file path

Examples:
  %s run -interval 15s
  %s start -config /etc/hostalert/config.yaml
  %s status
  %s stop
`, version, exe, exe, exe, exe, exe)
}

func mustLoad(args []string) *config.Config {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostalert: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// buildForwardFlags generates flags to forward the loaded config to the child.
func buildForwardFlags(cfg *config.Config) []string {
	return []string{
		"-config", cfg.ConfigPath,
		"-listen", cfg.Listen,
		"-db", cfg.DBPath,
		"-pid-file", cfg.PidFile,
		"-log-file", cfg.LogFile,
		"-log-level", cfg.LogLevel,
		"-interval", cfg.CollectInterval.String(),
		"-disk-path", cfg.DiskPath,
	}
}

// ---------------------------------------------------------------------------
// run: foreground server (also used by daemon child)
// ---------------------------------------------------------------------------

func cmdRun(args []string, isDaemon bool) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, !isDaemon)
	log := logger.WithComponent("main")

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	// Apply DB-persisted settings (override config defaults)
	applyDBSettings(ctx, db, cfg, log)

	thresholds, err := buildThresholds(cfg)
	if err != nil {
		return err
	}

	hub := api.NewHub(logger.WithComponent("ws"))
	go hub.Run(ctx)

	sinks := notify.Multi{notify.NewLogSink(logger.WithComponent("notify")), hub}
	var kafkaSink *notify.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err = notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("kafka sink: %w", err)
		}
		sinks = append(sinks, kafkaSink)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka notifications enabled")
	}
	sink := notify.NewAsync(sinks, 0, logger.WithComponent("notify"))

	engine := alert.NewEngine(thresholds, db,
		alert.WithSink(sink),
		alert.WithLogger(logger.WithComponent("engine")),
	)
	sampler := collector.NewHostSampler(cfg.DiskPath, logger.WithComponent("sampler"))

	sched := collector.NewScheduler(sampler, engine, db, cfg.CollectInterval, logger.WithComponent("scheduler"))
	sched.SetBroadcast(hub.BroadcastSnapshot)
	sched.Start(ctx)

	go runRetentionPurge(ctx, db, cfg.RetentionHours, logger.WithComponent("purge"))

	router := api.NewRouter(api.Deps{
		Store:      db,
		Thresholds: thresholds,
		Sampler:    sampler,
		Scheduler:  sched,
		Hub:        hub,
		Log:        logger.WithComponent("http"),
	})
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("version", version).
			Str("listen", cfg.Listen).
			Dur("interval", sched.Interval()).
			Msg("hostalert listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down...")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("server error")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	sched.Stop()
	sink.Close()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka writer")
		}
	}

	if isDaemon {
		os.Remove(cfg.PidFile)
	}
	log.Info().Msg("goodbye")
	return runErr
}

// buildThresholds seeds the defaults and applies overrides from the config file.
func buildThresholds(cfg *config.Config) (*alert.Thresholds, error) {
	th := alert.NewThresholds()
	for t, o := range cfg.Thresholds {
		if err := th.Set(t, o.Threshold, o.Message); err != nil {
			return nil, fmt.Errorf("threshold %s: %w", t, err)
		}
	}
	return th, nil
}

func applyDBSettings(ctx context.Context, db *store.Store, cfg *config.Config, log zerolog.Logger) {
	if v, err := db.GetSetting(ctx, api.SettingCollectInterval); err == nil && v != "" {
		if d, err := api.ParseInterval(v); err == nil {
			cfg.CollectInterval = d
			log.Info().Dur("interval", d).Msg("collect_interval from DB")
		}
	}
	if v, err := db.GetSetting(ctx, api.SettingRetentionHours); err == nil && v != "" {
		if n, err := api.ParseRetention(v); err == nil {
			cfg.RetentionHours = n
			log.Info().Int("hours", n).Msg("retention_hours from DB")
		}
	}
}

// runRetentionPurge deletes old snapshots. retention_hours changed through
// the settings API takes effect on the next pass.
func runRetentionPurge(ctx context.Context, db *store.Store, hours int, log zerolog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeOnce(ctx, db, hours, log)
		}
	}
}

func purgeOnce(ctx context.Context, db *store.Store, hours int, log zerolog.Logger) int64 {
	if v, err := db.GetSetting(ctx, api.SettingRetentionHours); err == nil && v != "" {
		if n, err := api.ParseRetention(v); err == nil {
			hours = n
		}
	}
	n, err := db.PurgeOlderThan(ctx, hours)
	if err != nil {
		log.Error().Err(err).Msg("purge failed")
		return 0
	}
	if n > 0 {
		log.Info().Int64("rows", n).Int("retention_hours", hours).Msg("removed old snapshots")
	}
	return n
}

// ---------------------------------------------------------------------------
// PID file helpers
// ---------------------------------------------------------------------------

func writePidFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s", path)
	}
	return pid, nil
}
