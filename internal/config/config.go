package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/logger"
	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
)

// Config holds the application configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	DBPath   string `yaml:"database"`
	PidFile  string `yaml:"pid_file"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	// Sampling
	CollectInterval time.Duration `yaml:"collect_interval"`
	RetentionHours  int           `yaml:"retention_hours"`
	DiskPath        string        `yaml:"disk_path"`

	// Per-type overrides of the default threshold seeds.
	Thresholds map[model.AlertType]model.Threshold `yaml:"thresholds"`

	Kafka KafkaConfig `yaml:"kafka"`

	// Parsed from command line (not YAML)
	ConfigPath string `yaml:"-"`
}

// KafkaConfig enables the Kafka notification sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:9924",
		DBPath:          "hostalert.db",
		PidFile:         "hostalert.pid",
		LogFile:         "hostalert.log",
		LogLevel:        "info",
		CollectInterval: time.Minute,
		RetentionHours:  24,
		DiskPath:        "/",
		Kafka:           KafkaConfig{Topic: "hostalert.alerts"},
		ConfigPath:      "config.yaml",
	}
}

// Load reads configuration with priority: defaults < config.yaml < env vars < flags.
// args excludes the program name and subcommand.
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()
	log := logger.WithComponent("config")

	// 1) Pre-scan for -config flag before parsing (so we know which file to read)
	configPath := cfg.ConfigPath
	for i, arg := range args {
		if arg == "-config" || arg == "--config" {
			if i+1 < len(args) {
				configPath = args[i+1]
			}
		} else if strings.HasPrefix(arg, "-config=") || strings.HasPrefix(arg, "--config=") {
			configPath = strings.SplitN(arg, "=", 2)[1]
		}
	}

	// 2) Load YAML config file; a missing file keeps the defaults.
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
		log.Info().Str("path", configPath).Msg("loaded config file")
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", configPath, err)
	}
	cfg.ConfigPath = configPath

	// 3) Environment variables override YAML
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	// 4) Flags override everything
	fs := flag.NewFlagSet("hostalert", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to config.yaml")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address (host:port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.PidFile, "pid-file", cfg.PidFile, "PID file path")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.DurationVar(&cfg.CollectInterval, "interval", cfg.CollectInterval, "Sampling interval")
	fs.StringVar(&cfg.DiskPath, "disk-path", cfg.DiskPath, "Mount point whose usage is monitored")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("HOSTALERT_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("HOSTALERT_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("HOSTALERT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HOSTALERT_DISK_PATH"); v != "" {
		cfg.DiskPath = v
	}
	if v := os.Getenv("HOSTALERT_COLLECT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HOSTALERT_COLLECT_INTERVAL: %w", err)
		}
		cfg.CollectInterval = d
	}
	if v := os.Getenv("HOSTALERT_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("HOSTALERT_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	return nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.CollectInterval < time.Second {
		return fmt.Errorf("collect_interval must be at least 1s, got %v", c.CollectInterval)
	}
	if c.RetentionHours <= 0 {
		return fmt.Errorf("retention_hours must be positive, got %d", c.RetentionHours)
	}
	for t, th := range c.Thresholds {
		if !t.Valid() {
			return fmt.Errorf("thresholds: %w: %q", model.ErrUnknownAlertType, t)
		}
		if th.Threshold < 0 || th.Threshold > 100 {
			return fmt.Errorf("thresholds.%s: must be between 0 and 100, got %v", t, th.Threshold)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
