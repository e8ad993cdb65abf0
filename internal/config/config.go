package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr    = ":8080"
	defaultDBPath        = "agentflow.db"
	defaultRecordTTL     = 15 * time.Minute
	defaultSweepInterval = time.Minute
	defaultTimeScale     = 1.0

	envListenAddr     = "AGENTFLOW_LISTEN_ADDR"
	envDBPath         = "AGENTFLOW_DB_PATH"
	envLogLevel       = "AGENTFLOW_LOG_LEVEL"
	envFrameworksFile = "AGENTFLOW_FRAMEWORKS_FILE"
	envRecordTTL      = "AGENTFLOW_RECORD_TTL"
	envSweepInterval  = "AGENTFLOW_SWEEP_INTERVAL"
	envTimeScale      = "AGENTFLOW_TIME_SCALE"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// FrameworksFile optionally points at a YAML file of per-framework
	// adapter settings. See LoadFrameworks.
	FrameworksFile string

	// RecordTTL is how long finished execution records stay queryable in
	// memory. Zero keeps them until shutdown.
	RecordTTL     time.Duration
	SweepInterval time.Duration

	// TimeScale multiplies simulated step durations for every framework the
	// frameworks file gives no time_scale of its own.
	TimeScale float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		LogLevel:      slog.LevelInfo,
		RecordTTL:     defaultRecordTTL,
		SweepInterval: defaultSweepInterval,
		TimeScale:     defaultTimeScale,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envFrameworksFile); v != "" {
		cfg.FrameworksFile = v
	}
	if v := os.Getenv(envRecordTTL); v != "" {
		cfg.RecordTTL = parseDuration(v, defaultRecordTTL)
	}
	if v := os.Getenv(envSweepInterval); v != "" {
		cfg.SweepInterval = parseDuration(v, defaultSweepInterval)
	}
	if v := os.Getenv(envTimeScale); v != "" {
		cfg.TimeScale = parseScale(v, defaultTimeScale)
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseDuration falls back to def for malformed or negative values.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// parseScale falls back to def for malformed, zero or negative values.
func parseScale(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
