// Package config loads beachwatch configuration from the environment,
// reading a local .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/beachwatch/beachwatch/internal/beachweather/socrata"
	"github.com/beachwatch/beachwatch/internal/database"
)

// History backends.
const (
	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"
)

// DefaultSchedule runs the checks every fifteen minutes.
const DefaultSchedule = "*/15 * * * *"

// Config is the full beachwatch configuration.
type Config struct {
	Env       string
	Port      string
	Log       LogConfig
	Socrata   SocrataConfig
	Monitor   MonitorConfig
	Telemetry TelemetryConfig
	PubSub    PubSubConfig
	Database  database.Config
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  zerolog.Level
	Format string
}

// SocrataConfig points the checks at a SODA resource.
type SocrataConfig struct {
	BaseURL     string
	Dataset     string
	AppToken    string
	Timeout     time.Duration
	Concurrency int
}

// MonitorConfig controls the scheduled monitor.
type MonitorConfig struct {
	Schedule       string
	HistoryBackend string
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// PubSubConfig selects the notification topic. Notifications are logged
// only when ProjectID or Topic is empty.
type PubSubConfig struct {
	ProjectID string
	Topic     string
}

// Enabled reports whether Pub/Sub notifications are configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// Load reads envFiles (default ".env") into the environment without
// overriding variables already set, then builds and validates a Config.
// Missing env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (*Config, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	timeout, err := getEnvDuration("SOCRATA_TIMEOUT", socrata.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	concurrency, err := getEnvInt("CONTRACT_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	otelEnabled, err := getEnvBool("OTEL_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:  getEnvOrDefault("APP_ENV", "development"),
		Port: getEnvOrDefault("APP_PORT", "8080"),
		Log: LogConfig{
			Level:  level,
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Socrata: SocrataConfig{
			BaseURL:     getEnvOrDefault("SOCRATA_BASE_URL", socrata.DefaultBaseURL),
			Dataset:     getEnvOrDefault("SOCRATA_DATASET", socrata.DefaultDataset),
			AppToken:    os.Getenv("SOCRATA_APP_TOKEN"),
			Timeout:     timeout,
			Concurrency: concurrency,
		},
		Monitor: MonitorConfig{
			Schedule:       getEnvOrDefault("MONITOR_SCHEDULE", DefaultSchedule),
			HistoryBackend: getEnvOrDefault("HISTORY_BACKEND", HistoryMemory),
		},
		Telemetry: TelemetryConfig{
			Enabled:      otelEnabled,
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		PubSub: PubSubConfig{
			ProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
			Topic:     os.Getenv("PUBSUB_TOPIC"),
		},
		Database: database.ConfigFromEnv(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be corrected with a default.
func (c *Config) Validate() error {
	var errs []error

	if c.Socrata.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("SOCRATA_TIMEOUT must be positive, got %s", c.Socrata.Timeout))
	}
	if c.Socrata.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("CONTRACT_CONCURRENCY must be at least 1, got %d", c.Socrata.Concurrency))
	}
	if _, err := cron.ParseStandard(c.Monitor.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("MONITOR_SCHEDULE: %w", err))
	}
	switch c.Monitor.HistoryBackend {
	case HistoryMemory, HistoryPostgres:
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND must be %q or %q, got %q", HistoryMemory, HistoryPostgres, c.Monitor.HistoryBackend))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// NewLogger builds the service logger.
func (c *Config) NewLogger(w io.Writer, service, version string) zerolog.Logger {
	if c.Log.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(c.Log.Level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("env", c.Env).
		Logger()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
