package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bidpilot/tenderfeed/internal/cloudsql"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Scraper  ScraperConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig selects the storage backend. An empty URL means the
// in-memory stores.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

// ScraperConfig tunes fetching, scheduling and log retention.
type ScraperConfig struct {
	Interval        time.Duration
	RunOnStart      bool
	FetchTimeout    time.Duration
	MaxAttempts     int
	Backoff         time.Duration
	UserAgent       string
	LogRetention    time.Duration
	CleanupBatch    int
	CleanupSchedule string
	SourcesFile     string
}

// AuthConfig holds operator credentials. Password may be plain text or a
// bcrypt hash.
type AuthConfig struct {
	JWTSecret string
	Password  string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultMaxConnections = 10

	defaultScrapeInterval  = 5 * time.Minute
	defaultFetchTimeout    = 20 * time.Second
	defaultMaxAttempts     = 3
	defaultBackoff         = 2 * time.Second
	defaultUserAgent       = "TenderfeedBot/1.0 (+https://bidpilot.ng/bot; tender ingestion)"
	defaultRetentionDays   = 7
	defaultCleanupBatch    = 500
	defaultCleanupSchedule = "@hourly"

	defaultJWTSecret = "dev-secret-change-me"
	defaultPassword  = "admin"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	dsn, err := cloudsql.DatabaseURL(os.Getenv)
	if err != nil {
		return Config{}, fmt.Errorf("invalid database settings: %w", err)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:            dsn,
			MaxConnections: defaultMaxConnections,
		},
		Scraper: ScraperConfig{
			Interval:        defaultScrapeInterval,
			RunOnStart:      true,
			FetchTimeout:    defaultFetchTimeout,
			MaxAttempts:     defaultMaxAttempts,
			Backoff:         defaultBackoff,
			UserAgent:       getEnv("SCRAPER_USER_AGENT", defaultUserAgent),
			LogRetention:    defaultRetentionDays * 24 * time.Hour,
			CleanupBatch:    defaultCleanupBatch,
			CleanupSchedule: getEnv("CLEANUP_SCHEDULE", defaultCleanupSchedule),
			SourcesFile:     os.Getenv("SOURCES_FILE"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", defaultJWTSecret),
			Password:  getEnv("ADMIN_PASSWORD", defaultPassword),
		},
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeout},
		{"SCRAPE_INTERVAL_SECONDS", &cfg.Scraper.Interval},
		{"FETCH_TIMEOUT_SECONDS", &cfg.Scraper.FetchTimeout},
		{"FETCH_BACKOFF_SECONDS", &cfg.Scraper.Backoff},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := parseSeconds(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.target = parsed
		}
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"DB_MAX_CONNECTIONS", &cfg.Database.MaxConnections},
		{"FETCH_MAX_ATTEMPTS", &cfg.Scraper.MaxAttempts},
		{"LOG_CLEANUP_BATCH", &cfg.Scraper.CleanupBatch},
	}
	for _, i := range ints {
		if v := os.Getenv(i.key); v != "" {
			parsed, err := parsePositiveInt(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", i.key, err)
			}
			*i.target = parsed
		}
	}

	if v := os.Getenv("LOG_RETENTION_DAYS"); v != "" {
		days, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_RETENTION_DAYS: %w", err)
		}
		cfg.Scraper.LogRetention = time.Duration(days) * 24 * time.Hour
	}

	if v := os.Getenv("SCRAPE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPE_ON_START: must be a boolean")
		}
		cfg.Scraper.RunOnStart = b
	}

	if cfg.Scraper.Interval < time.Second {
		return Config{}, fmt.Errorf("invalid SCRAPE_INTERVAL_SECONDS: must be at least 1")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
