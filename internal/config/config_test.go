package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Database.URL != "" {
		t.Errorf("expected in-memory storage by default, got %q", cfg.Database.URL)
	}

	s := cfg.Scraper
	if s.Interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", s.Interval)
	}
	if !s.RunOnStart {
		t.Error("expected a scrape on start by default")
	}
	if s.MaxAttempts != 3 || s.Backoff != 2*time.Second {
		t.Errorf("retry defaults = %d attempts, %v step", s.MaxAttempts, s.Backoff)
	}
	if s.FetchTimeout != 20*time.Second {
		t.Errorf("fetch timeout = %v", s.FetchTimeout)
	}
	if s.LogRetention != 7*24*time.Hour || s.CleanupBatch != 500 {
		t.Errorf("retention = %v, batch = %d", s.LogRetention, s.CleanupBatch)
	}
	if s.CleanupSchedule != "@hourly" {
		t.Errorf("cleanup schedule = %q", s.CleanupSchedule)
	}
	if s.UserAgent == "" {
		t.Error("expected a default user agent")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                  "9090",
		"SERVER_WRITE_TIMEOUT_SECONDS": "120",
		"LOG_LEVEL":                    "DEBUG",
		"LOG_FORMAT":                   "text",
		"DATABASE_URL":                 "postgres://tenderfeed@localhost/tenderfeed?sslmode=disable",
		"DB_MAX_CONNECTIONS":           "4",
		"SCRAPE_INTERVAL_SECONDS":      "600",
		"SCRAPE_ON_START":              "false",
		"FETCH_TIMEOUT_SECONDS":        "15",
		"FETCH_MAX_ATTEMPTS":           "5",
		"FETCH_BACKOFF_SECONDS":        "1",
		"SCRAPER_USER_AGENT":           "TestBot/1.0",
		"LOG_RETENTION_DAYS":           "14",
		"LOG_CLEANUP_BATCH":            "100",
		"CLEANUP_SCHEDULE":             "@daily",
		"SOURCES_FILE":                 "/etc/tenderfeed/sources.yaml",
		"ADMIN_JWT_SECRET":             "s3cret",
		"ADMIN_PASSWORD":               "hunter2",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.WriteTimeout != 2*time.Minute {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Logging.Level != slog.LevelDebug || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Database.URL != overrides["DATABASE_URL"] || cfg.Database.MaxConnections != 4 {
		t.Errorf("database = %+v", cfg.Database)
	}

	s := cfg.Scraper
	if s.Interval != 10*time.Minute || s.RunOnStart {
		t.Errorf("schedule = %v, run on start = %v", s.Interval, s.RunOnStart)
	}
	if s.FetchTimeout != 15*time.Second || s.MaxAttempts != 5 || s.Backoff != time.Second {
		t.Errorf("fetch = %v/%d/%v", s.FetchTimeout, s.MaxAttempts, s.Backoff)
	}
	if s.UserAgent != "TestBot/1.0" || s.SourcesFile != "/etc/tenderfeed/sources.yaml" {
		t.Errorf("scraper = %+v", s)
	}
	if s.LogRetention != 14*24*time.Hour || s.CleanupBatch != 100 || s.CleanupSchedule != "@daily" {
		t.Errorf("retention = %v/%d/%s", s.LogRetention, s.CleanupBatch, s.CleanupSchedule)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.Password != "hunter2" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}

func TestLoadPrefersPort(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "7070")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected PORT to win, got %q", cfg.Server.Port)
	}
}

func TestLoadCloudSQL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("INSTANCE_CONNECTION_NAME", "bidpilot:europe-west1:tenders")
	t.Setenv("DB_USER", "tenderfeed")
	t.Setenv("DB_NAME", "tenderfeed")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	want := "host=/cloudsql/bidpilot:europe-west1:tenders user=tenderfeed dbname=tenderfeed sslmode=disable"
	if cfg.Database.URL != want {
		t.Errorf("database url = %q, want %q", cfg.Database.URL, want)
	}

	t.Setenv("DB_USER", "")
	if _, err := Load(); err == nil {
		t.Error("expected error without DB_USER")
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SERVER_READ_TIMEOUT_SECONDS":     "-1",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "abc",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "3.5",
		"LOG_LEVEL":                       "verbose",
		"LOG_FORMAT":                      "xml",
		"SCRAPE_INTERVAL_SECONDS":         "0",
		"SCRAPE_ON_START":                 "maybe",
		"FETCH_MAX_ATTEMPTS":              "0",
		"DB_MAX_CONNECTIONS":              "-3",
		"LOG_RETENTION_DAYS":              "week",
		"LOG_CLEANUP_BATCH":               "0",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s=%q", key, value)
			}
		})
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	tests := map[string]slog.Level{
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	}

	for input, expected := range tests {
		level, err := parseLogLevel(input)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) returned error: %v", input, err)
		}
		if level != expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, level, expected)
		}
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"SERVER_PORT",
		"SERVER_READ_TIMEOUT_SECONDS",
		"SERVER_WRITE_TIMEOUT_SECONDS",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"INSTANCE_CONNECTION_NAME",
		"DB_USER",
		"DB_PASSWORD",
		"DB_NAME",
		"DB_MAX_CONNECTIONS",
		"SCRAPE_INTERVAL_SECONDS",
		"SCRAPE_ON_START",
		"FETCH_TIMEOUT_SECONDS",
		"FETCH_MAX_ATTEMPTS",
		"FETCH_BACKOFF_SECONDS",
		"SCRAPER_USER_AGENT",
		"LOG_RETENTION_DAYS",
		"LOG_CLEANUP_BATCH",
		"CLEANUP_SCHEDULE",
		"SOURCES_FILE",
		"ADMIN_JWT_SECRET",
		"ADMIN_PASSWORD",
	}

	for _, key := range keys {
		t.Setenv(key, "")
	}
}
