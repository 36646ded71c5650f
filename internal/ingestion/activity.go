package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bidpilot/tenderfeed/internal/clock"
	"github.com/bidpilot/tenderfeed/internal/models"
	"github.com/google/uuid"
)

const (
	defaultRecentLimit = 100
	maxQueryLimit      = 1000
)

// ActivityConfig tunes the read side and housekeeping of the audit log.
type ActivityConfig struct {
	StatsWindow  time.Duration
	Retention    time.Duration
	CleanupBatch int
}

// DefaultActivityConfig returns a 24h stats window, 7 day retention and
// 500 deletions per cleanup call.
func DefaultActivityConfig() ActivityConfig {
	return ActivityConfig{
		StatsWindow:  24 * time.Hour,
		Retention:    7 * 24 * time.Hour,
		CleanupBatch: 500,
	}
}

// ActivityLogger writes scrape audit entries and exposes their read-side
// aggregation. Log never fails or panics into the caller.
type ActivityLogger struct {
	repo   ScrapeLogRepository
	clock  clock.Clock
	logger *slog.Logger
	config ActivityConfig
}

// NewActivityLogger creates an activity logger backed by repo.
func NewActivityLogger(repo ScrapeLogRepository, clk clock.Clock, logger *slog.Logger, cfg ActivityConfig) *ActivityLogger {
	defaults := DefaultActivityConfig()
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = defaults.StatsWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	if cfg.CleanupBatch <= 0 {
		cfg.CleanupBatch = defaults.CleanupBatch
	}
	return &ActivityLogger{repo: repo, clock: clk, logger: logger, config: cfg}
}

// Log appends one entry. Storage failures are reported on the process log
// and otherwise swallowed.
func (a *ActivityLogger) Log(ctx context.Context, source string, action models.LogAction, message string, metadata *models.LogMetadata) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("scrape log append panicked", "source", source, "action", action, "panic", fmt.Sprint(r))
		}
	}()

	entry := models.ScrapeLog{
		ID:        uuid.New().String(),
		Source:    source,
		Action:    action,
		Message:   message,
		Metadata:  metadata,
		Timestamp: a.clock.Now(),
	}

	a.logger.Debug("scrape activity", "source", source, "action", action, "message", message)

	if err := a.repo.Append(ctx, entry); err != nil {
		a.logger.Warn("failed to append scrape log", "source", source, "action", action, "error", err)
	}
}

// Recent returns the newest entries first, optionally for one source.
func (a *ActivityLogger) Recent(ctx context.Context, limit int, source string) ([]models.ScrapeLog, error) {
	return a.repo.QueryRecent(ctx, clampLimit(limit), source)
}

// Since returns entries strictly newer than after, oldest first, so that
// a tailing consumer can pass the last timestamp it saw.
func (a *ActivityLogger) Since(ctx context.Context, after time.Time, limit int) ([]models.ScrapeLog, error) {
	return a.repo.QuerySince(ctx, after, clampLimit(limit))
}

// Stats aggregates the trailing stats window by source.
func (a *ActivityLogger) Stats(ctx context.Context) (map[string]models.SourceStats, error) {
	since := a.clock.Now().Add(-a.config.StatsWindow)
	stats, err := a.repo.QueryStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("query scrape stats: %w", err)
	}
	return stats, nil
}

// Cleanup deletes entries older than the retention window, at most
// CleanupBatch per call.
func (a *ActivityLogger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := a.clock.Now().Add(-a.config.Retention)
	deleted, err := a.repo.DeleteOlderThan(ctx, cutoff, a.config.CleanupBatch)
	if err != nil {
		return 0, fmt.Errorf("delete scrape logs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if deleted > 0 {
		a.logger.Info("pruned scrape logs", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
