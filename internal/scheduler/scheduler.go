// Package scheduler runs the registered tender sources one after another,
// on a cron interval or on demand, and prunes the scrape log on a schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bidpilot/tenderfeed/internal/clock"
	"github.com/bidpilot/tenderfeed/internal/models"
)

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerInterval Trigger = "interval"
	TriggerManual   Trigger = "manual"
	TriggerStartup  Trigger = "startup"
)

// ActivityLog is the audit log the scheduler writes to and prunes.
type ActivityLog interface {
	Log(ctx context.Context, source string, action models.LogAction, message string, metadata *models.LogMetadata)
	Cleanup(ctx context.Context) (int64, error)
}

// CycleRecorder receives per-cycle measurements.
type CycleRecorder interface {
	Cycle(trigger string, results []models.ScrapeResult, duration time.Duration)
}

// Config controls the unattended triggers.
type Config struct {
	Interval        time.Duration
	RunOnStart      bool
	CleanupSchedule string
}

// DefaultConfig returns a five minute interval with an hourly log cleanup.
func DefaultConfig() Config {
	return Config{
		Interval:        5 * time.Minute,
		RunOnStart:      true,
		CleanupSchedule: "@hourly",
	}
}

// Scheduler owns the scrape cycle. Sources in a cycle run strictly
// sequentially; a failing source never stops the others.
type Scheduler struct {
	registry *Registry
	activity ActivityLog
	recorder CycleRecorder
	clock    clock.Clock
	logger   *slog.Logger
	config   Config

	mu             sync.Mutex
	cron           *cron.Cron
	startupPending atomic.Bool
	startup        sync.WaitGroup
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for cycle timing.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithCycleRecorder attaches a metrics recorder.
func WithCycleRecorder(r CycleRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// New creates a scheduler over an injected registry.
func New(registry *Registry, activity ActivityLog, logger *slog.Logger, config Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry: registry,
		activity: activity,
		clock:    clock.System{},
		logger:   logger,
		config:   config,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the scheduler's source registry.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// RunCycle runs every enabled source once, in registry order, and returns
// one result per source. It never fails; per-source errors are carried in
// the results.
func (s *Scheduler) RunCycle(ctx context.Context, trigger Trigger) []models.ScrapeResult {
	started := s.clock.Now()
	enabled := s.registry.Enabled()

	s.logger.Info("scrape cycle started", "trigger", trigger, "sources", len(enabled))
	s.activity.Log(ctx, models.SchedulerSource, models.ActionStart,
		fmt.Sprintf("Starting %s scrape of %d sources", trigger, len(enabled)),
		&models.LogMetadata{Sources: models.IntPtr(len(enabled))})

	results := make([]models.ScrapeResult, 0, len(enabled))
	for _, entry := range enabled {
		results = append(results, s.runEntry(ctx, entry))
	}

	var added, skipped, failed int
	for _, r := range results {
		added += r.Added
		skipped += r.Skipped
		if r.Error != "" {
			failed++
		}
	}
	duration := s.clock.Now().Sub(started)

	s.activity.Log(context.WithoutCancel(ctx), models.SchedulerSource, models.ActionComplete,
		fmt.Sprintf("Scrape cycle complete: %d added, %d skipped, %d errors", added, skipped, failed),
		&models.LogMetadata{
			Added:   models.IntPtr(added),
			Skipped: models.IntPtr(skipped),
			Errors:  models.IntPtr(failed),
			Sources: models.IntPtr(len(results)),
		})
	s.logger.Info("scrape cycle complete",
		"trigger", trigger,
		"added", added,
		"skipped", skipped,
		"errors", failed,
		"duration", duration,
	)

	if s.recorder != nil {
		s.recorder.Cycle(string(trigger), results, duration)
	}
	return results
}

// RunNow runs a manual cycle synchronously.
func (s *Scheduler) RunNow(ctx context.Context) []models.ScrapeResult {
	return s.RunCycle(ctx, TriggerManual)
}

// RunSource runs one registered source, enabled or not.
func (s *Scheduler) RunSource(ctx context.Context, id string) (models.ScrapeResult, error) {
	entry, ok := s.registry.Lookup(id)
	if !ok {
		return models.ScrapeResult{}, fmt.Errorf("%w: %s", models.ErrSourceNotFound, id)
	}
	s.logger.Info("manual source scrape", "source", id, "enabled", entry.Enabled)

	result := s.runEntry(ctx, entry)
	if result.Error != "" {
		return result, fmt.Errorf("source %s: %s", id, result.Error)
	}
	return result, nil
}

// runEntry isolates one source: errors and panics become the result's
// Error field with zero counts.
func (s *Scheduler) runEntry(ctx context.Context, entry Entry) (result models.ScrapeResult) {
	started := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("source scrape panicked", "source", entry.ID, "panic", r)
			result = models.ScrapeResult{Source: entry.ID, Error: fmt.Sprintf("panic: %v", r)}
		}
		result.Duration = s.clock.Now().Sub(started)
	}()

	res, err := entry.Runner.Run(ctx)
	if err != nil {
		s.logger.Warn("source failed, continuing cycle", "source", entry.ID, "error", err)
		return models.ScrapeResult{Source: entry.ID, Error: err.Error()}
	}
	res.Source = entry.ID
	return res
}

// Start registers the interval and cleanup jobs and starts cron. Jobs run
// with ctx; overlapping interval runs are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("scrape interval must be positive, got %s", s.config.Interval)
	}

	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	scrapeSpec := fmt.Sprintf("@every %s", s.config.Interval)
	scrapeID, err := c.AddFunc(scrapeSpec, func() {
		trigger := TriggerInterval
		if s.startupPending.CompareAndSwap(true, false) {
			trigger = TriggerStartup
		}
		s.RunCycle(ctx, trigger)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%s): %w", scrapeSpec, err)
	}

	if s.config.CleanupSchedule != "" {
		if _, err := c.AddFunc(s.config.CleanupSchedule, func() { s.cleanup(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc(%s): %w", s.config.CleanupSchedule, err)
		}
	}

	s.cron = c
	c.Start()

	s.logger.Info("scheduler started",
		"interval", s.config.Interval,
		"cleanup_schedule", s.config.CleanupSchedule,
		"sources", len(s.registry.Enabled()),
	)

	if s.config.RunOnStart {
		// Through the wrapped job so the first tick cannot overlap it.
		job := c.Entry(scrapeID).WrappedJob
		s.startupPending.Store(true)
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.logger.Info("running startup scrape")
			job.Run()
		}()
	}
	return nil
}

// Stop stops the cron scheduler and waits for a running job to finish or
// for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	cronDone := c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.startup.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

func (s *Scheduler) cleanup(ctx context.Context) {
	deleted, err := s.activity.Cleanup(ctx)
	if err != nil {
		s.logger.Error("scrape log cleanup failed", "error", err)
		return
	}
	s.logger.Debug("scrape log cleanup finished", "deleted", deleted)
}
