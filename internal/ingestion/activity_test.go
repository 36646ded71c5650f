package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bidpilot/tenderfeed/internal/clock"
	"github.com/bidpilot/tenderfeed/internal/models"
)

type brokenLogRepo struct {
	*MemoryScrapeLogRepository
	panics bool
}

func (r brokenLogRepo) Append(ctx context.Context, entry models.ScrapeLog) error {
	if r.panics {
		panic("disk on fire")
	}
	return errors.New("log store unavailable")
}

func TestActivityLogger_LogIsBestEffort(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	for _, panics := range []bool{false, true} {
		repo := brokenLogRepo{MemoryScrapeLogRepository: NewMemoryScrapeLogRepository(), panics: panics}
		logger := NewActivityLogger(repo, clk, discardLogger(), ActivityConfig{})

		// Must return normally.
		logger.Log(context.Background(), "a", models.ActionStart, "starting", nil)
	}
}

func TestActivityLogger_LogStampsEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(now)
	repo := NewMemoryScrapeLogRepository()
	logger := NewActivityLogger(repo, clk, discardLogger(), ActivityConfig{})

	logger.Log(context.Background(), "a", models.ActionFetch, "Fetching", &models.LogMetadata{URL: "https://x.ng/feed"})

	entries := repo.Entries("a")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "" {
		t.Error("expected an id")
	}
	if !e.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, now)
	}
	if e.Metadata == nil || e.Metadata.URL != "https://x.ng/feed" {
		t.Errorf("Metadata = %+v", e.Metadata)
	}
}

func TestActivityLogger_Queries(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	repo := NewMemoryScrapeLogRepository()
	logger := NewActivityLogger(repo, clk, discardLogger(), ActivityConfig{})
	ctx := context.Background()

	logger.Log(ctx, "a", models.ActionComplete, "old run", &models.LogMetadata{Added: models.IntPtr(50), Skipped: models.IntPtr(0)})
	clk.Advance(25 * time.Hour)
	cursor := clk.Now()
	logger.Log(ctx, "a", models.ActionComplete, "run", &models.LogMetadata{Added: models.IntPtr(4), Skipped: models.IntPtr(1)})
	clk.Advance(time.Minute)
	logger.Log(ctx, "b", models.ActionError, "failed", &models.LogMetadata{Error: "timeout"})

	t.Run("stats cover the trailing day", func(t *testing.T) {
		stats, err := logger.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats["a"].Added != 4 || stats["a"].Skipped != 1 {
			t.Errorf("a = %+v", stats["a"])
		}
		if stats["b"].Errors != 1 {
			t.Errorf("b = %+v", stats["b"])
		}
	})

	t.Run("since excludes the cursor entry", func(t *testing.T) {
		entries, err := logger.Since(ctx, cursor, 0)
		if err != nil {
			t.Fatalf("Since() error = %v", err)
		}
		if len(entries) != 1 || entries[0].Source != "b" {
			t.Errorf("expected only the b entry, got %+v", entries)
		}
	})

	t.Run("recent defaults limit", func(t *testing.T) {
		entries, err := logger.Recent(ctx, 0, "")
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(entries) != 3 || entries[0].Source != "b" {
			t.Errorf("unexpected entries %+v", entries)
		}
	})
}

func TestActivityLogger_CleanupIsBounded(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	repo := NewMemoryScrapeLogRepository()
	logger := NewActivityLogger(repo, clk, discardLogger(), ActivityConfig{CleanupBatch: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		logger.Log(ctx, "a", models.ActionStart, "old", nil)
	}
	clk.Advance(8 * 24 * time.Hour)
	logger.Log(ctx, "a", models.ActionStart, "fresh", nil)

	deleted, err := logger.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("first cleanup deleted %d, want 3", deleted)
	}
	deleted, _ = logger.Cleanup(ctx)
	if deleted != 2 {
		t.Errorf("second cleanup deleted %d, want 2", deleted)
	}
	deleted, _ = logger.Cleanup(ctx)
	if deleted != 0 {
		t.Errorf("third cleanup deleted %d, want 0", deleted)
	}
	if repo.Size() != 1 {
		t.Errorf("expected only the fresh entry to remain, got %d", repo.Size())
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{-5: 100, 0: 100, 1: 1, 250: 250, 5000: 1000}
	for in, want := range tests {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
