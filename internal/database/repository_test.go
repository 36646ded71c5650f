package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bidpilot/tenderfeed/internal/models"
)

// openTestDB connects to TEST_DATABASE_URL and applies migrations, or
// skips the test.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set - skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.URL = url
	store, err := Open(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	return store.DB
}

func TestPostgresTenderRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresTenderRepository(db)
	ctx := context.Background()

	source := "test-" + uuid.NewString()[:8]
	t.Cleanup(func() { db.Exec("DELETE FROM tenders WHERE source = $1", source) })

	now := time.Now().UTC().Truncate(time.Second)
	tender := models.Tender{
		Source:       source,
		SourceID:     "123",
		Title:        "Bridge Maintenance",
		Organization: "Federal Ministry of Works",
		Category:     "Construction",
		Categories:   []string{"Construction"},
		Location:     "Nigeria",
		Deadline:     now.AddDate(0, 0, 30),
		PublishedAt:  now,
		Status:       models.StatusPartial,
		CreatedAt:    now,
	}

	id, err := repo.Insert(ctx, tender)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected id")
	}

	if _, err := repo.Insert(ctx, tender); !errors.Is(err, models.ErrDuplicateTender) {
		t.Errorf("second Insert() = %v, want ErrDuplicateTender", err)
	}

	found, err := repo.GetBySourceID(ctx, source, "123")
	if err != nil {
		t.Fatalf("GetBySourceID() error = %v", err)
	}
	if found == nil || found.ID != id || found.Organization != tender.Organization {
		t.Errorf("unexpected tender %+v", found)
	}
	if !found.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", found.CreatedAt, now)
	}
	if len(found.Categories) != 1 || found.Categories[0] != "Construction" {
		t.Errorf("categories = %v", found.Categories)
	}

	missing, err := repo.GetBySourceID(ctx, source, "999")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil; got %+v, %v", missing, err)
	}
}

func TestPostgresScrapeLogRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresScrapeLogRepository(db)
	ctx := context.Background()

	source := "test-" + uuid.NewString()[:8]
	t.Cleanup(func() { db.Exec("DELETE FROM scrape_logs WHERE source = $1", source) })

	base := time.Now().UTC().Add(-10 * 24 * time.Hour).Truncate(time.Millisecond)
	entries := []models.ScrapeLog{
		{Source: source, Action: models.ActionStart, Timestamp: base},
		{Source: source, Action: models.ActionComplete, Timestamp: base.Add(9 * 24 * time.Hour),
			Metadata: &models.LogMetadata{Added: models.IntPtr(2), Skipped: models.IntPtr(3)}},
		{Source: source, Action: models.ActionError, Timestamp: base.Add(9*24*time.Hour + time.Minute),
			Metadata: &models.LogMetadata{Error: "timeout"}},
	}
	for _, e := range entries {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	recent, err := repo.QueryRecent(ctx, 10, source)
	if err != nil {
		t.Fatalf("QueryRecent() error = %v", err)
	}
	if len(recent) != 3 || recent[0].Action != models.ActionError {
		t.Errorf("unexpected recent entries %+v", recent)
	}

	stats, err := repo.QueryStats(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("QueryStats() error = %v", err)
	}
	s := stats[source]
	if s.Added != 2 || s.Skipped != 3 || s.Errors != 1 || s.LastRun == nil {
		t.Errorf("stats = %+v", s)
	}

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(time.Hour), 500)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted < 1 {
		t.Errorf("expected the old entry to be deleted, got %d", deleted)
	}
}
