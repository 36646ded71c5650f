package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bidpilot/tenderfeed/internal/clock"
	"github.com/bidpilot/tenderfeed/internal/models"
)

// ScraperDeps are the collaborators shared by every per-source scraper.
type ScraperDeps struct {
	Fetcher  Fetcher
	Tenders  TenderRepository
	Activity *ActivityLogger
	Clock    clock.Clock
	Recorder Recorder
	Logger   *slog.Logger
}

// Scraper runs one full ingestion pass for a single source.
type Scraper struct {
	source models.SourceConfig
	parser Parser
	gate   *Gate
	deps   ScraperDeps
}

// NewScraper wires a scraper for src using the parser for its format.
func NewScraper(src models.SourceConfig, deps ScraperDeps) (*Scraper, error) {
	parser, err := NewParser(src)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	return NewScraperWithParser(src, parser, deps), nil
}

// NewScraperWithParser wires a scraper around an explicit parser.
func NewScraperWithParser(src models.SourceConfig, parser Parser, deps ScraperDeps) *Scraper {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	return &Scraper{
		source: src,
		parser: parser,
		gate:   NewGate(deps.Tenders),
		deps:   deps,
	}
}

// Source returns the scraper's source configuration.
func (s *Scraper) Source() models.SourceConfig {
	return s.source
}

// Run fetches, parses and stores the source's feed. Tenders inserted before
// a failure stay committed. Any failure is written to the activity log and
// returned.
func (s *Scraper) Run(ctx context.Context) (result models.ScrapeResult, err error) {
	id := s.source.ID
	started := s.deps.Clock.Now()
	result.Source = id

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scraper %s panicked: %v", id, r)
		}
		if err != nil {
			result.Error = err.Error()
			s.deps.Activity.Log(context.WithoutCancel(ctx), id, models.ActionError, fmt.Sprintf("Scrape failed: %v", err), &models.LogMetadata{
				Error:   err.Error(),
				URL:     s.source.URL,
				Added:   models.IntPtr(result.Added),
				Skipped: models.IntPtr(result.Skipped),
			})
			s.deps.Logger.Error("source scrape failed", "source", id, "error", err)
		}
		result.Duration = s.deps.Clock.Now().Sub(started)
		s.deps.Recorder.SourceRun(result, err)
	}()

	s.deps.Activity.Log(ctx, id, models.ActionStart, fmt.Sprintf("Starting scrape of %s", s.source.Name), nil)

	s.deps.Activity.Log(ctx, id, models.ActionFetch, fmt.Sprintf("Fetching %s", s.source.URL), &models.LogMetadata{URL: s.source.URL})
	body, err := s.deps.Fetcher.Fetch(ctx, FetchRequest{
		Source:      id,
		URL:         s.source.URL,
		Format:      s.source.Format,
		MaxAttempts: s.source.MaxAttempts,
	})
	if err != nil {
		return result, fmt.Errorf("fetch %s: %w", id, err)
	}

	s.deps.Activity.Log(ctx, id, models.ActionParse, fmt.Sprintf("Received %d bytes", len(body)), &models.LogMetadata{Bytes: models.IntPtr(len(body))})
	parsed, err := s.parser.Parse(body, s.deps.Clock.Now())
	if err != nil {
		return result, fmt.Errorf("parse %s: %w", id, err)
	}
	result.Scraped = len(parsed.Tenders)
	result.Skipped = parsed.Dropped
	s.deps.Activity.Log(ctx, id, models.ActionParse, fmt.Sprintf("Parsed %d tenders", len(parsed.Tenders)), &models.LogMetadata{
		Count:   models.IntPtr(len(parsed.Tenders)),
		Skipped: models.IntPtr(parsed.Dropped),
	})

	for _, tender := range parsed.Tenders {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		exists, err := s.gate.Exists(ctx, tender.Source, tender.SourceID)
		if err != nil {
			return result, fmt.Errorf("dedup check %s: %w", tender.Key(), err)
		}
		if exists {
			result.Skipped++
			continue
		}

		if _, err := s.deps.Tenders.Insert(ctx, tender); err != nil {
			if errors.Is(err, models.ErrDuplicateTender) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("insert %s: %w", tender.Key(), err)
		}
		result.Added++

		title := truncateRunes(tender.Title, maxTitleLogLength)
		s.deps.Activity.Log(ctx, id, models.ActionInsert, fmt.Sprintf("Added: %s", title), &models.LogMetadata{
			SourceID: tender.SourceID,
			Title:    title,
		})
	}

	s.deps.Activity.Log(ctx, id, models.ActionComplete,
		fmt.Sprintf("Scrape complete: %d added, %d skipped", result.Added, result.Skipped),
		&models.LogMetadata{
			Count:   models.IntPtr(result.Scraped),
			Added:   models.IntPtr(result.Added),
			Skipped: models.IntPtr(result.Skipped),
		})

	s.deps.Logger.Info("source scrape complete",
		"source", id,
		"count", result.Scraped,
		"added", result.Added,
		"skipped", result.Skipped,
	)
	return result, nil
}
