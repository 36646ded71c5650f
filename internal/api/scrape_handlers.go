package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bidpilot/tenderfeed/internal/models"
)

// ScrapeHandlers triggers scrapes and lists the source registry.
type ScrapeHandlers struct {
	scrapes ScrapeService
	logger  *slog.Logger
}

// NewScrapeHandlers creates handlers that trigger and report scrape runs.
func NewScrapeHandlers(scrapes ScrapeService, logger *slog.Logger) *ScrapeHandlers {
	return &ScrapeHandlers{scrapes: scrapes, logger: logger}
}

// RunResponse summarises a manual cycle.
type RunResponse struct {
	Results []models.ScrapeResult `json:"results"`
	Added   int                   `json:"added"`
	Skipped int                   `json:"skipped"`
	Errors  int                   `json:"errors"`
}

// SourceStatus is one row of the source listing.
type SourceStatus struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	URL     string            `json:"url,omitempty"`
	Format  models.FeedFormat `json:"format,omitempty"`
}

// sourceConfigurer is implemented by runners backed by a configured feed.
type sourceConfigurer interface {
	Source() models.SourceConfig
}

// Run handles POST /api/scrape/run
func (h *ScrapeHandlers) Run(w http.ResponseWriter, r *http.Request) {
	results := h.scrapes.RunNow(r.Context())

	resp := RunResponse{Results: results}
	for _, res := range results {
		resp.Added += res.Added
		resp.Skipped += res.Skipped
		if res.Error != "" {
			resp.Errors++
		}
	}
	if resp.Results == nil {
		resp.Results = []models.ScrapeResult{}
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// RunSource handles POST /api/scrape/run/{source}
func (h *ScrapeHandlers) RunSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("source")

	result, err := h.scrapes.RunSource(r.Context(), id)
	switch {
	case errors.Is(err, models.ErrSourceNotFound):
		writeError(w, h.logger, http.StatusNotFound, "source not found")
	case err != nil:
		h.logger.Warn("manual source scrape failed", "source", id, "error", err)
		writeJSON(w, h.logger, http.StatusBadGateway, result)
	default:
		writeJSON(w, h.logger, http.StatusOK, result)
	}
}

// Sources handles GET /api/sources
func (h *ScrapeHandlers) Sources(w http.ResponseWriter, r *http.Request) {
	entries := h.scrapes.Registry().Entries()
	sources := make([]SourceStatus, 0, len(entries))
	for _, e := range entries {
		status := SourceStatus{ID: e.ID, Name: e.Name, Enabled: e.Enabled}
		if sc, ok := e.Runner.(sourceConfigurer); ok {
			cfg := sc.Source()
			status.URL = cfg.URL
			status.Format = cfg.Format
		}
		sources = append(sources, status)
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}
