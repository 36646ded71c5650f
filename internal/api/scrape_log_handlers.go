package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/bidpilot/tenderfeed/internal/models"
)

// ScrapeLogHandlers serves the scrape audit log.
type ScrapeLogHandlers struct {
	activity ActivityService
	logger   *slog.Logger
}

// NewScrapeLogHandlers creates handlers for the scrape activity log.
func NewScrapeLogHandlers(activity ActivityService, logger *slog.Logger) *ScrapeLogHandlers {
	return &ScrapeLogHandlers{activity: activity, logger: logger}
}

// Recent handles GET /api/scrape-logs
func (h *ScrapeLogHandlers) Recent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	logs, err := h.activity.Recent(r.Context(), limit, q.Get("source"))
	if err != nil {
		h.logger.Error("failed to list scrape logs", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to retrieve scrape logs")
		return
	}
	h.writeLogs(w, logs)
}

// Since handles GET /api/scrape-logs/since
func (h *ScrapeLogHandlers) Since(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := parseAfter(q)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	limit, err := parseLimit(q)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	logs, err := h.activity.Since(r.Context(), after, limit)
	if err != nil {
		h.logger.Error("failed to list scrape logs since", "after", after, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to retrieve scrape logs")
		return
	}
	h.writeLogs(w, logs)
}

// Stats handles GET /api/scrape-logs/stats
func (h *ScrapeLogHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.activity.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute scrape stats", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	sources := make([]models.SourceStats, 0, len(stats))
	for _, s := range stats {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Source < sources[j].Source })

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

// Cleanup handles POST /api/scrape-logs/cleanup
func (h *ScrapeLogHandlers) Cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.activity.Cleanup(r.Context())
	if err != nil {
		h.logger.Error("scrape log cleanup failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "cleanup failed")
		return
	}
	h.logger.Info("scrape log cleanup", "deleted", deleted)
	writeJSON(w, h.logger, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *ScrapeLogHandlers) writeLogs(w http.ResponseWriter, logs []models.ScrapeLog) {
	if logs == nil {
		logs = []models.ScrapeLog{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

func (h *ScrapeLogHandlers) badRequest(w http.ResponseWriter, err error) {
	var verr ValidationError
	if errors.As(err, &verr) {
		writeError(w, h.logger, http.StatusBadRequest, verr.Error())
		return
	}
	writeError(w, h.logger, http.StatusBadRequest, "invalid request")
}
