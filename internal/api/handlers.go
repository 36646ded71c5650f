// Package api exposes the operator HTTP surface: scrape-log queries, manual
// scrape triggers and the source registry.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bidpilot/tenderfeed/internal/models"
	"github.com/bidpilot/tenderfeed/internal/scheduler"
)

// ActivityService is the read and retention side of the scrape audit log.
type ActivityService interface {
	Recent(ctx context.Context, limit int, source string) ([]models.ScrapeLog, error)
	Since(ctx context.Context, after time.Time, limit int) ([]models.ScrapeLog, error)
	Stats(ctx context.Context) (map[string]models.SourceStats, error)
	Cleanup(ctx context.Context) (int64, error)
}

// ScrapeService runs scrape cycles on demand.
type ScrapeService interface {
	RunNow(ctx context.Context) []models.ScrapeResult
	RunSource(ctx context.Context, id string) (models.ScrapeResult, error)
	Registry() *scheduler.Registry
}

// Pinger checks a backing store. A nil Pinger means there is nothing to check.
type Pinger func(ctx context.Context) error

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, map[string]string{"error": message})
}

// HealthHandler handles GET /healthz.
func HealthHandler(ping Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.Warn("health check failed", "error", err)
				writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}
