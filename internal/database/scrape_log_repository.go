package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bidpilot/tenderfeed/internal/models"
)

// PostgresScrapeLogRepository stores the scrape audit log.
type PostgresScrapeLogRepository struct {
	db *sql.DB
}

// NewPostgresScrapeLogRepository creates a new scrape log repository.
func NewPostgresScrapeLogRepository(db *sql.DB) *PostgresScrapeLogRepository {
	return &PostgresScrapeLogRepository{db: db}
}

// Append stores one log entry.
func (r *PostgresScrapeLogRepository) Append(ctx context.Context, entry models.ScrapeLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	// Sent as text; lib/pq would encode []byte as bytea.
	var metadata sql.NullString
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO scrape_logs (id, source, action, message, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Source,
		entry.Action,
		entry.Message,
		metadata,
		entry.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to append scrape log: %w", err)
	}
	return nil
}

// QueryRecent returns the newest entries first, optionally for one source.
func (r *PostgresScrapeLogRepository) QueryRecent(ctx context.Context, limit int, source string) ([]models.ScrapeLog, error) {
	query := `
		SELECT id, source, action, message, metadata, timestamp
		FROM scrape_logs
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if source != "" {
		query += fmt.Sprintf(" AND source = $%d", argPos)
		args = append(args, source)
		argPos++
	}

	query += " ORDER BY timestamp DESC"
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)

	return r.query(ctx, query, args...)
}

// QuerySince returns entries strictly newer than after, oldest first.
func (r *PostgresScrapeLogRepository) QuerySince(ctx context.Context, after time.Time, limit int) ([]models.ScrapeLog, error) {
	query := `
		SELECT id, source, action, message, metadata, timestamp
		FROM scrape_logs
		WHERE timestamp > $1
		ORDER BY timestamp ASC
		LIMIT $2
	`
	return r.query(ctx, query, after, limit)
}

// QueryStats aggregates entries since the cutoff by source. Added and
// skipped are summed from complete entries only.
func (r *PostgresScrapeLogRepository) QueryStats(ctx context.Context, since time.Time) (map[string]models.SourceStats, error) {
	query := `
		SELECT source,
		       COALESCE(SUM((metadata->>'added')::int)   FILTER (WHERE action = 'complete'), 0),
		       COALESCE(SUM((metadata->>'skipped')::int) FILTER (WHERE action = 'complete'), 0),
		       COUNT(*) FILTER (WHERE action = 'error'),
		       MAX(timestamp) FILTER (WHERE action = 'complete')
		FROM scrape_logs
		WHERE timestamp >= $1
		GROUP BY source
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query scrape stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]models.SourceStats)
	for rows.Next() {
		var (
			s       models.SourceStats
			lastRun sql.NullTime
		)
		if err := rows.Scan(&s.Source, &s.Added, &s.Skipped, &s.Errors, &lastRun); err != nil {
			return nil, fmt.Errorf("failed to scan scrape stats: %w", err)
		}
		if lastRun.Valid {
			t := lastRun.Time
			s.LastRun = &t
		}
		stats[s.Source] = s
	}
	return stats, rows.Err()
}

// DeleteOlderThan deletes at most limit of the oldest entries before cutoff.
func (r *PostgresScrapeLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM scrape_logs
		WHERE id IN (
			SELECT id FROM scrape_logs
			WHERE timestamp < $1
			ORDER BY timestamp ASC
			LIMIT $2
		)
	`
	result, err := r.db.ExecContext(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scrape logs: %w", err)
	}
	return result.RowsAffected()
}

func (r *PostgresScrapeLogRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.ScrapeLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scrape logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ScrapeLog{}
	for rows.Next() {
		var (
			entry        models.ScrapeLog
			metadataJSON []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Source,
			&entry.Action,
			&entry.Message,
			&metadataJSON,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scrape log: %w", err)
		}

		if len(metadataJSON) > 0 {
			var md models.LogMetadata
			if err := json.Unmarshal(metadataJSON, &md); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
			entry.Metadata = &md
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
