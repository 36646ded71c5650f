package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bidpilot/tenderfeed/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresTenderRepository stores tenders in PostgreSQL. The
// (source, source_id) unique constraint backs the dedup gate.
type PostgresTenderRepository struct {
	db *sql.DB
}

// NewPostgresTenderRepository creates a new tender repository.
func NewPostgresTenderRepository(db *sql.DB) *PostgresTenderRepository {
	return &PostgresTenderRepository{db: db}
}

// GetBySourceID retrieves a tender by its composite key, or nil.
func (r *PostgresTenderRepository) GetBySourceID(ctx context.Context, source, sourceID string) (*models.Tender, error) {
	query := `
		SELECT id, source, source_id, title, organization, category, categories,
		       description, location, budget, deadline, published_at, source_url,
		       requirements, missing, status, created_at
		FROM tenders
		WHERE source = $1 AND source_id = $2
	`

	var t models.Tender
	err := r.db.QueryRowContext(ctx, query, source, sourceID).Scan(
		&t.ID,
		&t.Source,
		&t.SourceID,
		&t.Title,
		&t.Organization,
		&t.Category,
		pq.Array(&t.Categories),
		&t.Description,
		&t.Location,
		&t.Budget,
		&t.Deadline,
		&t.PublishedAt,
		&t.SourceURL,
		pq.Array(&t.Requirements),
		pq.Array(&t.Missing),
		&t.Status,
		&t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tender %s/%s: %w", source, sourceID, err)
	}
	return &t, nil
}

// Insert stores a new tender and returns its id. A row with the same
// (source, source_id) yields models.ErrDuplicateTender. CreatedAt is stored
// as provided.
func (r *PostgresTenderRepository) Insert(ctx context.Context, t models.Tender) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.StatusPartial
	}

	query := `
		INSERT INTO tenders (
			id, source, source_id, title, organization, category, categories,
			description, location, budget, deadline, published_at, source_url,
			requirements, missing, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (source, source_id) DO NOTHING
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		t.ID,
		t.Source,
		t.SourceID,
		t.Title,
		t.Organization,
		t.Category,
		pq.Array(nonNil(t.Categories)),
		t.Description,
		t.Location,
		t.Budget,
		t.Deadline,
		t.PublishedAt,
		t.SourceURL,
		pq.Array(nonNil(t.Requirements)),
		pq.Array(nonNil(t.Missing)),
		t.Status,
		t.CreatedAt,
	).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", models.ErrDuplicateTender
	case isUniqueViolation(err):
		return "", models.ErrDuplicateTender
	case err != nil:
		return "", fmt.Errorf("failed to insert tender %s: %w", t.Key(), err)
	}
	return id, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
