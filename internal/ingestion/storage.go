package ingestion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bidpilot/tenderfeed/internal/models"
	"github.com/google/uuid"
)

// TenderRepository is the persisted tender store.
type TenderRepository interface {
	// GetBySourceID returns the tender with the given composite key, or nil.
	GetBySourceID(ctx context.Context, source, sourceID string) (*models.Tender, error)

	// Insert stores a new tender and returns its id. It returns
	// models.ErrDuplicateTender when the (source, source_id) pair exists.
	Insert(ctx context.Context, tender models.Tender) (string, error)
}

// ScrapeLogRepository is the append-only audit log store.
type ScrapeLogRepository interface {
	// Append stores one entry.
	Append(ctx context.Context, entry models.ScrapeLog) error

	// QueryRecent returns up to limit entries newest-first, optionally
	// restricted to one source.
	QueryRecent(ctx context.Context, limit int, source string) ([]models.ScrapeLog, error)

	// QuerySince returns up to limit entries strictly newer than after,
	// oldest-first.
	QuerySince(ctx context.Context, after time.Time, limit int) ([]models.ScrapeLog, error)

	// QueryStats aggregates entries at or after since, grouped by source.
	QueryStats(ctx context.Context, since time.Time) (map[string]models.SourceStats, error)

	// DeleteOlderThan removes at most limit entries older than cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// MemoryTenderRepository implements an in-memory tender store for
// development and testing.
type MemoryTenderRepository struct {
	mu      sync.RWMutex
	tenders map[models.TenderKey]models.Tender
	order   []models.TenderKey
}

// NewMemoryTenderRepository creates a new in-memory tender store.
func NewMemoryTenderRepository() *MemoryTenderRepository {
	return &MemoryTenderRepository{
		tenders: make(map[models.TenderKey]models.Tender),
	}
}

// GetBySourceID looks a tender up by its composite key.
func (r *MemoryTenderRepository) GetBySourceID(ctx context.Context, source, sourceID string) (*models.Tender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tenders[models.TenderKey{Source: source, SourceID: sourceID}]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Insert stores a tender, enforcing the composite key. CreatedAt is kept
// as provided; callers stamp it from their clock.
func (r *MemoryTenderRepository) Insert(ctx context.Context, tender models.Tender) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tender.Key()
	if _, exists := r.tenders[key]; exists {
		return "", models.ErrDuplicateTender
	}
	if tender.ID == "" {
		tender.ID = uuid.New().String()
	}
	r.tenders[key] = tender
	r.order = append(r.order, key)
	return tender.ID, nil
}

// List returns all tenders in insertion order.
func (r *MemoryTenderRepository) List() []models.Tender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Tender, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.tenders[key])
	}
	return out
}

// Size returns the number of stored tenders.
func (r *MemoryTenderRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenders)
}

// MemoryScrapeLogRepository implements an in-memory audit log store.
type MemoryScrapeLogRepository struct {
	mu      sync.RWMutex
	entries []models.ScrapeLog
}

// NewMemoryScrapeLogRepository creates a new in-memory log store.
func NewMemoryScrapeLogRepository() *MemoryScrapeLogRepository {
	return &MemoryScrapeLogRepository{}
}

// Append stores one entry.
func (r *MemoryScrapeLogRepository) Append(ctx context.Context, entry models.ScrapeLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// QueryRecent returns the newest entries first; ties keep append order reversed.
func (r *MemoryScrapeLogRepository) QueryRecent(ctx context.Context, limit int, source string) ([]models.ScrapeLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]models.ScrapeLog, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if source != "" && e.Source != source {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// QuerySince returns entries strictly newer than after, oldest first.
func (r *MemoryScrapeLogRepository) QuerySince(ctx context.Context, after time.Time, limit int) ([]models.ScrapeLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]models.ScrapeLog, 0)
	for _, e := range r.entries {
		if e.Timestamp.After(after) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// QueryStats groups entries since the cutoff by source.
func (r *MemoryScrapeLogRepository) QueryStats(ctx context.Context, since time.Time) (map[string]models.SourceStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]models.SourceStats)
	for _, e := range r.entries {
		if e.Timestamp.Before(since) {
			continue
		}
		s := stats[e.Source]
		s.Source = e.Source

		switch e.Action {
		case models.ActionComplete:
			if e.Metadata != nil {
				if e.Metadata.Added != nil {
					s.Added += *e.Metadata.Added
				}
				if e.Metadata.Skipped != nil {
					s.Skipped += *e.Metadata.Skipped
				}
			}
			if s.LastRun == nil || e.Timestamp.After(*s.LastRun) {
				ts := e.Timestamp
				s.LastRun = &ts
			}
		case models.ActionError:
			s.Errors++
		}
		stats[e.Source] = s
	}
	return stats, nil
}

// DeleteOlderThan removes up to limit of the oldest entries before cutoff.
func (r *MemoryScrapeLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type indexed struct {
		idx int
		ts  time.Time
	}
	var old []indexed
	for i, e := range r.entries {
		if e.Timestamp.Before(cutoff) {
			old = append(old, indexed{idx: i, ts: e.Timestamp})
		}
	}
	sort.SliceStable(old, func(i, j int) bool { return old[i].ts.Before(old[j].ts) })
	if limit > 0 && len(old) > limit {
		old = old[:limit]
	}

	drop := make(map[int]bool, len(old))
	for _, o := range old {
		drop[o.idx] = true
	}
	kept := r.entries[:0]
	for i, e := range r.entries {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return int64(len(old)), nil
}

// Size returns the number of stored entries.
func (r *MemoryScrapeLogRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a copy of the stored entries in append order, optionally
// filtered by source.
func (r *MemoryScrapeLogRepository) Entries(source string) []models.ScrapeLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ScrapeLog, 0, len(r.entries))
	for _, e := range r.entries {
		if source == "" || e.Source == source {
			out = append(out, e)
		}
	}
	return out
}
