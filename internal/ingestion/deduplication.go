package ingestion

import (
	"context"
	"fmt"
)

// Gate decides whether a candidate tender is novel by checking its
// (source, source_id) pair against the tender store. The check is not
// atomic with the later insert; the store's unique key is the backstop.
type Gate struct {
	tenders TenderRepository
}

// NewGate creates a deduplication gate over the given store.
func NewGate(tenders TenderRepository) *Gate {
	return &Gate{tenders: tenders}
}

// Exists reports whether a tender with this composite key is already stored.
func (g *Gate) Exists(ctx context.Context, source, sourceID string) (bool, error) {
	existing, err := g.tenders.GetBySourceID(ctx, source, sourceID)
	if err != nil {
		return false, fmt.Errorf("lookup %s/%s: %w", source, sourceID, err)
	}
	return existing != nil, nil
}
