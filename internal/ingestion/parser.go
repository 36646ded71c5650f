package ingestion

import (
	"fmt"
	"time"

	"github.com/bidpilot/tenderfeed/internal/models"
)

// ParseResult holds the candidate tenders extracted from one feed document.
// Dropped counts items that were present but unusable.
type ParseResult struct {
	Tenders []models.Tender
	Dropped int
}

// Parser turns a raw feed document into candidate tenders. Implementations
// are pure: no I/O, and now is the only source of the current time.
// A malformed item is dropped; an error is returned only when the document
// as a whole cannot be read.
type Parser interface {
	Parse(body []byte, now time.Time) (ParseResult, error)
}

// ParserFunc adapts a plain function to the Parser interface.
type ParserFunc func(body []byte, now time.Time) (ParseResult, error)

// Parse calls f.
func (f ParserFunc) Parse(body []byte, now time.Time) (ParseResult, error) {
	return f(body, now)
}

// NewParser builds the parser matching a source's feed format.
func NewParser(src models.SourceConfig) (Parser, error) {
	switch src.Format {
	case models.FeedFormatRSS:
		return &RSSParser{Source: src.ID, DeadlineFromText: src.DeadlineFromText}, nil
	case models.FeedFormatOCDS:
		return &OCDSParser{Source: src.ID, ListingBaseURL: src.ListingBaseURL}, nil
	default:
		return nil, fmt.Errorf("no parser for format %q", src.Format)
	}
}

// defaultDeadline is used when a feed does not state a closing date.
func defaultDeadline(now time.Time) time.Time {
	return now.AddDate(0, 0, 30)
}

func newCandidate(source string, now time.Time) models.Tender {
	return models.Tender{
		Source:       source,
		Location:     defaultLocation,
		Requirements: []string{},
		Missing:      []string{},
		Status:       models.StatusPartial,
		CreatedAt:    now,
	}
}
