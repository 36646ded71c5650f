package models

import (
	"errors"
	"time"
)

// ErrDuplicateTender is returned by a tender store when the (source, source_id)
// pair is already present.
var ErrDuplicateTender = errors.New("tender already exists for source")

// QualificationStatus is the tri-state qualification marker on a tender.
type QualificationStatus string

const (
	StatusQualified    QualificationStatus = "qualified"
	StatusPartial      QualificationStatus = "partial"
	StatusNotQualified QualificationStatus = "not_qualified"
)

// Tender is a procurement opportunity ingested from an external source.
// Identity is the (Source, SourceID) pair; SourceID is only unique within
// its source.
type Tender struct {
	ID           string              `json:"id"`
	Source       string              `json:"source"`
	SourceID     string              `json:"source_id"`
	Title        string              `json:"title"`
	Organization string              `json:"organization"`
	Category     string              `json:"category"`
	Categories   []string            `json:"categories"`
	Description  string              `json:"description"`
	Location     string              `json:"location"`
	Budget       int64               `json:"budget"` // whole naira, 0 when unknown
	Deadline     time.Time           `json:"deadline"`
	PublishedAt  time.Time           `json:"published_at"`
	SourceURL    string              `json:"source_url"`
	Requirements []string            `json:"requirements"`
	Missing      []string            `json:"missing"`
	Status       QualificationStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Key returns the composite natural key of the tender.
func (t *Tender) Key() TenderKey {
	return TenderKey{Source: t.Source, SourceID: t.SourceID}
}

// TenderKey is the (source, source-native id) identity of a tender.
type TenderKey struct {
	Source   string
	SourceID string
}

func (k TenderKey) String() string {
	return k.Source + "/" + k.SourceID
}
