package models

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrSourceNotFound is returned when a source id is not in the registry.
var ErrSourceNotFound = errors.New("source not found")

// FeedFormat is the wire format of an external tender feed.
type FeedFormat string

const (
	FeedFormatRSS  FeedFormat = "rss"
	FeedFormatOCDS FeedFormat = "ocds"
)

// SourceConfig describes one registered tender feed.
type SourceConfig struct {
	ID               string     `yaml:"id" json:"id"`
	Name             string     `yaml:"name" json:"name"`
	URL              string     `yaml:"url" json:"url"`
	Format           FeedFormat `yaml:"format" json:"format"`
	Enabled          bool       `yaml:"enabled" json:"enabled"`
	DeadlineFromText bool       `yaml:"deadline_from_text" json:"deadline_from_text,omitempty"`
	MaxAttempts      int        `yaml:"max_attempts" json:"max_attempts,omitempty"`
	ListingBaseURL   string     `yaml:"listing_base_url" json:"listing_base_url,omitempty"`
}

// Validate checks that the source is usable by a scraper.
func (s SourceConfig) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("source id is required")
	}
	if s.ID == SchedulerSource {
		return fmt.Errorf("source id %q is reserved", s.ID)
	}
	switch s.Format {
	case FeedFormatRSS, FeedFormatOCDS:
	default:
		return fmt.Errorf("source %s: unsupported format %q", s.ID, s.Format)
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source %s: url must be an absolute http(s) URL", s.ID)
	}
	if s.MaxAttempts < 0 {
		return fmt.Errorf("source %s: max_attempts must not be negative", s.ID)
	}
	return nil
}

// ScrapeResult is the outcome of one source within a scrape cycle.
type ScrapeResult struct {
	Source   string        `json:"source"`
	Scraped  int           `json:"scraped"`
	Added    int           `json:"added"`
	Skipped  int           `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}
