package ingestion

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bidpilot/tenderfeed/internal/models"
	"gopkg.in/yaml.v3"
)

// SourcesFile is the on-disk layout of a source registry.
type SourcesFile struct {
	Sources []models.SourceConfig `yaml:"sources"`
}

// DefaultSources returns the built-in registry, in scrape order.
func DefaultSources() []models.SourceConfig {
	return []models.SourceConfig{
		{
			ID:      "nigeriantenders",
			Name:    "Nigerian Tenders",
			URL:     "https://www.nigeriantenders.com/feed/",
			Format:  models.FeedFormatRSS,
			Enabled: true,
		},
		{
			ID:      "tendersnigeria",
			Name:    "Tenders Nigeria",
			URL:     "https://tendersnigeria.com/feed/",
			Format:  models.FeedFormatRSS,
			Enabled: true,
		},
		{
			ID:               "publicprocurement",
			Name:             "Public Procurement Nigeria",
			URL:              "https://www.publicprocurement.ng/feed/",
			Format:           models.FeedFormatRSS,
			Enabled:          true,
			DeadlineFromText: true,
		},
		{
			ID:             "nocopo",
			Name:           "NOCOPO (BPP Open Contracting Portal)",
			URL:            "https://nocopo.bpp.gov.ng/api/ocds/releases",
			Format:         models.FeedFormatOCDS,
			Enabled:        true,
			MaxAttempts:    1,
			ListingBaseURL: "https://nocopo.bpp.gov.ng/ocds/",
		},
	}
}

// LoadSourcesFile reads a YAML source registry from path.
func LoadSourcesFile(path string) ([]models.SourceConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a YAML source registry.
func ParseSources(data []byte) ([]models.SourceConfig, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	if err := ValidateSources(file.Sources); err != nil {
		return nil, err
	}
	return file.Sources, nil
}

// ValidateSources checks every source and rejects duplicate ids.
func ValidateSources(sources []models.SourceConfig) error {
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured")
	}
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return err
		}
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
	}
	return nil
}

// BuildScrapers creates one scraper per source, preserving order.
func BuildScrapers(sources []models.SourceConfig, deps ScraperDeps) ([]*Scraper, error) {
	scrapers := make([]*Scraper, 0, len(sources))
	for _, src := range sources {
		s, err := NewScraper(src, deps)
		if err != nil {
			return nil, err
		}
		scrapers = append(scrapers, s)
	}
	return scrapers, nil
}
