package scheduler

import (
	"context"
	"fmt"

	"github.com/bidpilot/tenderfeed/internal/ingestion"
	"github.com/bidpilot/tenderfeed/internal/models"
)

// Runner performs one scrape of a single source.
type Runner interface {
	Run(ctx context.Context) (models.ScrapeResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) (models.ScrapeResult, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) (models.ScrapeResult, error) {
	return f(ctx)
}

// Entry is one registered source.
type Entry struct {
	ID      string
	Name    string
	Runner  Runner
	Enabled bool
}

// Registry is the ordered set of sources a scheduler iterates.
type Registry struct {
	entries []Entry
	byID    map[string]int
}

// NewRegistry validates and stores entries in the given order.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("registry entry without id")
		}
		if e.Runner == nil {
			return nil, fmt.Errorf("registry entry %s has no runner", e.ID)
		}
		if _, dup := r.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate registry entry %s", e.ID)
		}
		r.byID[e.ID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// FromScrapers builds a registry from configured scrapers, keeping each
// source's enabled flag.
func FromScrapers(scrapers []*ingestion.Scraper) (*Registry, error) {
	entries := make([]Entry, 0, len(scrapers))
	for _, s := range scrapers {
		src := s.Source()
		entries = append(entries, Entry{ID: src.ID, Name: src.Name, Runner: s, Enabled: src.Enabled})
	}
	return NewRegistry(entries...)
}

// Entries returns all entries in registry order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Enabled returns the enabled entries in registry order.
func (r *Registry) Enabled() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// Lookup finds an entry by id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}
