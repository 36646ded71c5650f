package ingestion

import "github.com/bidpilot/tenderfeed/internal/models"

// Recorder receives scrape measurements, typically for Prometheus.
type Recorder interface {
	FetchAttempt(source, outcome string)
	SourceRun(result models.ScrapeResult, err error)
}

type nopRecorder struct{}

func (nopRecorder) FetchAttempt(string, string)          {}
func (nopRecorder) SourceRun(models.ScrapeResult, error) {}
