package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bidpilot/tenderfeed/internal/models"
)

type scrapeMetrics struct {
	fetchAttempts  *prometheus.CounterVec
	tendersAdded   *prometheus.CounterVec
	tendersSkipped *prometheus.CounterVec
	scrapeErrors   *prometheus.CounterVec
	scrapeDuration *prometheus.HistogramVec
	lastSuccess    *prometheus.GaugeVec
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
}

func newScrapeMetrics() *scrapeMetrics {
	return &scrapeMetrics{
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "fetch_attempts_total",
			Help:      "Feed fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		tendersAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "tenders_added_total",
			Help:      "Tenders inserted per source.",
		}, []string{"source"}),
		tendersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "tenders_skipped_total",
			Help:      "Duplicate or unusable feed items per source.",
		}, []string{"source"}),
		scrapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "errors_total",
			Help:      "Source runs that ended in an error.",
		}, []string{"source"}),
		scrapeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "duration_seconds",
			Help:      "Wall time of one source run, retries included.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"source"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per source.",
		}, []string{"source"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Scrape cycles by trigger.",
		}, []string{"trigger"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a full scrape cycle.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		}),
	}
}

func (m *scrapeMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.fetchAttempts,
		m.tendersAdded,
		m.tendersSkipped,
		m.scrapeErrors,
		m.scrapeDuration,
		m.lastSuccess,
		m.cycles,
		m.cycleDuration,
	}
}

// FetchAttempt counts one HTTP attempt against a feed.
func (c *Collector) FetchAttempt(source, outcome string) {
	c.scrape.fetchAttempts.WithLabelValues(source, outcome).Inc()
}

// SourceRun records the outcome of one per-source scrape.
func (c *Collector) SourceRun(result models.ScrapeResult, err error) {
	m := c.scrape
	m.scrapeDuration.WithLabelValues(result.Source).Observe(result.Duration.Seconds())
	m.tendersAdded.WithLabelValues(result.Source).Add(float64(result.Added))
	m.tendersSkipped.WithLabelValues(result.Source).Add(float64(result.Skipped))
	if err != nil {
		m.scrapeErrors.WithLabelValues(result.Source).Inc()
		return
	}
	m.lastSuccess.WithLabelValues(result.Source).Set(float64(time.Now().Unix()))
}

// Cycle records a completed scheduler cycle.
func (c *Collector) Cycle(trigger string, results []models.ScrapeResult, duration time.Duration) {
	c.scrape.cycles.WithLabelValues(trigger).Inc()
	c.scrape.cycleDuration.Observe(duration.Seconds())
}
