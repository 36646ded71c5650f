package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bidpilot/tenderfeed/internal/models"
)

func scrapeBody(t *testing.T, c *Collector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}

func TestCollectorRecordsHTTPMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	handlerInvoked := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	instrumented := collector.InstrumentHandler(mux)

	rr := httptest.NewRecorder()
	instrumented.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/items/42", nil))

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrapeBody(t, collector)
	if !strings.Contains(body, `tenderfeed_http_requests_total{method="GET",path="GET /api/items/{id}",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, `tenderfeed_http_request_duration_seconds_count{method="GET",path="GET /api/items/{id}",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestCollectorRecordsScrapeMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.FetchAttempt("nocopo", "http_503")
	collector.FetchAttempt("nocopo", "ok")
	collector.SourceRun(models.ScrapeResult{Source: "nocopo", Added: 3, Skipped: 2, Duration: time.Second}, nil)
	collector.SourceRun(models.ScrapeResult{Source: "tendersnigeria", Duration: time.Second}, errors.New("boom"))
	collector.Cycle("manual", nil, 3*time.Second)

	body := scrapeBody(t, collector)
	for _, want := range []string{
		`tenderfeed_scrape_fetch_attempts_total{outcome="http_503",source="nocopo"} 1`,
		`tenderfeed_scrape_fetch_attempts_total{outcome="ok",source="nocopo"} 1`,
		`tenderfeed_scrape_tenders_added_total{source="nocopo"} 3`,
		`tenderfeed_scrape_tenders_skipped_total{source="nocopo"} 2`,
		`tenderfeed_scrape_errors_total{source="tendersnigeria"} 1`,
		`tenderfeed_scheduler_cycles_total{trigger="manual"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s", want)
		}
	}
	if strings.Contains(body, `tenderfeed_scrape_last_success_timestamp_seconds{source="tendersnigeria"}`) {
		t.Error("failed source must not update last success")
	}
}
