// check_feed fetches and parses one registered tender source without
// touching any store, printing what a scrape would insert.
//
//	go run ./scripts -source nocopo
//	go run ./scripts -sources ./sources.yaml -source nigeriantenders
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bidpilot/tenderfeed/internal/ingestion"
	"github.com/bidpilot/tenderfeed/internal/models"
)

func main() {
	sourceID := flag.String("source", "nigeriantenders", "source id from the registry")
	sourcesFile := flag.String("sources", "", "optional YAML source registry")
	limit := flag.Int("n", 10, "number of candidates to print")
	flag.Parse()

	sources := ingestion.DefaultSources()
	if *sourcesFile != "" {
		loaded, err := ingestion.LoadSourcesFile(*sourcesFile)
		if err != nil {
			fmt.Printf("ERROR loading sources: %v\n", err)
			os.Exit(1)
		}
		sources = loaded
	}

	var src *models.SourceConfig
	for i := range sources {
		if sources[i].ID == *sourceID {
			src = &sources[i]
		}
	}
	if src == nil {
		fmt.Printf("ERROR: unknown source %q\n", *sourceID)
		os.Exit(1)
	}

	fmt.Printf("Checking %s (%s): %s\n\n", src.ID, src.Format, src.URL)

	parser, err := ingestion.NewParser(*src)
	if err != nil {
		fmt.Printf("ERROR building parser: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fetcher := ingestion.NewHTTPFetcher(20*time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	body, err := fetcher.Fetch(ctx, ingestion.FetchRequest{
		Source:      src.ID,
		URL:         src.URL,
		Format:      src.Format,
		MaxAttempts: src.MaxAttempts,
	})
	if err != nil {
		fmt.Printf("ERROR fetching feed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetched %d bytes\n", len(body))

	result, err := parser.Parse(body, time.Now().UTC())
	if err != nil {
		fmt.Printf("ERROR parsing feed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Parsed %d candidates, dropped %d\n\n", len(result.Tenders), result.Dropped)

	for i, t := range result.Tenders {
		if i >= *limit {
			fmt.Printf("... and %d more\n", len(result.Tenders)-i)
			break
		}
		fmt.Printf("[%d] %s\n", i+1, t.Title)
		fmt.Printf("    id:       %s\n", t.SourceID)
		fmt.Printf("    org:      %s\n", t.Organization)
		fmt.Printf("    category: %s\n", t.Category)
		fmt.Printf("    location: %s\n", t.Location)
		fmt.Printf("    deadline: %s\n", t.Deadline.Format("2006-01-02"))
		if t.Budget > 0 {
			fmt.Printf("    budget:   NGN %d\n", t.Budget)
		}
		fmt.Printf("    url:      %s\n\n", t.SourceURL)
	}
}
