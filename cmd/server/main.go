package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bidpilot/tenderfeed/internal/api"
	"github.com/bidpilot/tenderfeed/internal/auth"
	"github.com/bidpilot/tenderfeed/internal/clock"
	"github.com/bidpilot/tenderfeed/internal/cloudsql"
	"github.com/bidpilot/tenderfeed/internal/config"
	"github.com/bidpilot/tenderfeed/internal/database"
	"github.com/bidpilot/tenderfeed/internal/ingestion"
	"github.com/bidpilot/tenderfeed/internal/logging"
	"github.com/bidpilot/tenderfeed/internal/metrics"
	"github.com/bidpilot/tenderfeed/internal/scheduler"
	"github.com/bidpilot/tenderfeed/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tenderfeed stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("tenderfeed stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("starting tenderfeed")

	var (
		tenders ingestion.TenderRepository
		logs    ingestion.ScrapeLogRepository
		health  api.Pinger
	)

	if cfg.Database.URL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.Database.URL
		dbCfg.MaxConnections = cfg.Database.MaxConnections

		logger.Info("connecting to database", "dsn", cloudsql.Redact(cfg.Database.URL))
		store, err := database.Open(ctx, dbCfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("database connected")

		tenders = store.Tenders
		logs = store.Logs
		health = store.Ping
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		tenders = ingestion.NewMemoryTenderRepository()
		logs = ingestion.NewMemoryScrapeLogRepository()
	}

	sources := ingestion.DefaultSources()
	if cfg.Scraper.SourcesFile != "" {
		loaded, err := ingestion.LoadSourcesFile(cfg.Scraper.SourcesFile)
		if err != nil {
			return err
		}
		sources = loaded
	}
	logger.Info("source registry loaded", "sources", len(sources), "file", cfg.Scraper.SourcesFile)

	collector, err := metrics.NewCollector()
	if err != nil {
		return err
	}

	clk := clock.System{}
	fetcher := ingestion.NewHTTPFetcher(cfg.Scraper.FetchTimeout, logger,
		ingestion.WithUserAgent(cfg.Scraper.UserAgent),
		ingestion.WithRetryPolicy(ingestion.RetryPolicy{
			MaxAttempts:   cfg.Scraper.MaxAttempts,
			Backoff:       cfg.Scraper.Backoff,
			MaxRetryAfter: 30 * time.Second,
		}),
		ingestion.WithFetchRecorder(collector),
	)

	activity := ingestion.NewActivityLogger(logs, clk, logger, ingestion.ActivityConfig{
		Retention:    cfg.Scraper.LogRetention,
		CleanupBatch: cfg.Scraper.CleanupBatch,
	})

	scrapers, err := ingestion.BuildScrapers(sources, ingestion.ScraperDeps{
		Fetcher:  fetcher,
		Tenders:  tenders,
		Activity: activity,
		Clock:    clk,
		Recorder: collector,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	registry, err := scheduler.FromScrapers(scrapers)
	if err != nil {
		return err
	}

	sched := scheduler.New(registry, activity, logger, scheduler.Config{
		Interval:        cfg.Scraper.Interval,
		RunOnStart:      cfg.Scraper.RunOnStart,
		CleanupSchedule: cfg.Scraper.CleanupSchedule,
	}, scheduler.WithClock(clk), scheduler.WithCycleRecorder(collector))

	authenticator, err := auth.New(auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		AdminPassword: cfg.Auth.Password,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	api.SetupRoutes(mux, api.Deps{
		Activity: activity,
		Scrapes:  sched,
		Auth:     authenticator,
		Health:   health,
		Metrics:  collector.Handler(),
		Logger:   logger,
	})
	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(api.CORS(mux)))

	if err := sched.Start(ctx); err != nil {
		return err
	}

	serveErr := srv.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+time.Minute)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Warn("scheduler did not stop cleanly", "error", err)
	}

	return serveErr
}
