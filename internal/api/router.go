package api

import (
	"log/slog"
	"net/http"

	"github.com/bidpilot/tenderfeed/internal/auth"
)

// Deps bundles the collaborators of the HTTP surface.
type Deps struct {
	Activity ActivityService
	Scrapes  ScrapeService
	Auth     *auth.Authenticator
	Health   Pinger
	Metrics  http.Handler
	Logger   *slog.Logger
}

// SetupRoutes configures all API routes.
func SetupRoutes(mux *http.ServeMux, deps Deps) {
	logs := NewScrapeLogHandlers(deps.Activity, deps.Logger)
	scrapes := NewScrapeHandlers(deps.Scrapes, deps.Logger)
	login := NewAuthHandler(deps.Auth, deps.Logger)
	protect := deps.Auth.Middleware

	mux.HandleFunc("GET /healthz", HealthHandler(deps.Health, deps.Logger))
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("POST /api/auth/login", login.Login)

	// Scrape log routes (public for reading)
	mux.HandleFunc("GET /api/scrape-logs", logs.Recent)
	mux.HandleFunc("GET /api/scrape-logs/since", logs.Since)
	mux.HandleFunc("GET /api/scrape-logs/stats", logs.Stats)
	mux.Handle("POST /api/scrape-logs/cleanup", protect(http.HandlerFunc(logs.Cleanup)))

	mux.HandleFunc("GET /api/sources", scrapes.Sources)
	mux.Handle("POST /api/scrape/run", protect(http.HandlerFunc(scrapes.Run)))
	mux.Handle("POST /api/scrape/run/{source}", protect(http.HandlerFunc(scrapes.RunSource)))
}

// CORS adds permissive CORS headers and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
