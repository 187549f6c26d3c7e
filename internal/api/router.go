// Package api wires the HTTP routes of the menu analytics server.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/menu-analytics/internal/api/handlers"
	"github.com/dvloznov/menu-analytics/internal/api/middleware"
)

// NewRouter registers every endpoint and wraps the mux in the middleware chain.
func NewRouter(runs *handlers.RunsHandler, analysis *handlers.AnalysisHandler, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Run endpoints
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			runs.ListRuns(w, r)
		case http.MethodPost:
			runs.CreateRun(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Extract run ID from path
		jobID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
			return
		}
		runs.GetRun(w, r, jobID)
	})

	// Analysis endpoints
	get := map[string]http.HandlerFunc{
		"/api/brands/nutrition":   analysis.BrandNutrition,
		"/api/brands/health":      analysis.BrandHealth,
		"/api/items/top":          analysis.TopItems,
		"/api/items/protein-rich": analysis.ProteinRich,
		"/api/items/overload":     analysis.Overload,
		"/api/columns/nulls":      analysis.NullCounts,
	}
	for path, h := range get {
		mux.HandleFunc(path, getOnly(h))
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.CORS,
	)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
