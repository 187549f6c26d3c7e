package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvloznov/menu-analytics/internal/analysis"
	"github.com/dvloznov/menu-analytics/internal/api/middleware"
	"github.com/dvloznov/menu-analytics/internal/jobs"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// Snapshot holds the unified table of the latest completed run.
// It is safe for concurrent use.
type Snapshot struct {
	mu    sync.RWMutex
	table *table.Table
	runID string
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Set replaces the snapshot.
func (s *Snapshot) Set(runID string, t *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t
	s.runID = runID
}

// Get returns the latest table and its run ID. ok is false before any run.
func (s *Snapshot) Get() (t *table.Table, runID string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table, s.runID, s.table != nil
}

// RunsHandler handles pipeline run endpoints.
type RunsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// CreateRun handles POST /api/runs
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sources    []string `json:"sources"`
		MaxRetries int      `json:"max_retries"`
	}

	// An empty body requests a full run.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MaxRetries < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "max_retries must not be negative")
		return
	}

	job := &jobs.RunPipelineJob{
		Sources:    req.Sources,
		MaxRetries: req.MaxRetries,
	}

	if err := h.publisher.PublishRunPipeline(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue pipeline run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue pipeline run")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Strs("sources", req.Sources).Msg("Pipeline run enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	runs, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// AnalysisHandler serves analysis results over the latest completed run.
type AnalysisHandler struct {
	snapshot *Snapshot
	analyzer *analysis.Analyzer
	log      zerolog.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(snapshot *Snapshot, analyzer *analysis.Analyzer, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		snapshot: snapshot,
		analyzer: analyzer,
		log:      log,
	}
}

// tableResponse is the JSON shape of a tabular result, ready for charting.
type tableResponse struct {
	RunID   string           `json:"run_id"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
}

// serve runs fn over the snapshot table and writes the result.
func (h *AnalysisHandler) serve(w http.ResponseWriter, name string, fn func(*table.Table) (*table.Table, error)) {
	t, runID, ok := h.snapshot.Get()
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "No completed run yet")
		return
	}

	out, err := fn(t)
	if err != nil {
		h.log.Error().Err(err).Str("analysis", name).Msg("Analysis failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute "+name)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tableResponse{
		RunID:   runID,
		Columns: out.Columns(),
		Rows:    out.Records(),
		Count:   out.NumRows(),
	})
}

// BrandNutrition handles GET /api/brands/nutrition
func (h *AnalysisHandler) BrandNutrition(w http.ResponseWriter, r *http.Request) {
	h.serve(w, "brand nutrition", h.analyzer.BrandNutrition)
}

// BrandHealth handles GET /api/brands/health
func (h *AnalysisHandler) BrandHealth(w http.ResponseWriter, r *http.Request) {
	h.serve(w, "healthy stats", h.analyzer.HealthyStats)
}

// TopItems handles GET /api/items/top?order=asc|desc&limit=n
func (h *AnalysisHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	ascending := false
	switch strings.ToLower(query.Get("order")) {
	case "", "desc":
	case "asc":
		ascending = true
	default:
		middleware.WriteError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	h.serve(w, "top items", func(t *table.Table) (*table.Table, error) {
		return h.analyzer.TopItems(t, limit, ascending)
	})
}

// ProteinRich handles GET /api/items/protein-rich
func (h *AnalysisHandler) ProteinRich(w http.ResponseWriter, r *http.Request) {
	h.serve(w, "protein rich items", h.analyzer.ProteinRich)
}

// Overload handles GET /api/items/overload
func (h *AnalysisHandler) Overload(w http.ResponseWriter, r *http.Request) {
	h.serve(w, "sugar and sodium overload", h.analyzer.SugarSodiumOverload)
}

// NullCounts handles GET /api/columns/nulls
func (h *AnalysisHandler) NullCounts(w http.ResponseWriter, r *http.Request) {
	t, runID, ok := h.snapshot.Get()
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "No completed run yet")
		return
	}

	counts := analysis.NullCounts(t)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"columns": counts,
		"count":   len(counts),
	})
}
