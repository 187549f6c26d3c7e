package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/menu-analytics/internal/analysis"
	"github.com/dvloznov/menu-analytics/internal/api"
	"github.com/dvloznov/menu-analytics/internal/api/handlers"
	"github.com/dvloznov/menu-analytics/internal/jobs"
	"github.com/dvloznov/menu-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/menu-analytics/internal/table"
)

func menuTable() *table.Table {
	return table.MustNew("menu_merged_table",
		[]table.Field{
			{Name: "Beverage", Kind: table.Text},
			{Name: "Brand", Kind: table.Text},
			{Name: "Calories", Kind: table.Integer},
			{Name: "Protein_g", Kind: table.Float},
			{Name: "Sugars_g", Kind: table.Float},
			{Name: "Sodium_mg", Kind: table.Integer},
		},
		[][]any{
			{"Latte", "Starbucks", 190, 13.0, 18.0, 170},
			{"Frappuccino", "Starbucks", 510, 5.0, 80.0, 300},
			{"Big Mac", "McDonald's", 530, 24.0, 9.0, 960},
			{"Side Salad", "McDonald's", 20, 1.0, 2.0, 10},
		},
	)
}

type testServer struct {
	*httptest.Server
	snapshot *handlers.Snapshot
}

// newTestServer wires the router to an in-memory queue whose handler
// publishes menuTable, or fails when fail is set.
func newTestServer(t *testing.T, fail bool) *testServer {
	t.Helper()
	log := zerolog.New(io.Discard)

	snapshot := handlers.NewSnapshot()
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(10, 1, store)

	handler := func(ctx context.Context, job jobs.Job) error {
		if fail {
			return errors.New("source missing")
		}
		j := job.(*jobs.RunPipelineJob)
		j.Summary = &jobs.RunSummary{RunID: "run-" + j.JobID, Rows: 4}
		snapshot.Set(j.Summary.RunID, menuTable())
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := queue.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	router := api.NewRouter(
		handlers.NewRunsHandler(queue, store, log),
		handlers.NewAnalysisHandler(snapshot, analysis.New(analysis.DefaultOptions()), log),
		log,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		queue.Close()
	})
	return &testServer{Server: srv, snapshot: snapshot}
}

func doJSON(t *testing.T, method, url string, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func waitForRun(t *testing.T, srv *testServer, id string, want jobs.JobStatus) jobs.RunPipelineJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var job jobs.RunPipelineJob
	for time.Now().Before(deadline) {
		if code := doJSON(t, http.MethodGet, srv.URL+"/api/runs/"+id, "", &job); code == http.StatusOK && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach %s, last: %+v", id, want, job)
	return job
}

type tableBody struct {
	RunID   string           `json:"run_id"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
}

func TestRunThenAnalyse(t *testing.T) {
	srv := newTestServer(t, false)

	var errBody map[string]string
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/brands/nutrition", "", &errBody); code != http.StatusNotFound {
		t.Errorf("before first run: status %d, want 404", code)
	}

	var created map[string]string
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/runs", "", &created); code != http.StatusAccepted {
		t.Fatalf("POST /api/runs: status %d", code)
	}
	if created["job_id"] == "" || created["status"] != "pending" {
		t.Fatalf("unexpected create response: %v", created)
	}

	run := waitForRun(t, srv, created["job_id"], jobs.JobStatusCompleted)
	if run.Summary == nil || run.Summary.Rows != 4 {
		t.Errorf("unexpected summary: %+v", run.Summary)
	}
	runID := "run-" + created["job_id"]

	var nutrition tableBody
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/brands/nutrition", "", &nutrition); code != http.StatusOK {
		t.Fatalf("nutrition: status %d", code)
	}
	if nutrition.RunID != runID || nutrition.Count != 2 {
		t.Errorf("unexpected nutrition response: %+v", nutrition)
	}

	var health tableBody
	doJSON(t, http.MethodGet, srv.URL+"/api/brands/health", "", &health)
	if len(health.Rows) != 2 || health.Rows[0]["Healthy_Percentage"] != 50.0 {
		t.Errorf("unexpected health rows: %v", health.Rows)
	}

	var top tableBody
	doJSON(t, http.MethodGet, srv.URL+"/api/items/top?order=asc&limit=2", "", &top)
	if top.Count != 2 || top.Rows[0]["Beverage"] != "Side Salad" || top.Rows[1]["Beverage"] != "Latte" {
		t.Errorf("unexpected top rows: %v", top.Rows)
	}

	var rich tableBody
	doJSON(t, http.MethodGet, srv.URL+"/api/items/protein-rich", "", &rich)
	if rich.Count != 1 || rich.Rows[0]["Beverage"] != "Latte" {
		t.Errorf("unexpected protein rich rows: %v", rich.Rows)
	}

	var over tableBody
	doJSON(t, http.MethodGet, srv.URL+"/api/items/overload", "", &over)
	if over.Count != 1 || over.Rows[0]["Beverage"] != "Frappuccino" {
		t.Errorf("unexpected overload rows: %v", over.Rows)
	}

	var nulls struct {
		Columns []table.ColumnNulls `json:"columns"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/api/columns/nulls", "", &nulls)
	if len(nulls.Columns) != 6 || nulls.Columns[0].Column != "Beverage" {
		t.Errorf("unexpected null counts: %+v", nulls.Columns)
	}

	var list struct {
		Runs  []jobs.RunPipelineJob `json:"runs"`
		Count int                   `json:"count"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/api/runs?status=completed", "", &list)
	if list.Count != 1 || list.Runs[0].JobID != created["job_id"] {
		t.Errorf("unexpected run list: %+v", list)
	}
}

func TestFailedRun(t *testing.T) {
	srv := newTestServer(t, true)

	var created map[string]string
	doJSON(t, http.MethodPost, srv.URL+"/api/runs", `{"sources":["menu"]}`, &created)

	run := waitForRun(t, srv, created["job_id"], jobs.JobStatusFailed)
	if run.Error != "source missing" || run.RetryCount != 0 {
		t.Errorf("unexpected failed run: %+v", run)
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/items/top", "", nil); code != http.StatusNotFound {
		t.Errorf("analysis after failed run: status %d, want 404", code)
	}
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t, false)
	srv.snapshot.Set("run-0", menuTable())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "unknown run", method: http.MethodGet, path: "/api/runs/nope", want: http.StatusNotFound},
		{name: "missing run id", method: http.MethodGet, path: "/api/runs/", want: http.StatusBadRequest},
		{name: "bad body", method: http.MethodPost, path: "/api/runs", body: "{", want: http.StatusBadRequest},
		{name: "negative retries", method: http.MethodPost, path: "/api/runs", body: `{"max_retries":-1}`, want: http.StatusBadRequest},
		{name: "runs method", method: http.MethodDelete, path: "/api/runs", want: http.StatusMethodNotAllowed},
		{name: "analysis method", method: http.MethodPost, path: "/api/brands/health", want: http.StatusMethodNotAllowed},
		{name: "bad order", method: http.MethodGet, path: "/api/items/top?order=sideways", want: http.StatusBadRequest},
		{name: "bad limit", method: http.MethodGet, path: "/api/items/top?limit=0", want: http.StatusBadRequest},
		{name: "top default", method: http.MethodGet, path: "/api/items/top", want: http.StatusOK},
		{name: "health", method: http.MethodGet, path: "/health", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := doJSON(t, tt.method, srv.URL+tt.path, tt.body, nil); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}
