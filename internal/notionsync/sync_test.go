package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jomei/notionapi"

	"github.com/dvloznov/menu-analytics/internal/analysis"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// MockNotionService records calls and serves pages in fixed-size batches.
type MockNotionService struct {
	Pages     []notionapi.Page
	BatchSize int
	FailOn    map[string]bool

	Created  []notionapi.Properties
	Updated  map[string]notionapi.Properties
	Archived []string
	Queries  int
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	brand := properties[PropBrand].(notionapi.TitleProperty).Title[0].Text.Content
	if m.FailOn[brand] {
		return nil, errors.New("rate limited")
	}
	m.Created = append(m.Created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("new-%d", len(m.Created)))}, nil
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.Updated == nil {
		m.Updated = make(map[string]notionapi.Properties)
	}
	m.Updated[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	m.Queries++
	start := 0
	if filter.StartCursor != "" {
		fmt.Sscanf(string(filter.StartCursor), "%d", &start)
	}
	end := start + m.BatchSize
	if m.BatchSize == 0 || end > len(m.Pages) {
		end = len(m.Pages)
	}
	resp := &notionapi.DatabaseQueryResponse{Results: m.Pages[start:end]}
	if end < len(m.Pages) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(fmt.Sprintf("%d", end))
	}
	return resp, nil
}

func (m *MockNotionService) ArchivePage(ctx context.Context, pageID string) error {
	m.Archived = append(m.Archived, pageID)
	return nil
}

func brandPage(id, brand string) notionapi.Page {
	props := notionapi.Properties{}
	if brand != "" {
		props[PropBrand] = &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: brand}}}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func summaries() []BrandSummary {
	pct := 50.0
	return []BrandSummary{
		{Brand: "Starbucks", Items: 3, Averages: map[string]float64{"Calories": 330}, HealthyPercentage: &pct, RunID: "run-1"},
		{Brand: "McDonald's", Items: 2, Averages: map[string]float64{"Calories": 275}},
	}
}

func TestPublishBrandSummary(t *testing.T) {
	mock := &MockNotionService{
		BatchSize: 2,
		Pages: []notionapi.Page{
			brandPage("p1", "Starbucks"),
			brandPage("p2", "Burger King"),
			brandPage("p3", ""),
			brandPage("p4", "Starbucks"),
		},
	}

	stats, err := PublishBrandSummary(context.Background(), mock, "db", summaries(), false)
	if err != nil {
		t.Fatalf("PublishBrandSummary failed: %v", err)
	}

	want := PublishStats{Created: 1, Updated: 1, Archived: 3}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if mock.Queries != 2 {
		t.Errorf("queries = %d, want 2 (paginated)", mock.Queries)
	}
	if diff := cmp.Diff([]string{"p2", "p3", "p4"}, mock.Archived); diff != "" {
		t.Errorf("archived mismatch (-want +got):\n%s", diff)
	}
	if _, ok := mock.Updated["p1"]; !ok {
		t.Error("expected Starbucks page p1 to be updated")
	}
	if len(mock.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(mock.Created))
	}
	if got := mock.Created[0]["Avg Calories"].(notionapi.NumberProperty).Number; got != 275 {
		t.Errorf("Avg Calories = %v, want 275", got)
	}
}

func TestPublishBrandSummary_DryRun(t *testing.T) {
	mock := &MockNotionService{Pages: []notionapi.Page{brandPage("p1", "Starbucks"), brandPage("p2", "Old")}}

	stats, err := PublishBrandSummary(context.Background(), mock, "db", summaries(), true)
	if err != nil {
		t.Fatalf("PublishBrandSummary failed: %v", err)
	}
	if diff := cmp.Diff(PublishStats{Created: 1, Updated: 1, Archived: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if len(mock.Created)+len(mock.Updated)+len(mock.Archived) != 0 {
		t.Error("dry run must not modify Notion")
	}
}

func TestPublishBrandSummary_Errors(t *testing.T) {
	mock := &MockNotionService{FailOn: map[string]bool{"McDonald's": true}}
	stats, err := PublishBrandSummary(context.Background(), mock, "db", summaries(), false)
	if err != nil {
		t.Fatalf("page failures should not abort: %v", err)
	}
	if stats.Failed != 1 || stats.Created != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	dup := append(summaries(), BrandSummary{Brand: "Starbucks"})
	if _, err := PublishBrandSummary(context.Background(), &MockNotionService{}, "db", dup, false); err == nil {
		t.Error("expected error for duplicate brand")
	}
	if _, err := PublishBrandSummary(context.Background(), &MockNotionService{}, "db", []BrandSummary{{}}, false); err == nil {
		t.Error("expected error for empty brand")
	}
}

func TestBrandSummariesFromTables(t *testing.T) {
	menu := table.MustNew("menu",
		[]table.Field{
			{Name: "Beverage", Kind: table.Text},
			{Name: "Brand", Kind: table.Text},
			{Name: "Calories", Kind: table.Integer},
		},
		[][]any{
			{"Latte", "Starbucks", 190},
			{"Mocha", "Starbucks", 410},
			{"Fries", "McDonald's", 340},
		},
	)
	opts := analysis.DefaultOptions()
	opts.Nutrients = []string{"Calories"}
	a := analysis.New(opts)

	nutrition, err := a.BrandNutrition(menu)
	if err != nil {
		t.Fatal(err)
	}
	health, err := a.HealthyStats(menu)
	if err != nil {
		t.Fatal(err)
	}

	got := BrandSummariesFromTables(nutrition, health, "run-9")
	fifty, zero := 50.0, 0.0
	want := []BrandSummary{
		{Brand: "Starbucks", Items: 2, Averages: map[string]float64{"Calories": 300}, HealthyPercentage: &fifty, RunID: "run-9"},
		{Brand: "McDonald's", Items: 1, Averages: map[string]float64{"Calories": 340}, HealthyPercentage: &zero, RunID: "run-9"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summaries mismatch (-want +got):\n%s", diff)
	}

	props := BrandSummaryToNotionProperties(got[0])
	for _, name := range []string{PropBrand, PropItems, "Avg Calories", PropHealthy, PropRunID} {
		if _, ok := props[name]; !ok {
			t.Errorf("missing property %q", name)
		}
	}
}
