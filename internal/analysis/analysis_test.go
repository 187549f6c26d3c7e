package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dvloznov/menu-analytics/internal/table"
)

func menuFixture() *table.Table {
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
			{"Egg Bites", "Starbucks", 290, 19.0, 2.0, 600},
			{"Big Mac", "McDonald's", 530, 24.0, 9.0, 960},
			{"Fries", "McDonald's", 340, 4.0, 0.0, 190},
			{"Big Breakfast", "McDonald's", 1150, 36.0, 17.0, 2260},
			{"Water", "unknown", nil, nil, nil, nil},
		},
	)
}

func testAnalyzer() *Analyzer {
	opts := DefaultOptions()
	opts.Nutrients = []string{"Calories", "Saturated_Fat_g", "Protein_g"}
	return New(opts)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.HealthyCalories != 300 || opts.ProteinMin != 10 || opts.SugarMax != 50 || opts.SodiumMax != 1000 || opts.TopN != 5 {
		t.Errorf("unexpected thresholds: %+v", opts)
	}
	if opts.Identifier != "Beverage" || opts.Brand != "Brand" {
		t.Errorf("unexpected columns: %+v", opts)
	}
}

func TestBrandNutrition(t *testing.T) {
	got, err := testAnalyzer().BrandNutrition(menuFixture())
	if err != nil {
		t.Fatalf("BrandNutrition failed: %v", err)
	}

	// Saturated_Fat_g is not in the table and is skipped.
	wantCols := []string{"Brand", "Avg_Calories", "Avg_Protein_g", "Items"}
	if diff := cmp.Diff(wantCols, got.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	want := []map[string]any{
		{"Brand": "Starbucks", "Avg_Calories": 330.0, "Avg_Protein_g": 37.0 / 3, "Items": int64(3)},
		{"Brand": "McDonald's", "Avg_Calories": 2020.0 / 3, "Avg_Protein_g": 64.0 / 3, "Items": int64(3)},
		{"Brand": "unknown", "Avg_Calories": nil, "Avg_Protein_g": nil, "Items": int64(1)},
	}
	if diff := cmp.Diff(want, got.Records(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestHealthyStats(t *testing.T) {
	got, err := testAnalyzer().HealthyStats(menuFixture())
	if err != nil {
		t.Fatalf("HealthyStats failed: %v", err)
	}
	want := []map[string]any{
		{"Brand": "Starbucks", "Healthy_Items": int64(2), "Total_Items": int64(3), "Healthy_Percentage": 66.67},
		{"Brand": "McDonald's", "Healthy_Items": int64(0), "Total_Items": int64(3), "Healthy_Percentage": 0.0},
		{"Brand": "unknown", "Healthy_Items": int64(0), "Total_Items": int64(1), "Healthy_Percentage": 0.0},
	}
	if diff := cmp.Diff(want, got.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestTopItems(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		ascending bool
		want      []any
	}{
		{name: "highest", n: 2, want: []any{"Big Breakfast", "Big Mac"}},
		{name: "lowest", n: 2, ascending: true, want: []any{"Latte", "Egg Bites"}},
		{name: "default n skips null calories", n: 0, want: []any{"Big Breakfast", "Big Mac", "Frappuccino", "Fries", "Egg Bites"}},
		{name: "n larger than table", n: 50, ascending: true, want: []any{"Latte", "Egg Bites", "Fries", "Frappuccino", "Big Mac", "Big Breakfast"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testAnalyzer().TopItems(menuFixture(), tt.n, tt.ascending)
			if err != nil {
				t.Fatalf("TopItems failed: %v", err)
			}
			if diff := cmp.Diff([]string{"Beverage", "Brand", "Calories"}, got.Columns()); diff != "" {
				t.Errorf("columns mismatch (-want +got):\n%s", diff)
			}
			items, _ := got.Column("Beverage")
			if diff := cmp.Diff(tt.want, items); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilters(t *testing.T) {
	a := testAnalyzer()

	rich, err := a.ProteinRich(menuFixture())
	if err != nil {
		t.Fatalf("ProteinRich failed: %v", err)
	}
	items, _ := rich.Column("Beverage")
	if diff := cmp.Diff([]any{"Latte", "Egg Bites"}, items); diff != "" {
		t.Errorf("protein rich mismatch (-want +got):\n%s", diff)
	}

	over, err := a.SugarSodiumOverload(menuFixture())
	if err != nil {
		t.Fatalf("SugarSodiumOverload failed: %v", err)
	}
	items, _ = over.Column("Beverage")
	if diff := cmp.Diff([]any{"Frappuccino", "Big Breakfast"}, items); diff != "" {
		t.Errorf("overload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Beverage", "Brand", "Sugars_g", "Sodium_mg"}, over.Columns()); diff != "" {
		t.Errorf("overload columns mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingColumns(t *testing.T) {
	a := testAnalyzer()
	noCalories := menuFixture().Drop("Calories")

	if _, err := a.HealthyStats(noCalories); !errors.Is(err, table.ErrColumnNotFound) {
		t.Errorf("HealthyStats: expected ErrColumnNotFound, got %v", err)
	}
	if _, err := a.TopItems(noCalories, 3, false); !errors.Is(err, table.ErrColumnNotFound) {
		t.Errorf("TopItems: expected ErrColumnNotFound, got %v", err)
	}
	if _, err := a.BrandNutrition(menuFixture().Drop("Brand")); !errors.Is(err, table.ErrColumnNotFound) {
		t.Errorf("BrandNutrition: expected ErrColumnNotFound, got %v", err)
	}
}

func TestNullCounts(t *testing.T) {
	want := []table.ColumnNulls{
		{Column: "Beverage", Nulls: 0},
		{Column: "Brand", Nulls: 0},
		{Column: "Calories", Nulls: 1},
		{Column: "Protein_g", Nulls: 1},
		{Column: "Sugars_g", Nulls: 1},
		{Column: "Sodium_mg", Nulls: 1},
	}
	if diff := cmp.Diff(want, NullCounts(menuFixture())); diff != "" {
		t.Errorf("null counts mismatch (-want +got):\n%s", diff)
	}
}

func TestReport_Write(t *testing.T) {
	report, err := testAnalyzer().Build(menuFixture())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(report.Sections) != 6 {
		t.Fatalf("sections = %d, want 6", len(report.Sections))
	}

	var text bytes.Buffer
	if err := report.Write(&text, FormatText); err != nil {
		t.Fatalf("text: %v", err)
	}
	for _, want := range []string{"Menu report: menu_merged_table (7 rows)", "Highest calorie items", "Big Breakfast", "66.67", "Null counts"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text report missing %q", want)
		}
	}

	var csvOut bytes.Buffer
	if err := report.Write(&csvOut, FormatCSV); err != nil {
		t.Fatalf("csv: %v", err)
	}
	if !strings.Contains(csvOut.String(), "# Healthy items by brand\nBrand,Healthy_Items,Total_Items,Healthy_Percentage\n") {
		t.Errorf("csv report missing healthy section header:\n%s", csvOut.String())
	}

	var jsonOut bytes.Buffer
	if err := report.Write(&jsonOut, FormatJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded struct {
		Rows     int `json:"rows"`
		Sections []struct {
			Title string           `json:"title"`
			Rows  []map[string]any `json:"rows"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(jsonOut.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded.Rows != 7 || len(decoded.Sections) != 6 {
		t.Errorf("unexpected json report: rows=%d sections=%d", decoded.Rows, len(decoded.Sections))
	}
	if got := decoded.Sections[2].Rows[0]["Beverage"]; got != "Big Breakfast" {
		t.Errorf("top item = %v, want Big Breakfast", got)
	}

	if err := report.Write(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
