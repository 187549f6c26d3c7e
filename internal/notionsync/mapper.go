package notionsync

import (
	"sort"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/menu-analytics/internal/analysis"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// Notion property names of the brand summary database.
const (
	PropBrand   = "Brand"
	PropItems   = "Items"
	PropHealthy = "Healthy %"
	PropRunID   = "Run ID"
	// Averages are stored as "Avg <column>".
	avgPropPrefix = "Avg "
)

// BrandSummary is one brand's row in the summary database.
type BrandSummary struct {
	Brand string
	Items int
	// Averages maps a nutrient column to its mean for the brand.
	Averages          map[string]float64
	HealthyPercentage *float64
	RunID             string
}

// BrandSummariesFromTables joins the BrandNutrition and HealthyStats results
// by brand. health may be nil. Brands keep the order of nutrition.
func BrandSummariesFromTables(nutrition, health *table.Table, runID string) []BrandSummary {
	healthy := make(map[string]float64)
	if health != nil {
		for i := 0; i < health.NumRows(); i++ {
			r := health.Row(i)
			brand, ok := r.String(keyColumn(health))
			if !ok {
				continue
			}
			if pct, ok := r.Float(analysis.HealthyPercentageColumn); ok {
				healthy[brand] = pct
			}
		}
	}

	out := make([]BrandSummary, 0, nutrition.NumRows())
	for i := 0; i < nutrition.NumRows(); i++ {
		r := nutrition.Row(i)
		brand, ok := r.String(keyColumn(nutrition))
		if !ok {
			continue
		}
		s := BrandSummary{Brand: brand, Averages: make(map[string]float64), RunID: runID}
		if n, ok := r.Float(analysis.ItemsColumn); ok {
			s.Items = int(n)
		}
		for _, col := range nutrition.Columns() {
			if !strings.HasPrefix(col, analysis.AvgPrefix) {
				continue
			}
			if v, ok := r.Float(col); ok {
				s.Averages[strings.TrimPrefix(col, analysis.AvgPrefix)] = v
			}
		}
		if pct, ok := healthy[brand]; ok {
			p := pct
			s.HealthyPercentage = &p
		}
		out = append(out, s)
	}
	return out
}

// keyColumn returns the group key column, which grouped tables put first.
func keyColumn(t *table.Table) string {
	if t.NumColumns() == 0 {
		return ""
	}
	return t.Columns()[0]
}

// BrandSummaryToNotionProperties converts a BrandSummary to Notion properties.
func BrandSummaryToNotionProperties(s BrandSummary) notionapi.Properties {
	props := notionapi.Properties{
		PropBrand: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: s.Brand,
					},
				},
			},
		},
		PropItems: notionapi.NumberProperty{
			Number: float64(s.Items),
		},
	}

	names := make([]string, 0, len(s.Averages))
	for col := range s.Averages {
		names = append(names, col)
	}
	sort.Strings(names)
	for _, col := range names {
		props[avgPropPrefix+col] = notionapi.NumberProperty{
			Number: s.Averages[col],
		}
	}

	if s.HealthyPercentage != nil {
		props[PropHealthy] = notionapi.NumberProperty{
			Number: *s.HealthyPercentage,
		}
	}

	if s.RunID != "" {
		props[PropRunID] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: s.RunID,
					},
				},
			},
		}
	}

	return props
}

// extractBrand extracts the brand title from a Notion page's properties.
// Returns empty string if not found.
func extractBrand(page notionapi.Page) string {
	if prop, ok := page.Properties[PropBrand]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
