// Package analysis computes the brand comparisons shown on the menu
// dashboard from a unified menu table.
package analysis

import (
	"fmt"
	"math"

	"github.com/dvloznov/menu-analytics/internal/config"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// Output column names.
const (
	ItemsColumn             = "Items"
	HealthyItemsColumn      = "Healthy_Items"
	TotalItemsColumn        = "Total_Items"
	HealthyPercentageColumn = "Healthy_Percentage"
	AvgPrefix               = "Avg_"
)

// Options names the columns and thresholds used by the analyses.
type Options struct {
	Identifier string
	Brand      string
	Calories   string
	Protein    string
	Sugar      string
	Sodium     string
	// Nutrients are averaged per brand, in order.
	Nutrients []string

	// HealthyCalories is the exclusive upper bound for a healthy item.
	HealthyCalories float64
	ProteinMin      float64
	SugarMax        float64
	SodiumMax       float64
	// TopN is the default item count for TopItems.
	TopN int
}

// DefaultOptions returns the thresholds of the menu comparison notebook.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps configuration onto analysis options.
func OptionsFromConfig(cfg *config.Config) Options {
	a := cfg.Analysis
	return Options{
		Identifier:      cfg.Identifier.Column,
		Brand:           cfg.Brand.Column,
		Calories:        a.CaloriesColumn,
		Protein:         a.ProteinColumn,
		Sugar:           a.SugarColumn,
		Sodium:          a.SodiumColumn,
		Nutrients:       append([]string(nil), a.Nutrients...),
		HealthyCalories: a.HealthyCalories,
		ProteinMin:      a.ProteinMin,
		SugarMax:        a.SugarMax,
		SodiumMax:       a.SodiumMax,
		TopN:            a.TopN,
	}
}

// Analyzer runs analyses over one unified table.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	return &Analyzer{opts: opts}
}

// Options returns the analyzer's options.
func (a *Analyzer) Options() Options { return a.opts }

// BrandNutrition averages each nutrient per brand, with an item count.
// Nutrient columns missing from t are skipped.
func (a *Analyzer) BrandNutrition(t *table.Table) (*table.Table, error) {
	aggs := make([]table.Aggregation, 0, len(a.opts.Nutrients)+1)
	for _, col := range a.opts.Nutrients {
		if !t.Has(col) {
			continue
		}
		aggs = append(aggs, table.Mean(col, AvgPrefix+col))
	}
	aggs = append(aggs, table.Count(ItemsColumn))

	out, err := t.GroupBy(a.opts.Brand).Agg(aggs...)
	if err != nil {
		return nil, fmt.Errorf("BrandNutrition: %w", err)
	}
	return out.WithName("brand_nutrition"), nil
}

// IsHealthy reports whether a row's calories are below the healthy threshold.
// Rows without a calorie value are not healthy.
func (a *Analyzer) IsHealthy(r table.Row) bool {
	cal, ok := r.Float(a.opts.Calories)
	return ok && cal < a.opts.HealthyCalories
}

// HealthyStats counts healthy items per brand and their percentage,
// rounded to two decimals.
func (a *Analyzer) HealthyStats(t *table.Table) (*table.Table, error) {
	if !t.Has(a.opts.Calories) {
		return nil, fmt.Errorf("HealthyStats %q: %w", a.opts.Calories, table.ErrColumnNotFound)
	}
	out, err := t.GroupBy(a.opts.Brand).Agg(
		table.SumIf(HealthyItemsColumn, a.IsHealthy),
		table.Count(TotalItemsColumn),
	)
	if err != nil {
		return nil, fmt.Errorf("HealthyStats: %w", err)
	}
	out, err = out.WithColumn(HealthyPercentageColumn, table.Float, func(r table.Row) any {
		healthy, _ := r.Float(HealthyItemsColumn)
		total, _ := r.Float(TotalItemsColumn)
		if total == 0 {
			return nil
		}
		return round2(healthy / total * 100)
	})
	if err != nil {
		return nil, fmt.Errorf("HealthyStats: %w", err)
	}
	return out.WithName("healthy_stats"), nil
}

// TopItems returns identifier, brand and calories of the n items with the
// most calories, or the fewest when ascending. n <= 0 uses TopN. Items
// without a calorie value are left out.
func (a *Analyzer) TopItems(t *table.Table, n int, ascending bool) (*table.Table, error) {
	if n <= 0 {
		n = a.opts.TopN
	}
	out, err := t.Select(a.opts.Identifier, a.opts.Brand, a.opts.Calories)
	if err != nil {
		return nil, fmt.Errorf("TopItems: %w", err)
	}
	out = out.Filter(func(r table.Row) bool { return !r.IsNull(a.opts.Calories) })
	out, err = out.Sort(a.opts.Calories, !ascending)
	if err != nil {
		return nil, fmt.Errorf("TopItems: %w", err)
	}
	name := "top_items"
	if ascending {
		name = "lowest_calorie_items"
	}
	return out.Limit(n).WithName(name), nil
}

// ProteinRich lists healthy items with more protein than ProteinMin.
func (a *Analyzer) ProteinRich(t *table.Table) (*table.Table, error) {
	out, err := t.Select(a.opts.Identifier, a.opts.Brand, a.opts.Calories, a.opts.Protein)
	if err != nil {
		return nil, fmt.Errorf("ProteinRich: %w", err)
	}
	return out.Filter(func(r table.Row) bool {
		protein, ok := r.Float(a.opts.Protein)
		return ok && a.IsHealthy(r) && protein > a.opts.ProteinMin
	}).WithName("protein_rich"), nil
}

// SugarSodiumOverload lists items over the sugar or the sodium limit.
func (a *Analyzer) SugarSodiumOverload(t *table.Table) (*table.Table, error) {
	out, err := t.Select(a.opts.Identifier, a.opts.Brand, a.opts.Sugar, a.opts.Sodium)
	if err != nil {
		return nil, fmt.Errorf("SugarSodiumOverload: %w", err)
	}
	return out.Filter(func(r table.Row) bool {
		sugar, okSugar := r.Float(a.opts.Sugar)
		sodium, okSodium := r.Float(a.opts.Sodium)
		return (okSugar && sugar > a.opts.SugarMax) || (okSodium && sodium > a.opts.SodiumMax)
	}).WithName("sugar_sodium_overload"), nil
}

// NullCounts returns the number of nulls in every column of t.
func NullCounts(t *table.Table) []table.ColumnNulls {
	return t.NullCounts()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
