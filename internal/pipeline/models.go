package pipeline

import (
	"time"

	"github.com/dvloznov/menu-analytics/internal/table"
)

// SourceStats describes one loaded source.
type SourceStats struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Stats summarises a run.
type Stats struct {
	Sources       []SourceStats `json:"sources"`
	Rows          int           `json:"rows"`
	Columns       int           `json:"columns"`
	FilledNulls   int           `json:"filled_nulls"`
	UnknownBrands int           `json:"unknown_brands"`
	Persisted     bool          `json:"persisted"`
	Table         string        `json:"table"`
	Duration      time.Duration `json:"duration"`
}

// Result is the outcome of a successful run.
type Result struct {
	RunID   string       `json:"run_id"`
	Unified *table.Table `json:"-"`
	Stats   Stats        `json:"stats"`
}
