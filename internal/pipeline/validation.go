package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// SchemaValidator checks the unified table against the columns the
// analysis relies on.
type SchemaValidator struct {
	required []string // Columns that must exist
	numeric  []string // Columns that must be numeric when present
}

// NewSchemaValidator creates a validator. Required columns must exist;
// numeric columns may be absent (with a warning) but must not hold text.
func NewSchemaValidator(required, numeric []string) *SchemaValidator {
	return &SchemaValidator{required: required, numeric: numeric}
}

// Validate returns nil if t satisfies the schema. A missing column error
// names near matches that differ only in case or surrounding underscores.
func (v *SchemaValidator) Validate(ctx context.Context, t *table.Table) error {
	log := logger.FromContext(ctx)

	for _, col := range v.required {
		if !t.Has(col) {
			return fmt.Errorf("required column %q: %w%s", col, table.ErrColumnNotFound, suggest(t, col))
		}
	}

	for _, col := range v.numeric {
		f, ok := t.Field(col)
		if !ok {
			log.Warn().Str("column", col).Msg("Nutrient column missing from unified table")
			continue
		}
		if !f.Kind.Numeric() {
			return fmt.Errorf("column %q is %s, want numeric: %w", col, f.Kind, table.ErrKindMismatch)
		}
	}
	return nil
}

// normalizeColumnKey normalizes a column name for loose comparison.
// Converts to uppercase and trims whitespace and underscores.
func normalizeColumnKey(name string) string {
	return strings.ToUpper(strings.Trim(name, " _"))
}

// suggest lists columns of t that loosely match col.
func suggest(t *table.Table, col string) string {
	want := normalizeColumnKey(col)
	var near []string
	for _, c := range t.Columns() {
		if normalizeColumnKey(c) == want {
			near = append(near, c)
		}
	}
	if len(near) == 0 {
		return ""
	}
	sort.Strings(near)
	return fmt.Sprintf(" (did you mean %s?)", strings.Join(near, ", "))
}
