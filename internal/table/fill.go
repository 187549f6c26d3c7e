package table

import (
	"fmt"
	"math"
)

// FillMissing replaces nulls in the listed columns with their default.
// Columns not listed keep their nulls; listed columns the table lacks are
// ignored. Defaults are converted to the column kind: numbers fill Float
// columns, whole numbers fill Integer columns, and anything fills Text
// columns as its text form.
func (t *Table) FillMissing(spec map[string]any) (*Table, error) {
	if len(spec) == 0 {
		return t, nil
	}

	fills := make([]any, len(t.fields))
	for i, f := range t.fields {
		def, ok := spec[f.Name]
		if !ok || def == nil {
			continue
		}
		v, err := fillValue(def, f.Kind)
		if err != nil {
			return nil, fmt.Errorf("FillMissing %q: %w", f.Name, err)
		}
		fills[i] = v
	}
	return t.fillWith(fills), nil
}

// FillNumeric replaces nulls in every numeric column with v. Integer
// columns receive v truncated toward zero.
func (t *Table) FillNumeric(v float64) *Table {
	fills := make([]any, len(t.fields))
	for i, f := range t.fields {
		switch f.Kind {
		case Integer:
			fills[i] = int64(v)
		case Float:
			fills[i] = v
		}
	}
	return t.fillWith(fills)
}

func (t *Table) fillWith(fills []any) *Table {
	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		vals := make([]any, len(row))
		for i, v := range row {
			if v == nil {
				v = fills[i]
			}
			vals[i] = v
		}
		rows[r] = vals
	}
	return &Table{name: t.name, fields: t.fields, rows: rows}
}

func fillValue(def any, k Kind) (any, error) {
	switch k {
	case Text:
		if s, ok := def.(string); ok {
			return s, nil
		}
		return FormatValue(mustNumber(def)), nil
	case Integer:
		switch n := def.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		}
	case Float:
		switch n := def.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: default %v (%T) for %s column", ErrKindMismatch, def, def, k)
}

// mustNumber normalises Go integer types so FormatValue renders them.
func mustNumber(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
