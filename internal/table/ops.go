package table

import (
	"fmt"
	"sort"
	"strings"
)

// WithColumn adds (or replaces) column name with values computed per row.
// fn must return nil or a value that fits kind.
func (t *Table) WithColumn(name string, kind Kind, fn func(Row) any) (*Table, error) {
	vals := make([]any, len(t.rows))
	for i := range t.rows {
		v, err := coerce(fn(Row{t: t, i: i}), kind)
		if err != nil {
			return nil, fmt.Errorf("WithColumn %q row %d: %w", name, i, err)
		}
		vals[i] = v
	}
	r := 0
	return t.withValues(Field{Name: name, Kind: kind}, func([]any) any {
		v := vals[r]
		r++
		return v
	}), nil
}

// WithConstant adds (or replaces) column name holding v on every row.
func (t *Table) WithConstant(name string, v any) (*Table, error) {
	kind := Text
	if v != nil {
		k, err := kindOf(v)
		if err != nil {
			return nil, fmt.Errorf("WithConstant %q: %w", name, err)
		}
		kind = k
	}
	cv, err := coerce(v, kind)
	if err != nil {
		return nil, fmt.Errorf("WithConstant %q: %w", name, err)
	}
	return t.withValues(Field{Name: name, Kind: kind}, func([]any) any { return cv }), nil
}

// Select keeps only the named columns, in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	fields := make([]Field, len(cols))
	for i, c := range cols {
		j := t.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("Select %q: %w", c, ErrColumnNotFound)
		}
		idx[i] = j
		fields[i] = t.fields[j]
	}
	return t.project(idx, fields), nil
}

// Drop removes every column with one of the given names. Missing names are
// ignored. Other columns keep their position and values, duplicates included.
func (t *Table) Drop(cols ...string) *Table {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	idx := make([]int, 0, len(t.fields))
	fields := make([]Field, 0, len(t.fields))
	for i, f := range t.fields {
		if !drop[f.Name] {
			idx = append(idx, i)
			fields = append(fields, f)
		}
	}
	return t.project(idx, fields)
}

// project copies the columns at positions idx into a new table.
func (t *Table) project(idx []int, fields []Field) *Table {
	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		vals := make([]any, len(idx))
		for i, j := range idx {
			vals[i] = row[j]
		}
		rows[r] = vals
	}
	return &Table{name: t.name, fields: fields, rows: rows}
}

// Filter keeps the rows for which pred returns true.
func (t *Table) Filter(pred func(Row) bool) *Table {
	rows := make([][]any, 0, len(t.rows))
	for i, row := range t.rows {
		if pred(Row{t: t, i: i}) {
			rows = append(rows, row)
		}
	}
	return &Table{name: t.name, fields: t.fields, rows: rows}
}

// Sort orders rows by col. The sort is stable. Nulls come first in
// ascending order and last in descending order.
func (t *Table) Sort(col string, desc bool) (*Table, error) {
	idx := t.Index(col)
	if idx < 0 {
		return nil, fmt.Errorf("Sort %q: %w", col, ErrColumnNotFound)
	}
	rows := make([][]any, len(t.rows))
	copy(rows, t.rows)
	sort.SliceStable(rows, func(a, b int) bool {
		c := compare(rows[a][idx], rows[b][idx])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return &Table{name: t.name, fields: t.fields, rows: rows}, nil
}

// Limit keeps at most n rows from the top.
func (t *Table) Limit(n int) *Table {
	if n < 0 || n >= len(t.rows) {
		return t
	}
	return &Table{name: t.name, fields: t.fields, rows: t.rows[:n:n]}
}

// Records returns the rows as maps keyed by column name, for JSON and
// charting consumers. With duplicate names the first column wins.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.rows))
	for r, row := range t.rows {
		rec := make(map[string]any, len(t.fields))
		for i, f := range t.fields {
			if _, dup := rec[f.Name]; dup {
				continue
			}
			rec[f.Name] = row[i]
		}
		out[r] = rec
	}
	return out
}

// ColumnNulls is the null count of one column.
type ColumnNulls struct {
	Column string `json:"column"`
	Nulls  int    `json:"nulls"`
}

// NullCounts returns the null count of every column in order.
func (t *Table) NullCounts() []ColumnNulls {
	out := make([]ColumnNulls, len(t.fields))
	for i, f := range t.fields {
		n := 0
		for _, row := range t.rows {
			if row[i] == nil {
				n++
			}
		}
		out[i] = ColumnNulls{Column: f.Name, Nulls: n}
	}
	return out
}

// compare orders two cells of the same column; nil sorts before anything.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		return cmpFloat(float64(x), toFloat(b))
	case float64:
		return cmpFloat(x, toFloat(b))
	default:
		return strings.Compare(FormatValue(a), FormatValue(b))
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}
