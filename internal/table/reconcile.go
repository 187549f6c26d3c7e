package table

import (
	"fmt"
	"strings"
)

// PositionalColumn is the name given to a column whose header cell was blank.
const PositionalColumn = "_c0"

// DuplicatePolicy decides what happens when the identifier name ends up on
// more than one column.
type DuplicatePolicy int

const (
	// CoalesceDuplicates merges same-named columns, first non-null value wins.
	CoalesceDuplicates DuplicatePolicy = iota
	// FailOnDuplicate rejects the table with ErrDuplicateColumn.
	FailOnDuplicate
)

func (p DuplicatePolicy) String() string {
	if p == FailOnDuplicate {
		return "fail"
	}
	return "coalesce"
}

// ParseDuplicatePolicy parses "coalesce" or "fail". Empty means coalesce.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "coalesce":
		return CoalesceDuplicates, nil
	case "fail", "error":
		return FailOnDuplicate, nil
	default:
		return CoalesceDuplicates, fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// ReconcileIdentifier renames the positional column to the canonical
// identifier name and resolves any resulting duplicate per policy.
func (t *Table) ReconcileIdentifier(positional, canonical string, policy DuplicatePolicy) (*Table, error) {
	out := t
	if positional != "" && positional != canonical {
		out = t.Rename(map[string]string{positional: canonical})
	}
	idx := out.indexesOf(canonical)
	if len(idx) <= 1 {
		return out, nil
	}
	if policy == FailOnDuplicate {
		return nil, fmt.Errorf("ReconcileIdentifier: table %q: %w %q appears %d times", t.name, ErrDuplicateColumn, canonical, len(idx))
	}
	return out.mergeColumns(idx), nil
}

// Coalesce writes into column out the first non-null value among cols,
// left to right. An existing out column is replaced in place; otherwise it
// is appended.
func (t *Table) Coalesce(out string, cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	kind := Kind(-1)
	for i, c := range cols {
		j := t.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("Coalesce %q: %w", c, ErrColumnNotFound)
		}
		idx[i] = j
		if kind < 0 {
			kind = t.fields[j].Kind
		} else {
			kind = widen(kind, t.fields[j].Kind)
		}
	}
	if kind < 0 {
		kind = Text
	}
	return t.withValues(Field{Name: out, Kind: kind}, func(row []any) any {
		for _, j := range idx {
			if row[j] != nil {
				return convert(row[j], kind)
			}
		}
		return nil
	}), nil
}

// mergeColumns folds the columns at idx into the first of them.
func (t *Table) mergeColumns(idx []int) *Table {
	kind := t.fields[idx[0]].Kind
	drop := make(map[int]bool, len(idx)-1)
	for _, j := range idx[1:] {
		kind = widen(kind, t.fields[j].Kind)
		drop[j] = true
	}

	fields := make([]Field, 0, len(t.fields)-len(drop))
	for i, f := range t.fields {
		if drop[i] {
			continue
		}
		if i == idx[0] {
			f.Kind = kind
		}
		fields = append(fields, f)
	}

	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		var merged any
		for _, j := range idx {
			if row[j] != nil {
				merged = convert(row[j], kind)
				break
			}
		}
		vals := make([]any, 0, len(fields))
		for i, v := range row {
			if drop[i] {
				continue
			}
			if i == idx[0] {
				v = merged
			}
			vals = append(vals, v)
		}
		rows[r] = vals
	}
	return &Table{name: t.name, fields: fields, rows: rows}
}

// withValues sets column f from fn, replacing the first same-named column
// or appending a new one. fn must return values already typed for f.Kind.
func (t *Table) withValues(f Field, fn func(row []any) any) *Table {
	pos := t.Index(f.Name)
	fields := t.Fields()
	if pos < 0 {
		fields = append(fields, f)
	} else {
		fields[pos] = f
	}

	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		v := fn(row)
		vals := make([]any, len(fields))
		copy(vals, row)
		if pos < 0 {
			vals[len(fields)-1] = v
		} else {
			vals[pos] = v
		}
		rows[r] = vals
	}
	return &Table{name: t.name, fields: fields, rows: rows}
}
