package table

import (
	"fmt"
	"strings"
)

// Aggregation reduces the rows of one group to a single value.
type Aggregation struct {
	// Out is the result column name.
	Out string
	// Kind is the result column kind.
	Kind Kind

	col       string
	reduce    func(vals []any) any
	predicate func(Row) bool
}

// Mean averages the non-null values of col. A group with no values is null.
func Mean(col, out string) Aggregation {
	return Aggregation{Out: out, Kind: Float, col: col, reduce: func(vals []any) any {
		sum, n := 0.0, 0
		for _, v := range vals {
			if v == nil {
				continue
			}
			sum += toFloat(v)
			n++
		}
		if n == 0 {
			return nil
		}
		return sum / float64(n)
	}}
}

// Count counts the rows of the group.
func Count(out string) Aggregation {
	return Aggregation{Out: out, Kind: Integer, reduce: func(vals []any) any {
		return int64(len(vals))
	}}
}

// Sum adds the non-null values of col.
func Sum(col, out string) Aggregation {
	return Aggregation{Out: out, Kind: Float, col: col, reduce: func(vals []any) any {
		sum := 0.0
		for _, v := range vals {
			if v != nil {
				sum += toFloat(v)
			}
		}
		return sum
	}}
}

// SumIf counts the rows of the group for which pred holds.
func SumIf(out string, pred func(Row) bool) Aggregation {
	return Aggregation{Out: out, Kind: Integer, predicate: pred}
}

// Grouped is a table partitioned by key columns.
type Grouped struct {
	t      *Table
	keys   []string
	keyIdx []int
	err    error
}

// GroupBy partitions rows by the values of keys. Groups appear in the order
// their first row appears; null is a key value of its own.
func (t *Table) GroupBy(keys ...string) *Grouped {
	g := &Grouped{t: t, keys: keys, keyIdx: make([]int, len(keys))}
	for i, k := range keys {
		j := t.Index(k)
		if j < 0 {
			g.err = fmt.Errorf("GroupBy %q: %w", k, ErrColumnNotFound)
			return g
		}
		g.keyIdx[i] = j
	}
	return g
}

// Agg computes one row per group: the key columns followed by one column
// per aggregation.
func (g *Grouped) Agg(aggs ...Aggregation) (*Table, error) {
	if g.err != nil {
		return nil, g.err
	}
	t := g.t

	colIdx := make([]int, len(aggs))
	for i, a := range aggs {
		colIdx[i] = -1
		if a.col == "" {
			continue
		}
		j := t.Index(a.col)
		if j < 0 {
			return nil, fmt.Errorf("Agg %q: %w", a.col, ErrColumnNotFound)
		}
		colIdx[i] = j
	}

	var order []string
	members := make(map[string][]int)
	for r, row := range t.rows {
		k := groupKey(row, g.keyIdx)
		if _, ok := members[k]; !ok {
			order = append(order, k)
		}
		members[k] = append(members[k], r)
	}

	fields := make([]Field, 0, len(g.keys)+len(aggs))
	for _, j := range g.keyIdx {
		fields = append(fields, t.fields[j])
	}
	for _, a := range aggs {
		fields = append(fields, Field{Name: a.Out, Kind: a.Kind})
	}

	rows := make([][]any, 0, len(order))
	for _, k := range order {
		idx := members[k]
		first := t.rows[idx[0]]
		vals := make([]any, 0, len(fields))
		for _, j := range g.keyIdx {
			vals = append(vals, first[j])
		}
		for i, a := range aggs {
			vals = append(vals, a.apply(t, idx, colIdx[i]))
		}
		rows = append(rows, vals)
	}
	return &Table{name: t.name, fields: fields, rows: rows}, nil
}

func (a Aggregation) apply(t *Table, idx []int, col int) any {
	if a.predicate != nil {
		var n int64
		for _, r := range idx {
			if a.predicate(Row{t: t, i: r}) {
				n++
			}
		}
		return n
	}
	vals := make([]any, len(idx))
	if col >= 0 {
		for i, r := range idx {
			vals[i] = t.rows[r][col]
		}
	}
	return a.reduce(vals)
}

// groupKey encodes key values so that null, "1" and 1 stay distinct.
func groupKey(row []any, idx []int) string {
	var b strings.Builder
	for _, j := range idx {
		switch v := row[j].(type) {
		case nil:
			b.WriteString("n:")
		case string:
			b.WriteString("s:")
			b.WriteString(v)
		default:
			b.WriteString("v:")
			b.WriteString(FormatValue(v))
		}
		b.WriteByte(0)
	}
	return b.String()
}
