package table

// Row is a read-only view of one table row.
type Row struct {
	t *Table
	i int
}

// Index returns the row position within its table.
func (r Row) Index() int { return r.i }

// Get returns the value of the first column called name, or nil when the
// column is missing or the cell is null.
func (r Row) Get(name string) any {
	idx := r.t.Index(name)
	if idx < 0 {
		return nil
	}
	return r.t.rows[r.i][idx]
}

// IsNull reports whether the named cell is null or the column is missing.
func (r Row) IsNull(name string) bool { return r.Get(name) == nil }

// String returns the named cell rendered as text.
func (r Row) String(name string) (string, bool) {
	v := r.Get(name)
	if v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// Float returns a numeric cell as float64. Text cells report false.
func (r Row) Float(name string) (float64, bool) {
	switch v := r.Get(name).(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// Values returns a copy of the row's cells in column order.
func (r Row) Values() []any {
	out := make([]any, len(r.t.rows[r.i]))
	copy(out, r.t.rows[r.i])
	return out
}
