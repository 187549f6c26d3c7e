package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the value type of a column.
type Kind int

const (
	// Text columns hold string values.
	Text Kind = iota
	// Integer columns hold int64 values.
	Integer
	// Float columns hold float64 values.
	Float
)

// String returns the lower-case kind name used in configs and logs.
func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Float:
		return "float"
	default:
		return "text"
	}
}

// Numeric reports whether the kind holds numbers.
func (k Kind) Numeric() bool {
	return k == Integer || k == Float
}

// ParseKind parses a kind name as produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string":
		return Text, nil
	case "integer", "int", "int64":
		return Integer, nil
	case "float", "float64", "double":
		return Float, nil
	default:
		return Text, fmt.Errorf("unknown column kind %q", s)
	}
}

var (
	// ErrColumnNotFound is returned when an operation names a column the table lacks.
	ErrColumnNotFound = errors.New("column not found")
	// ErrDuplicateColumn is returned when two columns share a name where uniqueness is required.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrRaggedRow is returned when a row has a different number of cells than the header.
	ErrRaggedRow = errors.New("row length does not match header")
	// ErrKindMismatch is returned when a value cannot be stored in a column of the given kind.
	ErrKindMismatch = errors.New("value does not match column kind")
)

// Field describes one column.
type Field struct {
	Name string
	Kind Kind
}

// Table is an immutable, ordered set of typed columns with independent rows.
// Every value is nil (null), string, int64 or float64 according to its column kind.
// Operations never modify the receiver; they return a new Table.
type Table struct {
	name   string
	fields []Field
	rows   [][]any
}

// New builds a table after checking every row against the fields.
// Go ints are widened to int64 and integers stored in Float columns become float64.
func New(name string, fields []Field, rows [][]any) (*Table, error) {
	fs := make([]Field, len(fields))
	copy(fs, fields)

	out := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(fs) {
			return nil, fmt.Errorf("New: row %d has %d values, want %d: %w", i, len(row), len(fs), ErrRaggedRow)
		}
		vals := make([]any, len(row))
		for j, v := range row {
			cv, err := coerce(v, fs[j].Kind)
			if err != nil {
				return nil, fmt.Errorf("New: row %d column %q: %w", i, fs[j].Name, err)
			}
			vals[j] = cv
		}
		out[i] = vals
	}
	return &Table{name: name, fields: fs, rows: out}, nil
}

// MustNew is like New but panics on error. It is meant for fixtures and tests.
func MustNew(name string, fields []Field, rows [][]any) *Table {
	t, err := New(name, fields, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a table with no columns and no rows.
func Empty(name string) *Table {
	return &Table{name: name}
}

// Name returns the table name, usually the source it was read from.
func (t *Table) Name() string { return t.name }

// WithName returns a copy of the table under a different name.
func (t *Table) WithName(name string) *Table {
	return &Table{name: name, fields: t.fields, rows: t.rows}
}

// Fields returns a copy of the column definitions.
func (t *Table) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.fields))
	for i, f := range t.fields {
		out[i] = f.Name
	}
	return out
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.fields) }

// Index returns the position of the first column called name, or -1.
func (t *Table) Index(name string) int {
	for i, f := range t.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether a column called name exists.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Field returns the first column definition called name.
func (t *Table) Field(name string) (Field, bool) {
	i := t.Index(name)
	if i < 0 {
		return Field{}, false
	}
	return t.fields[i], true
}

// Row returns a read-only view of row i.
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

// Column returns a copy of the values of the first column called name.
func (t *Table) Column(name string) ([]any, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("Column %q: %w", name, ErrColumnNotFound)
	}
	out := make([]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out, nil
}

// NullCount returns how many rows hold null in the named column.
func (t *Table) NullCount(name string) (int, error) {
	idx := t.Index(name)
	if idx < 0 {
		return 0, fmt.Errorf("NullCount %q: %w", name, ErrColumnNotFound)
	}
	n := 0
	for _, row := range t.rows {
		if row[idx] == nil {
			n++
		}
	}
	return n, nil
}

func (t *Table) indexesOf(name string) []int {
	var idx []int
	for i, f := range t.fields {
		if f.Name == name {
			idx = append(idx, i)
		}
	}
	return idx
}

// coerce converts v into the Go type stored for kind k.
func coerce(v any, k Kind) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case Text:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case Float:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	}
	return nil, fmt.Errorf("%w: %T for %s", ErrKindMismatch, v, k)
}

// kindOf infers the column kind for a single Go value.
func kindOf(v any) (Kind, error) {
	switch v.(type) {
	case string:
		return Text, nil
	case int, int32, int64:
		return Integer, nil
	case float32, float64:
		return Float, nil
	default:
		return Text, fmt.Errorf("%w: unsupported value type %T", ErrKindMismatch, v)
	}
}

// widen returns the kind that can hold values of both a and b.
func widen(a, b Kind) Kind {
	switch {
	case a == b:
		return a
	case a == Text || b == Text:
		return Text
	default:
		return Float
	}
}

// convert moves an already-typed value into a wider kind.
func convert(v any, k Kind) any {
	if v == nil {
		return nil
	}
	switch k {
	case Text:
		return FormatValue(v)
	case Float:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	}
	return v
}

// FormatValue renders a cell the way it is written to CSV. Null renders as "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
