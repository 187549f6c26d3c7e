package table

import (
	"fmt"
	"strings"
)

// NormalizeOptions selects the column-name cleaning variant.
type NormalizeOptions struct {
	// ReplaceDots also turns "." into "_" (second cleaning pass).
	ReplaceDots bool
	// Strict maps every rune outside [A-Za-z0-9_] to "_", for stores with
	// restrictive identifier rules.
	Strict bool
}

var parenRemover = strings.NewReplacer("(", "", ")", "")

// NormalizeColumnName cleans a single column name: trim, spaces to
// underscores, drop parentheses, then the optional dot and strict passes.
// The result is stable under repeated application.
func NormalizeColumnName(name string, opts NormalizeOptions) string {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, " ", "_")
	s = parenRemover.Replace(s)
	if opts.ReplaceDots {
		s = strings.ReplaceAll(s, ".", "_")
	}
	if opts.Strict {
		s = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
				return r
			}
			return '_'
		}, s)
	}
	// Dropping parentheses can expose whitespace at either end.
	return strings.TrimSpace(s)
}

// NormalizeColumns returns the table with every column name cleaned.
// Name collisions are not detected here; see EnsureUniqueColumns.
func (t *Table) NormalizeColumns(opts NormalizeOptions) *Table {
	fields := make([]Field, len(t.fields))
	for i, f := range t.fields {
		fields[i] = Field{Name: NormalizeColumnName(f.Name, opts), Kind: f.Kind}
	}
	return &Table{name: t.name, fields: fields, rows: t.rows}
}

// Rename returns the table with columns renamed per mapping (old -> new).
// All renames apply at once, so swapping two names works. Unknown keys are ignored.
func (t *Table) Rename(mapping map[string]string) *Table {
	if len(mapping) == 0 {
		return t
	}
	fields := make([]Field, len(t.fields))
	for i, f := range t.fields {
		if to, ok := mapping[f.Name]; ok {
			f.Name = to
		}
		fields[i] = f
	}
	return &Table{name: t.name, fields: fields, rows: t.rows}
}

// EnsureUniqueColumns returns ErrDuplicateColumn naming the first collision.
func (t *Table) EnsureUniqueColumns() error {
	seen := make(map[string]int, len(t.fields))
	for i, f := range t.fields {
		if j, ok := seen[f.Name]; ok {
			return fmt.Errorf("table %q: %w %q at positions %d and %d", t.name, ErrDuplicateColumn, f.Name, j, i)
		}
		seen[f.Name] = i
	}
	return nil
}
