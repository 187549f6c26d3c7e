// Package sqlite persists unified tables in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/store"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// Store is the SQLite implementation of store.TableStore.
type Store struct {
	db *sql.DB
}

var _ store.TableStore = (*Store)(nil)

// Open opens (or creates) the database file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTable drops any table called name, recreates it with t's columns and
// inserts every row, all in one transaction. A failure leaves the previous
// table untouched.
func (s *Store) SaveTable(ctx context.Context, name string, t *table.Table) (err error) {
	if err := store.CheckSavable(name, t); err != nil {
		return fmt.Errorf("SaveTable: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SaveTable: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(name)); err != nil {
		return fmt.Errorf("SaveTable: drop %s: %w", name, err)
	}
	if _, err = tx.ExecContext(ctx, createStatement(name, t.Fields())); err != nil {
		return fmt.Errorf("SaveTable: create %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatement(name, t.Columns()))
	if err != nil {
		return fmt.Errorf("SaveTable: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < t.NumRows(); i++ {
		if _, err = stmt.ExecContext(ctx, t.Row(i).Values()...); err != nil {
			return fmt.Errorf("SaveTable: insert row %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("SaveTable: commit: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("table", name).
		Int("rows", t.NumRows()).
		Int("columns", t.NumColumns()).
		Msg("Saved table to SQLite")
	return nil
}

// LoadTable reads name back, taking column kinds from the declared types.
func (s *Store) LoadTable(ctx context.Context, name string) (*table.Table, error) {
	var found string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("LoadTable %q: %w", name, store.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("LoadTable %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quote(name)+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("LoadTable %q: query: %w", name, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("LoadTable %q: column types: %w", name, err)
	}
	fields := make([]table.Field, len(types))
	for i, ct := range types {
		fields[i] = table.Field{Name: ct.Name(), Kind: kindFor(ct.DatabaseTypeName())}
	}

	var data [][]any
	for rows.Next() {
		vals := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("LoadTable %q: scan: %w", name, err)
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v, fields[i].Kind)
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadTable %q: %w", name, err)
	}

	t, err := table.New(name, fields, data)
	if err != nil {
		return nil, fmt.Errorf("LoadTable %q: %w", name, err)
	}
	return t, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func createStatement(name string, fields []table.Field) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quote(f.Name) + " " + sqlType(f.Kind)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(cols, ", "))
}

func insertStatement(name string, cols []string) string {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(name), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func sqlType(k table.Kind) string {
	switch k {
	case table.Integer:
		return "INTEGER"
	case table.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}

func kindFor(declared string) table.Kind {
	switch strings.ToUpper(declared) {
	case "INTEGER", "INT", "BIGINT":
		return table.Integer
	case "REAL", "FLOAT", "DOUBLE":
		return table.Float
	default:
		return table.Text
	}
}

// normalizeValue maps driver values onto the Go types tables store.
func normalizeValue(v any, k table.Kind) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int64:
		if k == table.Float {
			return float64(x)
		}
		if k == table.Text {
			return table.FormatValue(x)
		}
	case float64:
		if k == table.Text {
			return table.FormatValue(x)
		}
	}
	return v
}
