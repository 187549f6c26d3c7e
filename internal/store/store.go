// Package store defines where unified menu tables are persisted.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/menu-analytics/internal/table"
)

// ErrTableNotFound is returned by LoadTable when nothing was saved under the name.
var ErrTableNotFound = errors.New("table not found")

// TableStore persists whole tables with overwrite semantics: saving under an
// existing name replaces its schema and rows, so reruns never append.
// This interface enables mocking and testing of persistence.
type TableStore interface {
	// SaveTable replaces the table stored under name.
	SaveTable(ctx context.Context, name string, t *table.Table) error

	// LoadTable reads back the table stored under name.
	LoadTable(ctx context.Context, name string) (*table.Table, error)

	// Close releases the underlying connection.
	Close() error
}

// CheckSavable rejects tables a store cannot represent.
func CheckSavable(name string, t *table.Table) error {
	if name == "" {
		return fmt.Errorf("table name is required")
	}
	if t == nil {
		return fmt.Errorf("table %q is nil", name)
	}
	if t.NumColumns() == 0 {
		return fmt.Errorf("table %q has no columns", name)
	}
	return t.EnsureUniqueColumns()
}

// Memory is a TableStore kept in process memory.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*table.Table)}
}

// SaveTable implements TableStore.
func (m *Memory) SaveTable(ctx context.Context, name string, t *table.Table) error {
	if err := CheckSavable(name, t); err != nil {
		return fmt.Errorf("SaveTable: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = t.WithName(name)
	return nil
}

// LoadTable implements TableStore.
func (m *Memory) LoadTable(ctx context.Context, name string) (*table.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("LoadTable %q: %w", name, ErrTableNotFound)
	}
	return t, nil
}

// Close implements TableStore.
func (m *Memory) Close() error { return nil }
