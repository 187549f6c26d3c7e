package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/menu-analytics/internal/table"
)

func TestMemory_Overwrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := table.MustNew("x", []table.Field{{Name: "A"}}, [][]any{{"a"}, {"b"}})
	second := table.MustNew("x", []table.Field{{Name: "B", Kind: table.Integer}}, [][]any{{1}})

	if err := m.SaveTable(ctx, "menu", first); err != nil {
		t.Fatalf("SaveTable failed: %v", err)
	}
	if err := m.SaveTable(ctx, "menu", second); err != nil {
		t.Fatalf("SaveTable failed: %v", err)
	}

	got, err := m.LoadTable(ctx, "menu")
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if got.NumRows() != 1 || !got.Has("B") || got.Has("A") {
		t.Errorf("expected second table only, got columns %v with %d rows", got.Columns(), got.NumRows())
	}
	if got.Name() != "menu" {
		t.Errorf("Name() = %q, want menu", got.Name())
	}
}

func TestMemory_Errors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.LoadTable(ctx, "missing"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}

	dup := table.MustNew("x", []table.Field{{Name: "A"}, {Name: "A"}}, nil)
	if err := m.SaveTable(ctx, "menu", dup); !errors.Is(err, table.ErrDuplicateColumn) {
		t.Errorf("expected ErrDuplicateColumn, got %v", err)
	}
	if err := m.SaveTable(ctx, "", table.MustNew("x", []table.Field{{Name: "A"}}, nil)); err == nil {
		t.Error("expected error for empty name")
	}
	if err := m.SaveTable(ctx, "menu", table.Empty("x")); err == nil {
		t.Error("expected error for table without columns")
	}
}
