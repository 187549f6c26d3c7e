package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/menu-analytics/internal/store"
	"github.com/dvloznov/menu-analytics/internal/table"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "menu.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	in := table.MustNew("menu", []table.Field{
		{Name: "Beverage", Kind: table.Text},
		{Name: "Calories", Kind: table.Integer},
		{Name: "Total_Fat_g", Kind: table.Float},
		{Name: `Vitamin_A_%_DV`, Kind: table.Text},
	}, [][]any{
		{"Caffè Latte", 190, 7.0, "10%"},
		{"Big Mac", nil, 28.5, nil},
		{"", 0, nil, "0%"},
	})

	if err := s.SaveTable(ctx, "menu_merged_table", in); err != nil {
		t.Fatalf("SaveTable failed: %v", err)
	}

	got, err := s.LoadTable(ctx, "menu_merged_table")
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if diff := cmp.Diff(in.Fields(), got.Fields()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in.Records(), got.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := table.MustNew("menu", []table.Field{{Name: "Item"}}, [][]any{{"a"}, {"b"}, {"c"}})
	second := table.MustNew("menu", []table.Field{{Name: "Item"}, {Name: "Calories", Kind: table.Integer}}, [][]any{{"z", 1}})

	for _, tbl := range []*table.Table{first, second} {
		if err := s.SaveTable(ctx, "menu", tbl); err != nil {
			t.Fatalf("SaveTable failed: %v", err)
		}
	}

	got, err := s.LoadTable(ctx, "menu")
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if diff := cmp.Diff(second.Records(), got.Records()); diff != "" {
		t.Errorf("expected only the second table (-want +got):\n%s", diff)
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.LoadTable(ctx, "missing"); !errors.Is(err, store.ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}

	dup := table.MustNew("menu", []table.Field{{Name: "A"}, {Name: "A"}}, nil)
	if err := s.SaveTable(ctx, "menu", dup); !errors.Is(err, table.ErrDuplicateColumn) {
		t.Errorf("expected ErrDuplicateColumn, got %v", err)
	}
}
