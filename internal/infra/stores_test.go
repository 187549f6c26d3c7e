package infra

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dvloznov/menu-analytics/internal/config"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, config.StoreConfig{Kind: config.StoreNone})
	if err != nil || s != nil {
		t.Errorf("none: got (%v, %v), want (nil, nil)", s, err)
	}

	s, err = OpenStore(ctx, config.StoreConfig{Kind: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "m.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if s == nil {
		t.Fatal("sqlite: expected store")
	}
	_ = s.Close()

	if _, err := OpenStore(ctx, config.StoreConfig{Kind: "postgres"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}
