// Package infra opens the configured persistence backend.
package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/menu-analytics/internal/config"
	"github.com/dvloznov/menu-analytics/internal/infra/bigquery"
	"github.com/dvloznov/menu-analytics/internal/infra/sqlite"
	"github.com/dvloznov/menu-analytics/internal/store"
)

// OpenStore returns the TableStore selected by cfg.Kind, or nil for "none".
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.TableStore, error) {
	switch cfg.Kind {
	case "", config.StoreNone:
		return nil, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreBigQuery:
		s, err := bigquery.NewStore(ctx, cfg.Project, cfg.Dataset)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown store kind %q", cfg.Kind)
	}
}
