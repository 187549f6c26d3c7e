package pipeline

import (
	"context"

	"github.com/dvloznov/menu-analytics/internal/source"
	"github.com/dvloznov/menu-analytics/internal/store"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// SourceLoader reads every configured source into a table, in order.
// This interface enables mocking and testing of source loading.
type SourceLoader interface {
	LoadAll(ctx context.Context, srcs []source.Source) ([]*table.Table, error)
}

// Deps holds the collaborators of a pipeline run.
type Deps struct {
	Loader SourceLoader
	// Store is optional; without it the unified table is not persisted.
	Store store.TableStore
}
