// Package source reads the configured menu CSV files into tables.
package source

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/menu-analytics/internal/gcs"
	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// Source is one input CSV.
type Source struct {
	Name string
	// Path is a local file path or a gs:// URI.
	Path string
	// Rename maps normalized column names to canonical ones.
	Rename map[string]string
	// Brand tags every row of this source when set.
	Brand string
	// NullValues lists cell texts read as null besides the empty cell.
	NullValues []string
}

// Fetcher downloads objects from cloud storage.
type Fetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Loader reads sources from local disk or cloud storage.
type Loader struct {
	storage  Fetcher
	readFile func(string) ([]byte, error)
	// Concurrency bounds parallel loads; zero or less means one per source.
	Concurrency int
}

// NewLoader creates a Loader. storage may be nil when no source lives in GCS.
func NewLoader(storage Fetcher) *Loader {
	return &Loader{storage: storage, readFile: os.ReadFile}
}

// Load reads and parses one source. The table is named after the source.
func (l *Loader) Load(ctx context.Context, src Source) (*table.Table, error) {
	log := logger.FromContext(ctx)

	data, err := l.fetch(ctx, src.Path)
	if err != nil {
		return nil, fmt.Errorf("load source %q: %w", src.Name, err)
	}

	t, err := table.ReadCSVWithOptions(bytes.NewReader(data), src.Name, table.ReadOptions{NullValues: src.NullValues})
	if err != nil {
		return nil, fmt.Errorf("load source %q: %w", src.Name, err)
	}

	log.Debug().
		Str("source", src.Name).
		Str("path", src.Path).
		Int("rows", t.NumRows()).
		Int("columns", t.NumColumns()).
		Msg("Loaded source")
	return t, nil
}

// LoadAll loads every source concurrently. The result keeps the order of
// srcs. The first failure cancels the remaining loads and is returned.
func (l *Loader) LoadAll(ctx context.Context, srcs []Source) ([]*table.Table, error) {
	out := make([]*table.Table, len(srcs))

	eg, egCtx := errgroup.WithContext(ctx)
	if l.Concurrency > 0 {
		eg.SetLimit(l.Concurrency)
	}
	for i, src := range srcs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			t, err := l.Load(egCtx, src)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) fetch(ctx context.Context, path string) ([]byte, error) {
	if gcs.IsURI(path) {
		if l.storage == nil {
			return nil, fmt.Errorf("no storage client configured for %s", path)
		}
		return l.storage.FetchFromGCS(ctx, path)
	}
	return l.readFile(path)
}
