package bigquery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/store"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// nullMarker marks null cells in the CSV handed to load jobs, so empty
// strings survive the round trip.
const nullMarker = `\N`

// Store is the BigQuery implementation of store.TableStore. It holds a
// shared BigQuery client to avoid creating a new connection for each operation.
type Store struct {
	client  *bigquery.Client
	dataset string
}

var _ store.TableStore = (*Store)(nil)

// NewStore creates a Store for the given project and dataset.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{client: client, dataset: datasetID}, nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *bigquery.Client, datasetID string) *Store {
	return &Store{client: client, dataset: datasetID}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// SaveTable delegates to SaveTableWithClient with the shared client.
func (s *Store) SaveTable(ctx context.Context, name string, t *table.Table) error {
	return SaveTableWithClient(ctx, s.client, s.dataset, name, t)
}

// LoadTable delegates to LoadTableWithClient with the shared client.
func (s *Store) LoadTable(ctx context.Context, name string) (*table.Table, error) {
	return LoadTableWithClient(ctx, s.client, s.dataset, name)
}

// SaveTableWithClient replaces dataset.name with t using a CSV load job.
// The job truncates the destination and creates it if needed, so a rerun
// never appends to an earlier run's rows. Column names are cleaned to the
// characters BigQuery accepts.
func SaveTableWithClient(ctx context.Context, client *bigquery.Client, datasetID, name string, t *table.Table) error {
	log := logger.FromContext(ctx)

	t = SanitizeColumns(t)
	if err := store.CheckSavable(name, t); err != nil {
		return fmt.Errorf("SaveTable: %w", err)
	}

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, t, table.CSVOptions{NullMarker: nullMarker}); err != nil {
		return fmt.Errorf("SaveTable: encoding rows: %w", err)
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.CSV
	src.SkipLeadingRows = 1
	src.AllowQuotedNewlines = true
	src.NullMarker = nullMarker
	src.Schema = SchemaFor(t)

	loader := client.Dataset(datasetID).Table(name).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("SaveTable: starting load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("SaveTable: waiting for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("SaveTable: load job error: %w", err)
	}

	log.Info().
		Str("dataset", datasetID).
		Str("table", name).
		Int("rows", t.NumRows()).
		Int("columns", t.NumColumns()).
		Msg("Saved table to BigQuery")
	return nil
}

// LoadTableWithClient reads dataset.name back into a table, using the
// stored schema for column kinds.
func LoadTableWithClient(ctx context.Context, client *bigquery.Client, datasetID, name string) (*table.Table, error) {
	ref := client.Dataset(datasetID).Table(name)

	md, err := ref.Metadata(ctx)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("LoadTable %q: %w", name, store.ErrTableNotFound)
		}
		return nil, fmt.Errorf("LoadTable %q: reading metadata: %w", name, err)
	}
	fields := FieldsFor(md.Schema)

	var rows [][]any
	it := ref.Read(ctx)
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LoadTable %q: iterating rows: %w", name, err)
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		rows = append(rows, row)
	}

	t, err := table.New(name, fields, rows)
	if err != nil {
		return nil, fmt.Errorf("LoadTable %q: %w", name, err)
	}
	return t, nil
}
