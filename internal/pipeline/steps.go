package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/source"
	"github.com/dvloznov/menu-analytics/internal/store"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// PipelineStep represents a single step in the menu merge pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the values passed between steps. Tables are
// immutable; a step replaces a table with the new one it derives.
type PipelineState struct {
	RunID   string
	Sources []source.Source
	// Tables holds one table per source until UnionStep merges them.
	Tables  []*table.Table
	Unified *table.Table
	Stats   Stats
}

// forEachTable replaces every per-source table with fn's result.
func (s *PipelineState) forEachTable(fn func(i int, t *table.Table) (*table.Table, error)) error {
	for i, t := range s.Tables {
		out, err := fn(i, t)
		if err != nil {
			return err
		}
		s.Tables[i] = out
	}
	return nil
}

// Step 1: LoadSourcesStep reads every source.
type LoadSourcesStep struct {
	Loader SourceLoader
}

func (s *LoadSourcesStep) Name() string { return "load_sources" }

func (s *LoadSourcesStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Sources) == 0 {
		return fmt.Errorf("no sources to load")
	}
	tables, err := s.Loader.LoadAll(ctx, state.Sources)
	if err != nil {
		return err
	}
	state.Tables = tables
	state.Stats.Sources = make([]SourceStats, len(tables))
	for i, t := range tables {
		state.Stats.Sources[i] = SourceStats{Name: state.Sources[i].Name, Rows: t.NumRows(), Columns: t.NumColumns()}
	}
	return nil
}

// Step 2 and 8: NormalizeColumnsStep cleans column names, per source or on
// the unified table.
type NormalizeColumnsStep struct {
	Options table.NormalizeOptions
	Unified bool
}

func (s *NormalizeColumnsStep) Name() string {
	if s.Unified {
		return "normalize_unified_columns"
	}
	return "normalize_columns"
}

func (s *NormalizeColumnsStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Unified {
		if state.Unified == nil {
			return fmt.Errorf("no unified table")
		}
		state.Unified = state.Unified.NormalizeColumns(s.Options)
		return nil
	}
	return state.forEachTable(func(_ int, t *table.Table) (*table.Table, error) {
		return t.NormalizeColumns(s.Options), nil
	})
}

// Step 3: RenameColumnsStep applies each source's rename map.
type RenameColumnsStep struct{}

func (s *RenameColumnsStep) Name() string { return "rename_columns" }

func (s *RenameColumnsStep) Execute(ctx context.Context, state *PipelineState) error {
	return state.forEachTable(func(i int, t *table.Table) (*table.Table, error) {
		return t.Rename(state.Sources[i].Rename), nil
	})
}

// Step 4: ReconcileIdentifierStep renames the positional column to the
// identifier and resolves duplicates per policy.
type ReconcileIdentifierStep struct {
	Positional string
	Identifier string
	Policy     table.DuplicatePolicy
}

func (s *ReconcileIdentifierStep) Name() string { return "reconcile_identifier" }

func (s *ReconcileIdentifierStep) Execute(ctx context.Context, state *PipelineState) error {
	return state.forEachTable(func(_ int, t *table.Table) (*table.Table, error) {
		return t.ReconcileIdentifier(s.Positional, s.Identifier, s.Policy)
	})
}

// Step 5: TagSourceBrandStep adds the source's literal brand to its rows.
type TagSourceBrandStep struct {
	Column string
}

func (s *TagSourceBrandStep) Name() string { return "tag_source_brand" }

func (s *TagSourceBrandStep) Execute(ctx context.Context, state *PipelineState) error {
	return state.forEachTable(func(i int, t *table.Table) (*table.Table, error) {
		brand := state.Sources[i].Brand
		if brand == "" {
			return t, nil
		}
		return t.WithConstant(s.Column, brand)
	})
}

// Step 6 and 9: EnsureUniqueColumnsStep fails the run when cleaning made two
// columns collide, per source or on the unified table.
type EnsureUniqueColumnsStep struct {
	Unified bool
}

func (s *EnsureUniqueColumnsStep) Name() string {
	if s.Unified {
		return "ensure_unique_unified_columns"
	}
	return "ensure_unique_columns"
}

func (s *EnsureUniqueColumnsStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Unified {
		if state.Unified == nil {
			return fmt.Errorf("no unified table")
		}
		return state.Unified.EnsureUniqueColumns()
	}
	for _, t := range state.Tables {
		if err := t.EnsureUniqueColumns(); err != nil {
			return err
		}
	}
	return nil
}

// Step 7: UnionStep merges the per-source tables by column name.
type UnionStep struct {
	Table string
}

func (s *UnionStep) Name() string { return "union_tables" }

func (s *UnionStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Unified = table.UnionByName(state.Tables...).WithName(s.Table)
	state.Tables = nil
	return nil
}

// Step 10: FillMissingStep replaces nulls with configured defaults.
type FillMissingStep struct {
	Columns map[string]any
	// Numeric, when set, fills every remaining numeric null.
	Numeric *float64
}

func (s *FillMissingStep) Name() string { return "fill_missing" }

func (s *FillMissingStep) Execute(ctx context.Context, state *PipelineState) error {
	before := totalNulls(state.Unified)

	out, err := state.Unified.FillMissing(s.Columns)
	if err != nil {
		return err
	}
	if s.Numeric != nil {
		out = out.FillNumeric(*s.Numeric)
	}

	state.Unified = out
	state.Stats.FilledNulls = before - totalNulls(out)
	return nil
}

// Step 11: DeriveBrandStep classifies each row by its identifier. Rows left
// unknown take the source brand when one was tagged.
type DeriveBrandStep struct {
	Identifier string
	Column     string
	Classifier *table.BrandClassifier
	Fallback   string
}

func (s *DeriveBrandStep) Name() string { return "derive_brand" }

func (s *DeriveBrandStep) Execute(ctx context.Context, state *PipelineState) error {
	out, err := state.Unified.DeriveBrand(s.Identifier, s.Classifier, s.Column)
	if err != nil {
		return err
	}

	if s.Fallback != "" && out.Has(s.Fallback) {
		unknown := s.Classifier.Unknown()
		out, err = out.WithColumn(s.Column, table.Text, func(r table.Row) any {
			brand := r.Get(s.Column)
			if brand == unknown && !r.IsNull(s.Fallback) {
				return r.Get(s.Fallback)
			}
			return brand
		})
		if err != nil {
			return err
		}
		out = out.Drop(s.Fallback)
	}

	unknown := 0
	for i := 0; i < out.NumRows(); i++ {
		if out.Row(i).Get(s.Column) == s.Classifier.Unknown() {
			unknown++
		}
	}
	if unknown > 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Int("rows", unknown).
			Str("label", s.Classifier.Unknown()).
			Msg("Rows without a recognised brand")
	}

	state.Unified = out
	state.Stats.UnknownBrands = unknown
	return nil
}

// Step 12: ServingSizeProxyStep adds Column = Calories / Divisor, a rough
// approximation only. It never replaces an existing column, such as a
// measured serving size read from a source.
type ServingSizeProxyStep struct {
	Calories string
	Column   string
	Divisor  float64
}

func (s *ServingSizeProxyStep) Name() string { return "serving_size_proxy" }

func (s *ServingSizeProxyStep) Execute(ctx context.Context, state *PipelineState) error {
	if !state.Unified.Has(s.Calories) {
		return fmt.Errorf("serving size proxy %q: %w", s.Calories, table.ErrColumnNotFound)
	}
	if state.Unified.Has(s.Column) {
		return fmt.Errorf("serving size proxy %q already exists: %w", s.Column, table.ErrDuplicateColumn)
	}
	divisor := s.Divisor
	if divisor == 0 {
		divisor = DefaultServingDivisor
	}
	out, err := state.Unified.WithColumn(s.Column, table.Float, func(r table.Row) any {
		v, ok := r.Float(s.Calories)
		if !ok {
			return nil
		}
		return v / divisor
	})
	if err != nil {
		return err
	}
	state.Unified = out
	return nil
}

// Step 13: ValidateSchemaStep checks the unified table before it is persisted.
type ValidateSchemaStep struct {
	Validator *SchemaValidator
}

func (s *ValidateSchemaStep) Name() string { return "validate_schema" }

func (s *ValidateSchemaStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Validator.Validate(ctx, state.Unified)
}

// Step 14: PersistStep saves the unified table, replacing any earlier run.
type PersistStep struct {
	Store store.TableStore
	Table string
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Stats.Table = s.Table
	if s.Store == nil {
		log := logger.FromContext(ctx)
		log.Debug().Msg("No store configured, skipping persist")
		return nil
	}
	if err := s.Store.SaveTable(ctx, s.Table, state.Unified); err != nil {
		return err
	}
	state.Stats.Persisted = true
	return nil
}

func totalNulls(t *table.Table) int {
	n := 0
	for _, c := range t.NullCounts() {
		n += c.Nulls
	}
	return n
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}

		ev := log.Debug().Int("step", i+1).Str("name", step.Name())
		if state.Unified != nil {
			ev = ev.Int("rows", state.Unified.NumRows()).Int("columns", state.Unified.NumColumns())
		} else {
			ev = ev.Int("tables", len(state.Tables))
		}
		ev.Msg("Pipeline step completed")
	}
	return nil
}
