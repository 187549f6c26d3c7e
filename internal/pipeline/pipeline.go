package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/menu-analytics/internal/config"
	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/source"
	"github.com/dvloznov/menu-analytics/internal/table"
)

// Run loads, cleans and merges the configured menus and persists the
// unified table. Any failure aborts the run without partial output.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p, err := NewMenuMergePipeline(cfg, deps)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx)

	state := &PipelineState{
		RunID:   runID,
		Sources: SourcesFromConfig(cfg),
	}

	log.Info().Int("sources", len(state.Sources)).Msg("Starting menu merge pipeline")
	start := time.Now()

	if err := p.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Menu merge pipeline failed")
		return nil, err
	}

	state.Stats.Rows = state.Unified.NumRows()
	state.Stats.Columns = state.Unified.NumColumns()
	state.Stats.Duration = time.Since(start)

	log.Info().
		Int("rows", state.Stats.Rows).
		Int("columns", state.Stats.Columns).
		Int("filled_nulls", state.Stats.FilledNulls).
		Int("unknown_brands", state.Stats.UnknownBrands).
		Bool("persisted", state.Stats.Persisted).
		Dur("duration", state.Stats.Duration).
		Msg("Menu merge pipeline completed")

	return &Result{RunID: runID, Unified: state.Unified, Stats: state.Stats}, nil
}

// NewMenuMergePipeline builds the standard pipeline from configuration.
func NewMenuMergePipeline(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Loader == nil {
		return nil, fmt.Errorf("NewMenuMergePipeline: no source loader")
	}
	policy, err := cfg.DuplicatePolicy()
	if err != nil {
		return nil, fmt.Errorf("NewMenuMergePipeline: %w", err)
	}
	classifier, err := cfg.BrandClassifier()
	if err != nil {
		return nil, fmt.Errorf("NewMenuMergePipeline: %w", err)
	}

	steps := []PipelineStep{
		&LoadSourcesStep{Loader: deps.Loader},
		&NormalizeColumnsStep{Options: table.NormalizeOptions{Strict: cfg.Normalize.Strict}},
		&RenameColumnsStep{},
		&ReconcileIdentifierStep{
			Positional: cfg.Identifier.Positional,
			Identifier: cfg.Identifier.Column,
			Policy:     policy,
		},
		&TagSourceBrandStep{Column: SourceBrandColumn},
		&EnsureUniqueColumnsStep{},
		&UnionStep{Table: cfg.Store.Table},
		&NormalizeColumnsStep{
			Options: table.NormalizeOptions{ReplaceDots: cfg.Normalize.ReplaceDots, Strict: cfg.Normalize.Strict},
			Unified: true,
		},
		&EnsureUniqueColumnsStep{Unified: true},
		&FillMissingStep{Columns: cfg.Fill.Columns, Numeric: cfg.Fill.Numeric},
		&DeriveBrandStep{
			Identifier: cfg.Identifier.Column,
			Column:     cfg.Brand.Column,
			Classifier: classifier,
			Fallback:   SourceBrandColumn,
		},
	}
	if cfg.ServingSize.Enabled {
		steps = append(steps, &ServingSizeProxyStep{
			Calories: cfg.Analysis.CaloriesColumn,
			Column:   cfg.ServingSize.Column,
			Divisor:  cfg.ServingSize.Divisor,
		})
	}
	steps = append(steps,
		&ValidateSchemaStep{Validator: NewSchemaValidator(
			[]string{cfg.Identifier.Column, cfg.Brand.Column},
			cfg.Analysis.Nutrients,
		)},
		&PersistStep{Store: deps.Store, Table: cfg.Store.Table},
	)
	return NewPipeline(steps...), nil
}

// SourcesFromConfig converts configured sources to loader sources.
func SourcesFromConfig(cfg *config.Config) []source.Source {
	out := make([]source.Source, len(cfg.Sources))
	for i, s := range cfg.Sources {
		out[i] = source.Source{Name: s.Name, Path: s.Path, Rename: s.Rename, Brand: s.Brand, NullValues: cfg.NullValues}
	}
	return out
}
