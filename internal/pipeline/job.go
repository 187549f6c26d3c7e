package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/menu-analytics/internal/config"
	"github.com/dvloznov/menu-analytics/internal/jobs"
	"github.com/dvloznov/menu-analytics/internal/logger"
)

// NewJobHandler returns a queue handler that runs the pipeline for
// run_pipeline jobs. onComplete, when set, receives every successful result.
func NewJobHandler(cfg *config.Config, deps Deps, onComplete func(*Result)) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		runJob, ok := job.(*jobs.RunPipelineJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"job_id": runJob.JobID})
		ctx = logger.WithContext(ctx, log)
		log.Info().Strs("sources", runJob.Sources).Msg("Processing pipeline job")

		runCfg, err := selectSources(cfg, runJob.Sources)
		if err != nil {
			return err
		}

		res, err := Run(ctx, runCfg, deps)
		if err != nil {
			return err
		}

		runJob.Summary = &jobs.RunSummary{
			RunID:         res.RunID,
			Rows:          res.Stats.Rows,
			Columns:       res.Stats.Columns,
			FilledNulls:   res.Stats.FilledNulls,
			UnknownBrands: res.Stats.UnknownBrands,
			Persisted:     res.Stats.Persisted,
			Table:         res.Stats.Table,
			DurationMs:    res.Stats.Duration.Milliseconds(),
		}
		if onComplete != nil {
			onComplete(res)
		}
		return nil
	}
}

// selectSources returns a copy of cfg restricted to the named sources.
// No names keeps every source.
func selectSources(cfg *config.Config, names []string) (*config.Config, error) {
	if len(names) == 0 {
		return cfg, nil
	}
	byName := make(map[string]config.SourceConfig, len(cfg.Sources))
	for _, s := range cfg.Sources {
		byName[s.Name] = s
	}

	out := *cfg
	out.Sources = make([]config.SourceConfig, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		out.Sources = append(out.Sources, s)
	}
	return &out, nil
}
