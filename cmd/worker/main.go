package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/menu-analytics/internal/config"
	"github.com/dvloznov/menu-analytics/internal/gcsuploader"
	"github.com/dvloznov/menu-analytics/internal/infra"
	"github.com/dvloznov/menu-analytics/internal/jobs"
	"github.com/dvloznov/menu-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/pipeline"
	"github.com/dvloznov/menu-analytics/internal/source"
)

// The worker reruns the merge on a fixed interval so the persisted table
// follows changes to the source files.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("MENU_CONFIG"), "Path to YAML config (or set MENU_CONFIG env)")
		interval   = flag.Duration("interval", time.Hour, "Time between scheduled runs")
		maxRetries = flag.Int("max-retries", 0, "Retries per failed run")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	log := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	if *interval <= 0 {
		log.Fatal().Dur("interval", *interval).Msg("Interval must be positive")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	tableStore, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	if tableStore != nil {
		defer tableStore.Close()
	}

	deps := pipeline.Deps{
		Loader: source.NewLoader(gcsuploader.NewGCSStorageService()),
		Store:  tableStore,
	}

	// Initialize job store and queue
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, inmemory.DefaultWorkers, jobStore)

	handler := pipeline.NewJobHandler(cfg, deps, func(res *pipeline.Result) {
		log.Info().
			Str("run_id", res.RunID).
			Int("rows", res.Stats.Rows).
			Int("columns", res.Stats.Columns).
			Bool("persisted", res.Stats.Persisted).
			Msg("Scheduled run completed")
	})

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	schedule := func() {
		job := &jobs.RunPipelineJob{MaxRetries: *maxRetries}
		if err := jobQueue.PublishRunPipeline(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to schedule run")
			return
		}
		log.Info().Str("job_id", job.JobID).Msg("Scheduled run")
	}

	log.Info().Dur("interval", *interval).Msg("Worker service started")
	schedule()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case <-ticker.C:
			schedule()
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")

	// Wait for the in-flight run
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancel()

	log.Info().Msg("Worker service stopped")
}
