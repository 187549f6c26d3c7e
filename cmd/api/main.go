package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/menu-analytics/internal/analysis"
	"github.com/dvloznov/menu-analytics/internal/api"
	"github.com/dvloznov/menu-analytics/internal/api/handlers"
	"github.com/dvloznov/menu-analytics/internal/config"
	"github.com/dvloznov/menu-analytics/internal/gcsuploader"
	"github.com/dvloznov/menu-analytics/internal/infra"
	"github.com/dvloznov/menu-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/pipeline"
	"github.com/dvloznov/menu-analytics/internal/source"
	"github.com/dvloznov/menu-analytics/internal/store"
)

func main() {
	// Parse command-line flags
	var (
		port       = flag.String("port", "8080", "HTTP server port")
		configPath = flag.String("config", os.Getenv("MENU_CONFIG"), "Path to YAML config (or set MENU_CONFIG env)")
		workers    = flag.Int("workers", inmemory.DefaultWorkers, "Number of pipeline workers")
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

	ctx := logger.WithContext(context.Background(), log)

	tableStore, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	if tableStore != nil {
		defer tableStore.Close()
	}

	snapshot := handlers.NewSnapshot()
	seedSnapshot(ctx, snapshot, tableStore, cfg.Store.Table, log)

	deps := pipeline.Deps{
		Loader: source.NewLoader(gcsuploader.NewGCSStorageService()),
		Store:  tableStore,
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := pipeline.NewJobHandler(cfg, deps, func(res *pipeline.Result) {
		snapshot.Set(res.RunID, res.Unified)
	})

	log.Info().Int("workers", *workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	router := api.NewRouter(
		handlers.NewRunsHandler(jobQueue, jobStore, log),
		handlers.NewAnalysisHandler(snapshot, analysis.New(analysis.OptionsFromConfig(cfg)), log),
		log,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight runs finish before cancelling the workers
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

// seedSnapshot serves the last persisted table until the first run of this
// process completes.
func seedSnapshot(ctx context.Context, snapshot *handlers.Snapshot, tableStore store.TableStore, name string, log zerolog.Logger) {
	if tableStore == nil {
		return
	}
	t, err := tableStore.LoadTable(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrTableNotFound) {
			log.Warn().Err(err).Str("table", name).Msg("Failed to load persisted table")
		}
		return
	}
	snapshot.Set("persisted", t)
	log.Info().
		Str("table", name).
		Int("rows", t.NumRows()).
		Msg("Serving persisted table until the first run completes")
}
