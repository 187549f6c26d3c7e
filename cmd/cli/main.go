package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/menu-analytics/internal/analysis"
	"github.com/dvloznov/menu-analytics/internal/config"
	"github.com/dvloznov/menu-analytics/internal/gcs"
	"github.com/dvloznov/menu-analytics/internal/gcsuploader"
	"github.com/dvloznov/menu-analytics/internal/infra"
	"github.com/dvloznov/menu-analytics/internal/logger"
	"github.com/dvloznov/menu-analytics/internal/notionsync"
	"github.com/dvloznov/menu-analytics/internal/pipeline"
	"github.com/dvloznov/menu-analytics/internal/source"
	"github.com/dvloznov/menu-analytics/internal/store"
	"github.com/dvloznov/menu-analytics/internal/table"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runPipeline(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "upload":
		runUpload(os.Args[2:])
	case "publish-notion":
		runPublishNotion(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Menu Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run             Merge the configured menus and persist the unified table")
	fmt.Println("  report          Print brand comparisons from the persisted table")
	fmt.Println("  upload          Upload a local file to GCS")
	fmt.Println("  publish-notion  Publish per-brand summaries to a Notion database")
	fmt.Println("  help            Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// commonFlags are shared by every command that reads the configuration.
type commonFlags struct {
	configPath *string
	storeKind  *string
	tableName  *string
	sqlitePath *string
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", os.Getenv("MENU_CONFIG"), "Path to YAML config (or set MENU_CONFIG env)"),
		storeKind:  fs.String("store", "", "Override store kind: none, sqlite or bigquery"),
		tableName:  fs.String("table", "", "Override the unified table name"),
		sqlitePath: fs.String("sqlite-path", "", "Override the SQLite database path"),
		logLevel:   fs.String("log-level", "", "Override log level (debug, info, warn, error)"),
	}
}

// load reads the configuration, applies flag overrides and returns a logger
// at the configured level.
func (c *commonFlags) load() (*config.Config, zerolog.Logger) {
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	applyOverrides(cfg, *c.storeKind, *c.tableName, *c.sqlitePath, *c.logLevel)

	log := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	return cfg, log
}

// applyOverrides sets non-empty flag values over the loaded configuration.
func applyOverrides(cfg *config.Config, storeKind, tableName, sqlitePath, logLevel string) {
	if storeKind != "" {
		cfg.Store.Kind = storeKind
	}
	if tableName != "" {
		cfg.Store.Table = tableName
	}
	if sqlitePath != "" {
		cfg.Store.SQLitePath = sqlitePath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func runPipeline(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := addCommonFlags(fs)
	report := fs.Bool("report", false, "Print the analysis report after the run")
	format := fs.String("format", analysis.FormatText, "Report format: text, csv or json")
	fs.Parse(args)

	cfg, log := common.load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

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

	res, err := pipeline.Run(ctx, cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline failed")
	}

	fmt.Printf("Run %s completed: %d rows, %d columns, %d nulls filled, %d unknown brands\n",
		res.RunID, res.Stats.Rows, res.Stats.Columns, res.Stats.FilledNulls, res.Stats.UnknownBrands)
	if res.Stats.Persisted {
		fmt.Printf("Saved table %q to %s store\n", res.Stats.Table, cfg.Store.Kind)
	}

	if *report {
		r, err := analysis.New(analysis.OptionsFromConfig(cfg)).Build(res.Unified)
		if err != nil {
			log.Fatal().Err(err).Msg("Analysis failed")
		}
		fmt.Println()
		if err := r.Write(os.Stdout, *format); err != nil {
			log.Fatal().Err(err).Msg("Failed to write report")
		}
	}
}

// loadPersisted reads the unified table from the configured store.
func loadPersisted(ctx context.Context, cfg *config.Config, log zerolog.Logger) *table.Table {
	if cfg.Store.Kind == "" || cfg.Store.Kind == config.StoreNone {
		log.Fatal().Msg("Error: no store configured, use -store sqlite or -store bigquery")
	}
	tableStore, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer tableStore.Close()

	t, err := tableStore.LoadTable(ctx, cfg.Store.Table)
	if err != nil {
		if errors.Is(err, store.ErrTableNotFound) {
			log.Fatal().Str("table", cfg.Store.Table).Msg("Table not found, run the pipeline first")
		}
		log.Fatal().Err(err).Msg("Failed to load table")
	}
	return t
}

func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	common := addCommonFlags(fs)
	format := fs.String("format", analysis.FormatText, "Report format: text, csv or json")
	top := fs.Int("top", 0, "Number of top items (defaults to config top_n)")
	out := fs.String("out", "", "Write the report to this file instead of stdout")
	upload := fs.Bool("upload", false, "Upload the report to the configured GCS bucket")
	fs.Parse(args)

	cfg, log := common.load()
	if *top > 0 {
		cfg.Analysis.TopN = *top
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	t := loadPersisted(ctx, cfg, log)

	report, err := analysis.New(analysis.OptionsFromConfig(cfg)).Build(t)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, *format); err != nil {
		log.Fatal().Err(err).Msg("Failed to render report")
	}

	if *out != "" {
		if err := os.WriteFile(*out, buf.Bytes(), 0644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write report")
		}
		fmt.Printf("Wrote report to %s\n", *out)
	} else {
		os.Stdout.Write(buf.Bytes())
	}

	if *upload {
		if cfg.GCS.Bucket == "" {
			log.Fatal().Msg("Error: no GCS bucket configured (set gcs.bucket or GCS_BUCKET)")
		}
		object := reportObjectName(cfg.GCS.Prefix, cfg.Store.Table, *format, time.Now())
		svc := gcsuploader.NewGCSStorageService()
		if err := svc.UploadBytes(ctx, cfg.GCS.Bucket, object, contentType(*format), buf.Bytes()); err != nil {
			log.Fatal().Err(err).Msg("Report upload failed")
		}
		fmt.Printf("Uploaded report to %s\n", gcs.URI(cfg.GCS.Bucket, object))
	}
}

// reportObjectName builds "<prefix>/<table>-<timestamp>.<ext>".
func reportObjectName(prefix, tableName, format string, now time.Time) string {
	ext := strings.ToLower(format)
	if ext == "" || ext == analysis.FormatText {
		ext = "txt"
	}
	name := fmt.Sprintf("%s-%s.%s", tableName, now.UTC().Format("20060102T150405Z"), ext)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case analysis.FormatCSV:
		return "text/csv"
	case analysis.FormatJSON:
		return "application/json"
	default:
		return "text/plain"
	}
}

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name (or set GCS_BUCKET env)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local file, e.g. a menu CSV")
	fs.Parse(args)

	log := logger.FromEnv()

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, gcs.URI(*bucketName, *objectName))
}

func runPublishNotion(args []string) {
	fs := flag.NewFlagSet("publish-notion", flag.ExitOnError)
	common := addCommonFlags(fs)
	notionToken := fs.String("notion-token", "", "Notion API token (or set NOTION_TOKEN)")
	notionDBID := fs.String("notion-db-id", "", "Notion database ID (or set NOTION_DATABASE_ID)")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without publishing")
	fs.Parse(args)

	cfg, log := common.load()
	if *notionToken != "" {
		cfg.Notion.Token = *notionToken
	}
	if *notionDBID != "" {
		cfg.Notion.DatabaseID = *notionDBID
	}
	if cfg.Notion.Token == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if cfg.Notion.DatabaseID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	t := loadPersisted(ctx, cfg, log)

	a := analysis.New(analysis.OptionsFromConfig(cfg))
	nutrition, err := a.BrandNutrition(t)
	if err != nil {
		log.Fatal().Err(err).Msg("Brand nutrition failed")
	}
	health, err := a.HealthyStats(t)
	if err != nil {
		log.Fatal().Err(err).Msg("Healthy stats failed")
	}

	rows := notionsync.BrandSummariesFromTables(nutrition, health, "")
	client := notionsync.NewNotionClient(cfg.Notion.Token)

	stats, err := notionsync.PublishBrandSummary(ctx, client, cfg.Notion.DatabaseID, rows, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Publish failed")
	}

	fmt.Printf("Notion publish completed: %d created, %d updated, %d archived, %d failed\n",
		stats.Created, stats.Updated, stats.Archived, stats.Failed)
}
