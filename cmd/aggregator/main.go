package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"layofflens/aggregator/internal/config"
	"layofflens/aggregator/internal/database"
	"layofflens/aggregator/internal/extract"
	"layofflens/aggregator/internal/images"
	"layofflens/aggregator/internal/metrics"
	"layofflens/aggregator/internal/process"
	"layofflens/aggregator/internal/queries"
	"layofflens/aggregator/internal/serper"
	"layofflens/aggregator/internal/server"
	"layofflens/aggregator/internal/server/api"
	"layofflens/aggregator/internal/storage"
)

const usage = `Usage: aggregator [command] [options]
Commands: start, server, sweep

For command-specific options, use: aggregator [command] -h`

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// loadEnvFiles reads .env, .env.local and $ENV_FILE. Files that do not exist
// are skipped; variables already set in the environment win.
func loadEnvFiles() {
	files := []string{".env.local", ".env"}
	if extra := os.Getenv("ENV_FILE"); extra != "" {
		files = append([]string{extra}, files...)
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", f).Msg("Failed to load env file")
		}
	}
}

// storageFlags registers the flags every command shares.
func storageFlags(set *flag.FlagSet, cfg *config.Config, logLevel *string) {
	set.StringVar(&cfg.Storage, "storage", cfg.Storage,
		"Storage backend: sqlite or azure (env: AGGREGATOR_STORAGE)")
	set.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: AGGREGATOR_DB_PATH)")
	set.StringVar(&cfg.TableName, "table", cfg.TableName,
		"Azure table name (env: AGGREGATOR_TABLE_NAME)")
	set.IntVar(&cfg.RetentionDays, "retention", cfg.RetentionDays,
		"Number of days to retain items (env: AGGREGATOR_RETENTION_DAYS)")
	set.StringVar(logLevel, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: AGGREGATOR_LOG_LEVEL)")
}

// ingestionFlags registers the flags of commands that run ingestion.
func ingestionFlags(set *flag.FlagSet, cfg *config.Config) {
	set.IntVar(&cfg.ImageLookupCap, "image-cap", cfg.ImageLookupCap,
		"Maximum image searches per run (env: AGGREGATOR_IMAGE_LOOKUP_CAP)")
	set.IntVar(&cfg.ResultsPerQuery, "results", cfg.ResultsPerQuery,
		"Results requested per search query (env: AGGREGATOR_RESULTS_PER_QUERY)")
	set.StringVar(&cfg.QueriesCSVPath, "queries", cfg.QueriesCSVPath,
		"Optional CSV of kind,query overriding the built-in queries (env: AGGREGATOR_QUERIES_CSV)")
}

func main() {
	loadEnvFiles()
	cfg := config.FromEnv()

	var logLevelStr string

	startCmd := flag.NewFlagSet("start", flag.ExitOnError)
	storageFlags(startCmd, cfg, &logLevelStr)
	ingestionFlags(startCmd, cfg)
	startCmd.StringVar(&cfg.Schedule, "schedule", cfg.Schedule,
		"Cron schedule for ingestion runs, empty for one-shot mode (env: AGGREGATOR_SCHEDULE)")
	startCmd.BoolVar(&cfg.Reset, "reset", cfg.Reset,
		"Delete the SQLite database before the first run (env: AGGREGATOR_RESET)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	storageFlags(serverCmd, cfg, &logLevelStr)
	ingestionFlags(serverCmd, cfg)
	serverCmd.StringVar(&cfg.ServerHost, "host", cfg.ServerHost,
		"Host to bind the server to (env: AGGREGATOR_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", cfg.ServerPort,
		"Port to listen on (env: AGGREGATOR_PORT)")

	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	storageFlags(sweepCmd, cfg, &logLevelStr)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var run func(*config.Config) error
	switch os.Args[1] {
	case "start":
		startCmd.Parse(os.Args[2:])
		run = runStart
	case "server":
		serverCmd.Parse(os.Args[2:])
		run = runServer
	case "sweep":
		sweepCmd.Parse(os.Args[2:])
		run = runSweep
	case "-h", "--help", "help":
		fmt.Println(usage)
		os.Exit(0)
	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}

	if level, err := zerolog.ParseLevel(logLevelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	cfg.Storage = strings.ToLower(cfg.Storage)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

// openStore connects the configured storage backend. readOnly opens SQLite
// read-only when the database already exists.
func openStore(cfg *config.Config, readOnly bool) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageAzure:
		cred, err := storage.SelectCredential(cfg.ConnectionString, cfg.AccountName)
		if err != nil {
			return nil, fmt.Errorf("failed to select storage credential: %w", err)
		}
		svc, err := cred.ServiceClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create table service client: %w", err)
		}
		log.Info().Str("credential", cred.Kind()).Str("table", cfg.TableName).Msg("Using Azure table storage")
		return storage.NewTableStore(svc, cfg.TableName), nil

	default:
		dbCfg := database.NewConfig(cfg.DBPath)
		if readOnly {
			if database.Exists(cfg.DBPath) {
				dbCfg = database.NewReadOnlyConfig(cfg.DBPath)
			} else {
				log.Warn().Str("path", cfg.DBPath).Msg("Database does not exist yet, opening read-write to create it")
			}
		}
		db, err := database.NewDB(dbCfg)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Info().Str("path", cfg.DBPath).Msg("Using SQLite storage")
		return storage.NewSQLiteStore(db), nil
	}
}

// newPipeline wires the vendor clients around store.
func newPipeline(cfg *config.Config, store storage.Store, m *metrics.Metrics) (*process.Pipeline, error) {
	qs, err := queries.Load(cfg.QueriesCSVPath)
	if err != nil {
		return nil, err
	}

	if cfg.SerperAPIKey == "" {
		log.Warn().Msg("SERPER_API_KEY is not set, search requests will be rejected")
	}
	search := serper.NewClient(serper.Config{
		APIKey:          cfg.SerperAPIKey,
		BaseURL:         cfg.SerperBaseURL,
		ResultsPerQuery: cfg.ResultsPerQuery,
		RequestsPerSec:  cfg.SerperRPS,
		Queries:         qs,
	})

	var completer extract.Completer
	if cfg.AnthropicAPIKey != "" {
		completer = extract.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.LLMModel)
	} else {
		log.Info().Msg("ANTHROPIC_API_KEY is not set, layoff extraction disabled")
	}

	return process.NewPipeline(process.Config{
		Searcher:       search,
		Images:         images.NewResolver(search),
		Extractor:      extract.NewExtractor(completer),
		Store:          store,
		Metrics:        m,
		ImageLookupCap: cfg.ImageLookupCap,
	})
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(shutdown)
	}()
	return ctx, cancel
}

// runStart runs one ingestion cycle right away and then, unless the schedule
// is empty, keeps running cycles on the schedule until interrupted.
func runStart(cfg *config.Config) error {
	if cfg.Reset {
		if err := database.DeleteDB(cfg.DBPath); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
	}

	store, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := newPipeline(cfg, store, metrics.New())
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	var scheduler *process.Scheduler
	if cfg.Schedule != "" {
		// Parse the schedule before the first run so a typo fails fast.
		scheduler, err = process.NewScheduler(pipeline, cfg.Schedule, cfg.RetentionDays)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := process.RunCycle(ctx, pipeline, process.TriggerSchedule, cfg.RetentionDays); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Ingestion cycle canceled by shutdown signal")
			return nil
		}
		if scheduler == nil {
			return err
		}
		// Later cycles may succeed; keep the schedule.
	}

	if scheduler == nil {
		log.Info().Msg("One-shot ingestion completed, exiting")
		return nil
	}

	scheduler.Start()
	<-ctx.Done()
	scheduler.Stop()
	return nil
}

// runServer serves the HTTP API. FetchNow runs ingestion in-process against
// the same store.
func runServer(cfg *config.Config) error {
	log.Debug().Msg("Starting server with debug logging enabled")

	store, err := openStore(cfg, cfg.ReadOnlyServer())
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	pipeline, err := newPipeline(cfg, store, m)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureTable(ctx); err != nil {
		return fmt.Errorf("failed to prepare storage: %w", err)
	}

	handler := api.NewHandler(api.Config{
		Store:         store,
		Pipeline:      pipeline,
		Metrics:       m,
		RetentionDays: cfg.RetentionDays,
		Production:    cfg.IsProduction(),
	})

	return server.RunServer(handler, server.Options{
		ListenAddr: cfg.ListenAddr(),
		AdminToken: cfg.AdminToken,
		Logger:     log.Logger,
		Metrics:    m,
	})
}

// runSweep deletes items past the retention horizon once.
func runSweep(cfg *config.Config) error {
	store, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	pipeline, err := newPipeline(cfg, store, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if err := store.EnsureTable(ctx); err != nil {
		return fmt.Errorf("failed to prepare storage: %w", err)
	}

	if _, err := pipeline.Sweep(ctx, pipeline.Now(), cfg.RetentionDays); err != nil {
		return err
	}
	return nil
}
