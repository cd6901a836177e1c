package main

//
//  @title           Transaction Summary API
//  @version         1.0
//  @description     Transaction CSV ingestion and per-user summary service.
//  @contact.name    API Support
//  @contact.url     https://github.com/maxrawlins/transaction-summary-api
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        transactions
//  @tag.description Upload transaction files and query per-user summaries
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/maxrawlins/transaction-summary-api/config"
	_ "github.com/maxrawlins/transaction-summary-api/docs" // swagger docs
	"github.com/maxrawlins/transaction-summary-api/internal/app"
	"github.com/maxrawlins/transaction-summary-api/internal/ingestion"
	"github.com/maxrawlins/transaction-summary-api/internal/logger"
)

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Write timeout is left to the request Timeout middleware so large uploads
// are not cut mid-stream by the server.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Error().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// collectFiles resolves the CSV inputs of ingest mode: the comma-separated
// list in files when given, otherwise every *.csv directly under dir.
func collectFiles(dir, files string) ([]string, error) {
	var paths []string
	if strings.TrimSpace(files) != "" {
		for _, f := range strings.Split(files, ",") {
			if f = strings.TrimSpace(f); f != "" {
				paths = append(paths, f)
			}
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read input dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
	}
	if len(paths) == 0 {
		return nil, errors.New("no .csv input files found")
	}
	sort.Strings(paths)
	return paths, nil
}

// runIngest loads the given files into the configured durable store.
func runIngest(ctx context.Context, cfg config.Config, paths []string, parallel int) error {
	if cfg.Store.Driver != config.DriverPostgres && cfg.Store.Driver != config.DriverSQLite {
		return fmt.Errorf("ingest mode needs a durable store, STORE_DRIVER=%q", cfg.Store.Driver)
	}

	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := ingestion.NewService(store).IngestFiles(ctx, paths, parallel)
	for _, r := range results {
		if r.Result != nil {
			logger.L().Info().Str("file", r.Path).Int("rows", r.Result.RowsInserted).Msg("file ingested")
		}
	}
	return err
}

// main is the entry point of the transaction summary service.
//
// Modes (selected via --mode flag):
//   - api:    Starts the REST API (upload and summary endpoints).
//   - ingest: Loads local CSV files into the durable store (postgres or sqlite).
//
// Flags:
//   - --mode:     Execution mode ("api" or "ingest"). Default: "api".
//   - --dir:      Directory scanned for *.csv files in ingest mode. Default: "./data/input".
//   - --files:    Comma-separated CSV paths; overrides --dir.
//   - --parallel: Files ingested concurrently (0 = INGEST_PARALLEL, then auto).
//   - --port:     Port for the API server. Defaults to SERVER_PORT.
func main() {
	ctx := context.Background()

	config.LoadConfig()
	cfg := config.AppConfig

	logger.Init(cfg.Log)

	mode := flag.String("mode", "api", "Mode: api or ingest")
	dir := flag.String("dir", "./data/input", "Directory with .csv files")
	files := flag.String("files", "", "Comma-separated .csv files (overrides --dir)")
	parallel := flag.Int("parallel", 0, "How many files to ingest concurrently (0=INGEST_PARALLEL or auto)")
	port := flag.String("port", cfg.Server.Port, "Port for API mode")
	flag.Parse()

	switch *mode {
	case "ingest":
		logger.L().Info().Str("driver", cfg.Store.Driver).Msg("running ingestion")

		paths, err := collectFiles(*dir, *files)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("ingestion input error")
		}
		if *parallel <= 0 {
			*parallel = cfg.Ingest.Parallel
		}

		if err := runIngest(ctx, cfg, paths, *parallel); err != nil {
			logger.L().Fatal().Err(err).Msg("ingestion failed")
		}
		logger.L().Info().Int("files", len(paths)).Msg("ingestion completed successfully")

	case "api":
		logger.L().Info().Str("driver", cfg.Store.Driver).Msg("starting API server")

		router, cleanup, err := app.InitializeApp(cfg)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}

		server := startServer(router, *port)
		gracefulShutdown(ctx, server, cleanup)

	default:
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}
