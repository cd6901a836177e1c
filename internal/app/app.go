package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/maxrawlins/transaction-summary-api/config"
	"github.com/maxrawlins/transaction-summary-api/internal/api"
	"github.com/maxrawlins/transaction-summary-api/internal/ingestion"
	"github.com/maxrawlins/transaction-summary-api/internal/logger"
	"github.com/maxrawlins/transaction-summary-api/internal/service"
	"github.com/maxrawlins/transaction-summary-api/internal/storage"
)

// OpenStore builds the transaction store selected by cfg.Store.Driver.
//
//   - memory:   in-process Arrow store, lost on exit.
//   - postgres: connects with InitPostgres and, when cfg.Postgres.Migrate is
//     set, applies the embedded migrations.
//   - sqlite:   opens (creating if needed) cfg.SQLite.Path.
//
// The caller owns the returned store and must Close it.
func OpenStore(cfg config.Config) (storage.TransactionStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory, "":
		return storage.NewMemoryStore(), nil

	case config.DriverPostgres:
		db, err := postgresOpener(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		if cfg.Postgres.Migrate {
			if err := migrator(db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to migrate postgres: %w", err)
			}
		}
		return storage.NewPostgresStore(db), nil

	case config.DriverSQLite:
		s, err := storage.OpenSQLite(cfg.SQLite.Path, cfg.SQLite.InsertChunk)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Opens the configured transaction store (OpenStore).
//   - Builds the ingestion and summary services on top of it.
//   - Creates the HTTP handler layer and the router.
//   - Registers health and readiness probes (readiness pings the store).
//   - Provides a cleanup function that closes the store.
func InitializeApp(cfg config.Config) (*gin.Engine, func(), error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	log := logger.With("app")
	log.Info().Str("driver", cfg.Store.Driver).Msg("transaction store ready")

	ingest := ingestion.NewService(store)
	summary := service.NewSummaryService(store)

	handler := api.NewHandler(ingest, summary, cfg.Upload.MaxBytes)
	router := api.NewRouter(handler, cfg.Server)

	healthHandler := api.NewHealthHandler(store.Ping)
	healthHandler.Register(router)

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("closing transaction store")
		}
	}

	return router, cleanup, nil
}
