// Package ingestion loads transaction CSV files into a TransactionStore.
//
// Every source is validated completely before anything is written, then
// appended as one atomic batch: a file either lands whole or not at all.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maxrawlins/transaction-summary-api/internal/apperror"
	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
	"github.com/maxrawlins/transaction-summary-api/internal/logger"
	"github.com/maxrawlins/transaction-summary-api/internal/metrics"
	"github.com/maxrawlins/transaction-summary-api/internal/storage"
)

// maxParallel caps the automatic parallelism of IngestFiles.
const maxParallel = 8

// Service ingests CSV sources.
type Service interface {
	// Ingest validates src and appends all its rows as one batch.
	Ingest(ctx context.Context, src io.Reader) (*models.IngestResult, error)
	// IngestFile opens path and ingests it.
	IngestFile(ctx context.Context, path string) (*models.IngestResult, error)
	// IngestFiles ingests several files concurrently, each as its own batch.
	// parallel <= 0 picks min(NumCPU, 8).
	IngestFiles(ctx context.Context, paths []string, parallel int) ([]FileResult, error)
}

// FileResult is the outcome of one file in IngestFiles.
type FileResult struct {
	Path   string
	Result *models.IngestResult
}

type service struct {
	store storage.TransactionStore
}

// NewService returns a Service writing to store.
func NewService(store storage.TransactionStore) Service {
	return &service{store: store}
}

func (s *service) Ingest(ctx context.Context, src io.Reader) (*models.IngestResult, error) {
	batchID := uuid.NewString()
	log := logger.With("ingestion")
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	rows, err := readBatch(ctx, src)
	if err != nil {
		kind := apperror.KindOf(err)
		metrics.IngestBatches.WithLabelValues(kind.String()).Inc()
		log.Warn().Err(err).Str("batch_id", batchID).Str("outcome", kind.String()).Msg("batch rejected")
		return nil, err
	}

	n, err := s.store.AppendBatch(ctx, rows)
	if err != nil {
		appErr := apperror.Internal("Failed to store transactions", err)
		metrics.IngestBatches.WithLabelValues(apperror.KindOf(appErr).String()).Inc()
		log.Error().Err(err).Str("batch_id", batchID).Int("rows", len(rows)).Msg("append failed")
		return nil, appErr
	}

	metrics.IngestBatches.WithLabelValues("ok").Inc()
	metrics.IngestRows.Add(float64(n))
	log.Info().
		Str("batch_id", batchID).
		Int("rows", n).
		Dur("elapsed", time.Since(start)).
		Msg("batch ingested")

	return &models.IngestResult{Status: models.IngestStatusOK, RowsInserted: n}, nil
}

func (s *service) IngestFile(ctx context.Context, path string) (*models.IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.InvalidInput("Cannot open file", err)
	}
	defer f.Close()

	return s.Ingest(ctx, f)
}

func (s *service) IngestFiles(ctx context.Context, paths []string, parallel int) ([]FileResult, error) {
	if parallel <= 0 {
		parallel = runtime.NumCPU()
		if parallel > maxParallel {
			parallel = maxParallel
		}
	}

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.IngestFile(gctx, p)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(p), err)
			}
			results[i] = FileResult{Path: p, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
