package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"time"

	pq "github.com/lib/pq"
	goose "github.com/pressly/goose/v3"

	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded goose migrations to a PostgreSQL database.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// PostgresStore is the durable TransactionStore backed by PostgreSQL.
//
// Batches are loaded with COPY FROM STDIN inside a single transaction, so a
// batch becomes visible to readers on commit and never partially.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open *sql.DB. The schema must already exist (see Migrate).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AppendBatch bulk-loads rows in a single transaction using pq.CopyIn.
func (s *PostgresStore) AppendBatch(ctx context.Context, rows []models.Transaction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	// Small optimization for bulk load
	if _, err := tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("set synchronous_commit: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("transactions", transactionColumns...))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare copy: %w", err)
	}

	for i, rec := range rows {
		if _, err := stmt.ExecContext(ctx,
			rec.TransactionID,
			rec.UserID,
			rec.ProductID,
			rec.Timestamp.UTC().Truncate(time.Microsecond),
			rec.Amount,
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, fmt.Errorf("copy row %d: %w", i, err)
		}
	}

	// Flush buffered COPY data.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

// Aggregate returns count/min/max/sum of one user's amounts inside w.
func (s *PostgresStore) Aggregate(ctx context.Context, userID int64, w Window) (*Aggregate, error) {
	query, args := aggregateQuery(postgresPlaceholder, `"timestamp"`, func(t time.Time) any { return t.UTC() }, userID, w)
	agg, err := scanAggregate(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("aggregate user %d: %w", userID, err)
	}
	return agg, nil
}

// Count returns the total number of stored rows.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func postgresPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}
