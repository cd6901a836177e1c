package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver for database/sql

	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
)

// sqliteMaxVariables is the bound-parameter limit of the bundled SQLite (>= 3.32).
const sqliteMaxVariables = 32766

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	transaction_id     TEXT    NOT NULL,
	user_id            INTEGER NOT NULL,
	product_id         TEXT    NOT NULL,
	ts_us              INTEGER NOT NULL,
	transaction_amount REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_ts ON transactions (user_id, ts_us);
`

// SQLiteStore is an embedded durable TransactionStore.
//
// Timestamps are stored as UTC microseconds since the epoch so range filters
// compare integers. Batches are written with multi-row INSERT statements in
// one transaction; mu serializes writers and admits concurrent readers.
type SQLiteStore struct {
	db    *sql.DB
	mu    sync.RWMutex
	chunk int
}

// OpenSQLite opens (creating if needed) the database file at path in WAL mode
// and ensures the schema exists. chunk is the number of rows per INSERT.
func OpenSQLite(path string, chunk int) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	maxChunk := sqliteMaxVariables / len(transactionColumns)
	if chunk <= 0 || chunk > maxChunk {
		chunk = maxChunk
	}
	return &SQLiteStore{db: db, chunk: chunk}, nil
}

// AppendBatch inserts rows in chunks inside a single transaction.
func (s *SQLiteStore) AppendBatch(ctx context.Context, rows []models.Transaction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	for start := 0; start < len(rows); start += s.chunk {
		end := start + s.chunk
		if end > len(rows) {
			end = len(rows)
		}
		query, args := sqliteInsert(rows[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

func sqliteInsert(rows []models.Transaction) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO transactions (transaction_id, user_id, product_id, ts_us, transaction_amount) VALUES ")
	args := make([]any, 0, len(rows)*len(transactionColumns))
	for i, r := range rows {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?)")
		args = append(args, r.TransactionID, r.UserID, r.ProductID, r.Timestamp.UTC().UnixMicro(), r.Amount)
	}
	return sb.String(), args
}

// Aggregate returns count/min/max/sum of one user's amounts inside w.
func (s *SQLiteStore) Aggregate(ctx context.Context, userID int64, w Window) (*Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := aggregateQuery(func(int) string { return "?" }, "ts_us", func(t time.Time) any { return microsCeil(t) }, userID, w)
	agg, err := scanAggregate(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("aggregate user %d: %w", userID, err)
	}
	return agg, nil
}

// Count returns the total number of stored rows.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Ping checks that the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
