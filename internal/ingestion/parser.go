package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maxrawlins/transaction-summary-api/internal/apperror"
	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
)

// requiredColumns is the exact column set of a transactions file.
// Header names are matched after normalizeHeader; order is free.
var requiredColumns = []string{
	"transaction_id",
	"user_id",
	"product_id",
	"timestamp",
	"transaction_amount",
}

// Positions inside columnIndex, same order as requiredColumns.
const (
	idxTransactionID = iota
	idxUserID
	idxProductID
	idxTimestamp
	idxAmount
)

// columnIndex maps each required column to its position in a record.
type columnIndex [5]int

// timestampLayouts are the ISO-8601 forms accepted for the timestamp column.
// Layouts without an offset are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

const utf8BOM = "\ufeff"

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, utf8BOM)
	h = strings.TrimSpace(h)
	h = strings.Trim(h, `"`)
	return strings.ToLower(strings.TrimSpace(h))
}

// resolveHeader validates the header row and locates the required columns.
//
// It fails on, in order of precedence:
//   - missing required columns (all of them are listed, sorted)
//   - duplicated columns
//   - columns outside the required set
func resolveHeader(header []string) (columnIndex, error) {
	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}

	positions := make(map[string]int, len(requiredColumns))
	for i, name := range requiredColumns {
		positions[name] = i
	}

	var duplicate string
	var unexpected []string
	seen := make(map[string]bool, len(header))
	for col, raw := range header {
		name := normalizeHeader(raw)
		if seen[name] && duplicate == "" {
			duplicate = name
		}
		seen[name] = true

		pos, ok := positions[name]
		if !ok {
			unexpected = append(unexpected, name)
			continue
		}
		if idx[pos] == -1 {
			idx[pos] = col
		}
	}

	var missing []string
	for i, name := range requiredColumns {
		if idx[i] == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return idx, apperror.InvalidInput("Missing columns: "+strings.Join(missing, ", "), nil)
	}
	if duplicate != "" {
		return idx, apperror.InvalidInput("Duplicate column: "+duplicate, nil)
	}
	if len(unexpected) > 0 {
		return idx, apperror.InvalidInput("Unexpected columns: "+strings.Join(unexpected, ", "), nil)
	}
	return idx, nil
}

// readBatch reads and validates a whole CSV source into memory.
//
// Whole-batch policy: the first invalid row fails the entire source and no
// rows are returned, so nothing reaches the store.
func readBatch(ctx context.Context, src io.Reader) ([]models.Transaction, error) {
	r := csv.NewReader(src)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperror.InvalidInput("Empty file: a header row is required", nil)
		}
		return nil, apperror.InvalidInput("Malformed CSV", fmt.Errorf("read header: %w", err))
	}
	idx, err := resolveHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []models.Transaction
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// csv.ParseError carries the line number already.
			return nil, apperror.InvalidInput("Malformed CSV", err)
		}

		line, _ := r.FieldPos(0)
		tr, err := parseRecord(rec, idx)
		if err != nil {
			return nil, apperror.InvalidInput("Invalid data format", fmt.Errorf("line %d: %w", line, err))
		}
		rows = append(rows, tr)
	}

	return rows, nil
}

// parseRecord converts one CSV record into a Transaction.
// It is strict about user_id, timestamp and transaction_amount; the opaque
// identifiers are only trimmed.
func parseRecord(rec []string, idx columnIndex) (models.Transaction, error) {
	var t models.Transaction

	t.TransactionID = strings.TrimSpace(rec[idx[idxTransactionID]])
	t.ProductID = strings.TrimSpace(rec[idx[idxProductID]])

	raw := strings.TrimSpace(rec[idx[idxUserID]])
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return t, fieldError("user_id", raw, err)
	}
	t.UserID = userID

	raw = strings.TrimSpace(rec[idx[idxTimestamp]])
	ts, err := parseTimestamp(raw)
	if err != nil {
		return t, fieldError("timestamp", raw, err)
	}
	t.Timestamp = ts

	raw = strings.TrimSpace(rec[idx[idxAmount]])
	amount, err := parseAmount(raw)
	if err != nil {
		return t, fieldError("transaction_amount", raw, err)
	}
	t.Amount = amount

	return t, nil
}

func fieldError(column, raw string, err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		err = numErr.Err
	}
	return fmt.Errorf("invalid %s %q: %w", column, raw, err)
}

var errNotTimestamp = errors.New("expected ISO-8601 date-time")

// parseTimestamp accepts the layouts in timestampLayouts and returns UTC.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errNotTimestamp
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errNotTimestamp
}

var errNotFinite = errors.New("amount is not a finite number")

// parseAmount parses a decimal amount; NaN, infinities and values outside
// float64 range are rejected.
func parseAmount(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.New("expected a decimal number")
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errNotFinite
	}
	return f, nil
}
