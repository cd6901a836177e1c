package storage

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
)

// Column positions in transactionSchema.
const (
	colTransactionID = iota
	colUserID
	colProductID
	colTimestamp
	colAmount
)

// transactionSchema is the Arrow layout of one in-memory segment.
var transactionSchema = arrow.NewSchema([]arrow.Field{
	{Name: "transaction_id", Type: arrow.BinaryTypes.String},
	{Name: "user_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "product_id", Type: arrow.BinaryTypes.String},
	{Name: "timestamp", Type: arrow.FixedWidthTypes.Timestamp_us},
	{Name: "transaction_amount", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// segment is one committed batch: an immutable Arrow record plus a per-user
// row index and the batch's timestamp range.
type segment struct {
	rec     arrow.Record
	ts      []arrow.Timestamp
	amounts []float64
	byUser  map[int64][]int32
	minTS   int64
	maxTS   int64
}

// aggregate folds the rows of userID whose timestamp lies in [from, to).
func (seg *segment) aggregate(userID int64, from, to int64) *Aggregate {
	rows := seg.byUser[userID]
	if len(rows) == 0 || seg.maxTS < from || seg.minTS >= to {
		return nil
	}
	var agg Aggregate
	for _, r := range rows {
		ts := int64(seg.ts[r])
		if ts < from || ts >= to {
			continue
		}
		agg.add(seg.amounts[r])
	}
	return &agg
}

// MemoryStore is the in-process columnar TransactionStore.
//
// Each batch is encoded into one Arrow record. Writers are serialized by
// writeMu and publish a new segment list with an atomic swap. Readers load
// the list without locking and only ever see whole segments.
type MemoryStore struct {
	alloc    memory.Allocator
	writeMu  sync.Mutex
	segments atomic.Pointer[[]*segment]
	closed   atomic.Bool
}

// NewMemoryStore returns an empty store using the Go allocator.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithAllocator(memory.NewGoAllocator())
}

// NewMemoryStoreWithAllocator is NewMemoryStore with an explicit allocator;
// tests pass a checked allocator to catch leaked buffers.
func NewMemoryStoreWithAllocator(alloc memory.Allocator) *MemoryStore {
	s := &MemoryStore{alloc: alloc}
	empty := make([]*segment, 0)
	s.segments.Store(&empty)
	return s
}

// AppendBatch encodes rows into a new segment and publishes it.
func (s *MemoryStore) AppendBatch(_ context.Context, rows []models.Transaction) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if len(rows) > math.MaxInt32 {
		return 0, fmt.Errorf("batch of %d rows exceeds segment limit", len(rows))
	}

	seg := s.buildSegment(rows)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		seg.rec.Release()
		return 0, ErrClosed
	}
	cur := *s.segments.Load()
	next := make([]*segment, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, seg)
	s.segments.Store(&next)

	return len(rows), nil
}

func (s *MemoryStore) buildSegment(rows []models.Transaction) *segment {
	b := array.NewRecordBuilder(s.alloc, transactionSchema)
	defer b.Release()
	b.Reserve(len(rows))

	ids := b.Field(colTransactionID).(*array.StringBuilder)
	users := b.Field(colUserID).(*array.Int64Builder)
	products := b.Field(colProductID).(*array.StringBuilder)
	stamps := b.Field(colTimestamp).(*array.TimestampBuilder)
	amounts := b.Field(colAmount).(*array.Float64Builder)

	seg := &segment{
		byUser: make(map[int64][]int32),
		minTS:  math.MaxInt64,
		maxTS:  math.MinInt64,
	}
	for i, r := range rows {
		ts := r.Timestamp.UTC().UnixMicro()
		ids.Append(r.TransactionID)
		users.Append(r.UserID)
		products.Append(r.ProductID)
		stamps.Append(arrow.Timestamp(ts))
		amounts.Append(r.Amount)

		seg.byUser[r.UserID] = append(seg.byUser[r.UserID], int32(i))
		if ts < seg.minTS {
			seg.minTS = ts
		}
		if ts > seg.maxTS {
			seg.maxTS = ts
		}
	}

	seg.rec = b.NewRecord()
	seg.ts = seg.rec.Column(colTimestamp).(*array.Timestamp).TimestampValues()
	seg.amounts = seg.rec.Column(colAmount).(*array.Float64).Float64Values()
	return seg
}

// Aggregate scans the indexed rows of userID in every published segment.
func (s *MemoryStore) Aggregate(_ context.Context, userID int64, w Window) (*Aggregate, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	from, to := int64(math.MinInt64), int64(math.MaxInt64)
	if w.From != nil {
		from = microsCeil(*w.From)
	}
	if w.To != nil {
		to = microsCeil(*w.To)
	}

	var total Aggregate
	for _, seg := range *s.segments.Load() {
		total.merge(seg.aggregate(userID, from, to))
	}
	if total.Count == 0 {
		return nil, nil
	}
	return &total, nil
}

// Count returns the number of rows across all segments.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var n int64
	for _, seg := range *s.segments.Load() {
		n += seg.rec.NumRows()
	}
	return n, nil
}

// Ping reports whether the store is still open.
func (s *MemoryStore) Ping(_ context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close releases every segment. Calls after the first are no-ops.
func (s *MemoryStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	for _, seg := range *s.segments.Load() {
		seg.rec.Release()
	}
	empty := make([]*segment, 0)
	s.segments.Store(&empty)
	return nil
}

// microsCeil converts a window bound to microseconds, rounding up so that a
// bound with sub-microsecond precision keeps the same set of stored rows.
func microsCeil(t time.Time) int64 {
	us := t.UnixMicro()
	if t.Nanosecond()%1000 != 0 {
		us++
	}
	return us
}
