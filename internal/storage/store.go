package storage

import (
	"context"
	"errors"
	"time"

	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store is closed")

// TransactionStore is the append-only dataset shared by ingestion and summaries.
//
// Contract:
//   - AppendBatch applies all rows or none; once it returns nil the rows are
//     visible to every subsequent Aggregate call.
//   - Concurrent AppendBatch calls are serialized at batch granularity.
//   - Aggregate never observes part of a batch.
//   - Aggregate returns (nil, nil) when no row matches.
type TransactionStore interface {
	AppendBatch(ctx context.Context, rows []models.Transaction) (int, error)
	Aggregate(ctx context.Context, userID int64, window Window) (*Aggregate, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Window is a half-open UTC time interval [From, To). A nil bound is open.
type Window struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && !t.Before(*w.To) {
		return false
	}
	return true
}

// DayWindow converts an inclusive calendar-date range into a Window:
// start 00:00:00 inclusive up to the midnight after end, exclusive.
// Only the calendar date of start and end is used.
func DayWindow(start, end *time.Time) Window {
	var w Window
	if start != nil {
		from := midnightUTC(*start)
		w.From = &from
	}
	if end != nil {
		to := midnightUTC(*end).AddDate(0, 0, 1)
		w.To = &to
	}
	return w
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Aggregate is the raw store-side fold over matching amounts.
// A nil *Aggregate means no rows matched; a non-nil one always has Count >= 1.
type Aggregate struct {
	Count int64
	Min   float64
	Max   float64
	Sum   float64
}

// Mean returns Sum/Count in float64.
func (a *Aggregate) Mean() float64 {
	return a.Sum / float64(a.Count)
}

// add folds one amount into the aggregate.
func (a *Aggregate) add(v float64) {
	if a.Count == 0 {
		a.Min, a.Max = v, v
	} else {
		if v < a.Min {
			a.Min = v
		}
		if v > a.Max {
			a.Max = v
		}
	}
	a.Count++
	a.Sum += v
}

// merge folds another partial aggregate into a.
func (a *Aggregate) merge(b *Aggregate) {
	if b == nil || b.Count == 0 {
		return
	}
	if a.Count == 0 {
		*a = *b
		return
	}
	if b.Min < a.Min {
		a.Min = b.Min
	}
	if b.Max > a.Max {
		a.Max = b.Max
	}
	a.Count += b.Count
	a.Sum += b.Sum
}
