package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/maxrawlins/transaction-summary-api/internal/apperror"
	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
	"github.com/maxrawlins/transaction-summary-api/internal/logger"
	"github.com/maxrawlins/transaction-summary-api/internal/metrics"
	"github.com/maxrawlins/transaction-summary-api/internal/storage"
)

const (
	msgBadRange = "end date must be on/after start date."
	msgNoData   = "No transactions found for the given criteria."
)

// meanTolerance is the relative slack allowed when checking min <= mean <= max.
const meanTolerance = 1e-9

// SummaryService defines business logic for per-user transaction summaries.
type SummaryService interface {
	Summarize(ctx context.Context, userID int64, start, end *time.Time) (*models.Summary, error)
}

type summaryService struct {
	store storage.TransactionStore
}

func NewSummaryService(store storage.TransactionStore) SummaryService {
	return &summaryService{store: store}
}

// Summarize returns count/min/max/mean of userID's amounts between the
// calendar dates start and end, both inclusive and both optional.
func (s *summaryService) Summarize(ctx context.Context, userID int64, start, end *time.Time) (*models.Summary, error) {
	sum, err := s.summarize(ctx, userID, start, end)
	metrics.Summaries.WithLabelValues(outcome(err)).Inc()
	return sum, err
}

func (s *summaryService) summarize(ctx context.Context, userID int64, start, end *time.Time) (*models.Summary, error) {
	w := storage.DayWindow(start, end)
	if w.From != nil && w.To != nil && !w.From.Before(*w.To) {
		return nil, apperror.InvalidInput(msgBadRange, nil)
	}

	agg, err := s.store.Aggregate(ctx, userID, w)
	if err != nil {
		log := logger.With("summary")
		log.Error().Err(err).Int64("user_id", userID).Msg("aggregate failed")
		return nil, apperror.Internal("Failed to compute summary", err)
	}
	if agg == nil {
		return nil, apperror.NotFound(msgNoData)
	}

	mean, err := checkedMean(agg)
	if err != nil {
		log := logger.With("summary")
		log.Error().Err(err).Int64("user_id", userID).Msg("inconsistent aggregate")
		return nil, apperror.Internal("Failed to compute summary", err)
	}

	out := &models.Summary{
		UserID: userID,
		Count:  agg.Count,
		Min:    agg.Min,
		Max:    agg.Max,
		Mean:   mean,
	}
	if w.From != nil {
		d := *w.From
		out.StartDate = &d
	}
	if w.To != nil {
		d := w.To.AddDate(0, 0, -1)
		out.EndDate = &d
	}
	return out, nil
}

// checkedMean verifies the aggregate and returns its mean clamped into
// [Min, Max]. Float summation may drift past the bounds by a few ulps.
func checkedMean(agg *storage.Aggregate) (float64, error) {
	if agg.Count < 1 {
		return 0, fmt.Errorf("aggregate with count %d", agg.Count)
	}
	if agg.Min > agg.Max {
		return 0, fmt.Errorf("aggregate min %v > max %v", agg.Min, agg.Max)
	}

	mean := agg.Mean()
	eps := meanTolerance * math.Max(1, math.Max(math.Abs(agg.Min), math.Abs(agg.Max)))
	if math.IsNaN(mean) || mean < agg.Min-eps || mean > agg.Max+eps {
		return 0, fmt.Errorf("aggregate mean %v outside [%v, %v]", mean, agg.Min, agg.Max)
	}
	return math.Min(math.Max(mean, agg.Min), agg.Max), nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperror.KindOf(err).String()
}
