package dto

import (
	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
)

const dateLayout = "2006-01-02"

// SummaryResponse represents the JSON structure returned by
// GET /summary/{user_id}.
//
// StartDate/EndDate are present only when the caller supplied them.
type SummaryResponse struct {
	UserID    int64   `json:"user_id" example:"42"`
	StartDate string  `json:"start_date,omitempty" example:"2024-01-01"`
	EndDate   string  `json:"end_date,omitempty" example:"2024-06-30"`
	Count     int64   `json:"count" example:"2"`
	Min       float64 `json:"min" example:"15.79"`
	Max       float64 `json:"max" example:"496.53"`
	Mean      float64 `json:"mean" example:"256.16"`
}

// NewSummaryResponse maps a domain summary onto the API contract.
func NewSummaryResponse(s *models.Summary) SummaryResponse {
	resp := SummaryResponse{
		UserID: s.UserID,
		Count:  s.Count,
		Min:    s.Min,
		Max:    s.Max,
		Mean:   s.Mean,
	}
	if s.StartDate != nil {
		resp.StartDate = s.StartDate.Format(dateLayout)
	}
	if s.EndDate != nil {
		resp.EndDate = s.EndDate.Format(dateLayout)
	}
	return resp
}

// UploadResponse represents the JSON structure returned by POST /upload.
type UploadResponse struct {
	Status       string `json:"status" example:"ok"`
	RowsInserted int    `json:"rows_inserted" example:"3"`
}

// NewUploadResponse maps an ingest result onto the API contract.
func NewUploadResponse(r *models.IngestResult) UploadResponse {
	return UploadResponse{Status: r.Status, RowsInserted: r.RowsInserted}
}
