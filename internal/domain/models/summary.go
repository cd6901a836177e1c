package models

import "time"

// IngestStatusOK is the only status reported by a successful ingest.
// Failed ingests surface as errors, never as a result value.
const IngestStatusOK = "ok"

// IngestResult is produced once per ingest call.
type IngestResult struct {
	Status       string
	RowsInserted int
}

// Summary represents count/min/max/mean of one user's transaction amounts,
// optionally restricted to an inclusive calendar-date range.
//
// StartDate and EndDate echo the bounds that were supplied by the caller
// and are nil when the range is open on that side.
//
// swagger:model Summary
type Summary struct {
	UserID    int64
	StartDate *time.Time
	EndDate   *time.Time
	Count     int64
	Min       float64
	Max       float64
	Mean      float64
}
