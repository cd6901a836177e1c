package models

import "time"

// Transaction represents a single row of an uploaded transactions file.
//
// Column mapping (CSV header → field):
//
//	transaction_id     → TransactionID (opaque string)
//	user_id            → UserID (int64)
//	product_id         → ProductID (opaque string)
//	timestamp          → Timestamp (UTC)
//	transaction_amount → Amount (float64, finite)
//
// TransactionID is unique within one upload only; uniqueness across uploads
// is not enforced.
type Transaction struct {
	TransactionID string
	UserID        int64
	ProductID     string
	Timestamp     time.Time
	Amount        float64
}
