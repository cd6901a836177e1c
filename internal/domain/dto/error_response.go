package dto

import "time"

// ErrorResponse is the JSON body returned for every non-2xx response.
//
// Fields:
//   - Message: human-readable reason, safe to show to API callers.
//   - ErrorDetails: underlying cause for client errors; empty for server faults.
//   - Timestamp: time the error response was built (UTC).
type ErrorResponse struct {
	Message      string    `json:"message" example:"Missing columns: transaction_amount"`
	ErrorDetails string    `json:"error,omitempty" example:"line 4: invalid user_id \"abc\""`
	Timestamp    time.Time `json:"timestamp" example:"2024-07-01T10:00:00Z"`
}

// Error implements the error interface so the response can travel through
// gin's c.Error chain.
func (e ErrorResponse) Error() string {
	if e.ErrorDetails == "" {
		return e.Message
	}
	return e.Message + ": " + e.ErrorDetails
}

// NewErrorResponse builds an ErrorResponse; err may be nil.
func NewErrorResponse(message string, err error) ErrorResponse {
	resp := ErrorResponse{
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		resp.ErrorDetails = err.Error()
	}
	return resp
}
