// Package apperror classifies failures of the ingestion and summary
// operations so the HTTP layer can map them onto status codes without
// inspecting error strings.
package apperror

import (
	"context"
	"errors"
	"net/http"
)

// Kind is the category of a failure.
type Kind int

const (
	// KindInternal is an unexpected server-side fault (storage engine failure,
	// violated invariant). It is the zero value so unclassified errors are
	// never mistaken for client mistakes.
	KindInternal Kind = iota
	// KindInvalidInput is a malformed upload or malformed query parameters.
	KindInvalidInput
	// KindNotFound means the query was valid but matched no rows.
	KindNotFound
	// KindCanceled means the request context was canceled or hit its
	// deadline before the operation finished.
	KindCanceled
)

// canceledMessage is shown for requests cut short by their context.
const canceledMessage = "Request canceled or timed out."

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to the status code returned by the API.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a display-safe Message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidInput reports a client input error.
func InvalidInput(msg string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg, Err: err}
}

// NotFound reports an empty result for an otherwise valid query.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Internal reports a server fault.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// A context cancellation or deadline anywhere in the chain wins over the
// wrapping kind. Errors that were never classified are treated as internal.
func KindOf(err error) Kind {
	if isContextErr(err) {
		return KindCanceled
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the display-safe message of err.
// For unclassified errors it returns fallback so internals are not leaked.
func MessageOf(err error, fallback string) string {
	if isContextErr(err) {
		return canceledMessage
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
