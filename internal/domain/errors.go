package domain

import "errors"

// Error kinds. Callers classify failures with errors.Is.
var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrAuth marks a missing or rejected credential.
	ErrAuth = errors.New("auth error")
	// ErrNetwork marks a transport failure or non-success response from a remote call.
	ErrNetwork = errors.New("network error")
	// ErrParse marks a remote response that is not the expected JSON.
	ErrParse = errors.New("parse error")
	// ErrCanceled marks a cooperative cancellation observed before a remote call.
	ErrCanceled = errors.New("canceled")
	// ErrNotFound marks an unknown id.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation not allowed in the current lifecycle state.
	ErrConflict = errors.New("conflict")
)

// Kind names the error kind of err for logs and API responses.
// Unclassified errors are "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
