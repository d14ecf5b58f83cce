package briefing

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when the client is constructed without an
// endpoint or bearer token. Configuration failures block normal operation
// entirely rather than degrading silently.
var ErrNotConfigured = errors.New("briefing: agent endpoint and bearer token are required")

// APIError describes a failed agent call: a transport error, a non-2xx
// status, or a malformed body. It is recoverable: the session survives and
// the user may retry by resubmitting the same action.
type APIError struct {
	// Status is the HTTP status code, or 0 for transport-level failures.
	Status int
	// Message is the human-readable description surfaced to the user.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("agent API error: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("agent API error: %s", e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }
