package recodex

import (
	"errors"
	"fmt"
)

var (
	// ErrParentGroupMissing is returned when a group references a parent that is
	// not part of the fetched set. This is a contract violation by the remote
	// service and is not recoverable.
	ErrParentGroupMissing = errors.New("parent group not found in the fetched group set")

	// ErrGroupCycle is returned when the parent chain of a group contains a
	// cycle. The remote service must deliver a forest; a cycle indicates
	// corrupted data.
	ErrGroupCycle = errors.New("cycle detected in the group parent chain")
)

// APIError describes a failed ReCodEx API call. The raw response body is kept
// for diagnostics; it is never parsed beyond the standard envelope.
type APIError struct {
	Message    string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("recodex API: %s (HTTP %d)", e.Message, e.StatusCode)
	}

	return "recodex API: " + e.Message
}

func newAPIError(message string, statusCode int, body string) *APIError {
	return &APIError{Message: message, StatusCode: statusCode, Body: body}
}
