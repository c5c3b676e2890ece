package policy

import (
	"fmt"
	"net/http"
)

// Error is a policy decision with an associated HTTP status. The web layer
// passes the status through to the response envelope.
type Error struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NotFound denies access without revealing whether the subject exists.
func NotFound(format string, args ...any) *Error {
	return &Error{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden denies an operation the user is not entitled to.
func Forbidden(format string, args ...any) *Error {
	return &Error{Status: http.StatusForbidden, Message: fmt.Sprintf(format, args...)}
}

// BadRequest rejects an operation that makes no sense in the current state.
func BadRequest(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}
