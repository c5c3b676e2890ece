package sis

import "fmt"

// APIError describes a failed SIS API call. Module names the SIS REST module
// that produced the failure (rozvrhng or kdojekdo).
type APIError struct {
	Module  string
	Message string
	Body    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("sis %s API: %s", e.Module, e.Message)
}

func newAPIError(module, message, body string) *APIError {
	return &APIError{Module: module, Message: message, Body: body}
}
