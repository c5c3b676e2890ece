package auth

import "errors"

var (
	// ErrTokenInvalid covers malformed, forged, and expired access tokens.
	ErrTokenInvalid = errors.New("access token is invalid")

	// ErrTokenTooShort is returned when a delegated token cannot be split.
	ErrTokenTooShort = errors.New("delegated token is too short to be split")
)
