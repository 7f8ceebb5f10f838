// Package common defines shared constants and sentinel errors used across
// the NoteKeeper server and CLI. Callers should use errors.Is / errors.As to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("access denied")

	// Identity resolution.
	ErrSessionExpired = errors.New("session expired")
	ErrAccountLocked  = errors.New("account locked")

	// Flood control.
	ErrRateLimited = errors.New("too many attempts")
)

// ValidationError reports malformed or missing client input. Msg names the
// violated rule and is safe to return to the caller verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError is a shorthand for &ValidationError{Msg: msg}.
func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
