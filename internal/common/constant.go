// Package common contains shared constants and sentinel errors used across
// NoteKeeper components.
package common

const (
	// CSRFHeaderName carries the anti-forgery token on state-changing and
	// identity-scoped requests. It is never set as a cookie.
	CSRFHeaderName = "X-CSRF-Token"

	// RequestIDHeader is echoed back on every response.
	RequestIDHeader = "X-Request-ID"

	RoleAdmin = "admin"
	RoleUser  = "user"
)
