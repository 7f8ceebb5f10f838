// Package client talks to the NoteKeeper JSON API.
//
// HTTPClient keeps the session returned by Login in memory together with its
// anti-forgery token and sends the token in the X-CSRF-Token header on every
// protected call. The identity (email) and role go along as request
// parameters. A reply flagged sessionExpired or csrfError drops the session.
//
// Server refusals come back as *APIError and match the sentinels from
// internal/common through errors.Is. Transport failures wrap ErrUnavailable.
package client
