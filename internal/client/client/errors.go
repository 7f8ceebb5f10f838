package client

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNotLoggedIn = errors.New("not logged in")
)

// APIError is a refusal reported by the server. Msg is the server's
// user-facing text.
type APIError struct {
	Status         int
	Msg            string
	SessionExpired bool
	CSRFError      bool
	AccountLocked  bool
	RateLimited    bool
	EmailNotFound  bool
	AttemptsLeft   *int
	MinutesLeft    *int
}

func (e *APIError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return http.StatusText(e.Status)
}

// Is lets callers match the shared sentinels from common.
func (e *APIError) Is(target error) bool {
	switch target {
	case common.ErrSessionExpired:
		return e.SessionExpired || e.CSRFError
	case common.ErrAccountLocked:
		return e.AccountLocked
	case common.ErrRateLimited:
		return e.RateLimited
	case common.ErrorNotFound:
		return e.Status == http.StatusNotFound
	case common.ErrorForbidden:
		return e.Status == http.StatusForbidden && !e.AccountLocked && !e.CSRFError
	case common.ErrorUnauthorized:
		return e.EmailNotFound || e.AttemptsLeft != nil
	}
	return false
}

func newAPIError(status int, r *reply) *APIError {
	return &APIError{
		Status:         status,
		Msg:            r.Error,
		SessionExpired: r.SessionExpired,
		CSRFError:      r.CSRFError,
		AccountLocked:  r.AccountLocked,
		RateLimited:    r.RateLimited,
		EmailNotFound:  r.EmailNotFound,
		AttemptsLeft:   r.AttemptsLeft,
		MinutesLeft:    r.MinutesLeft,
	}
}
