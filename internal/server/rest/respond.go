package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
)

const (
	msgSessionExpired = "Session expired. Please login again."
	msgNoteNotFound   = "Note not found"
	msgServerError    = "Internal server error"
)

// body is the loose JSON envelope used by every error and status reply.
// Zero-valued flags are omitted.
type body struct {
	Success        *bool  `json:"success,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	SessionExpired bool   `json:"sessionExpired,omitempty"`
	AccountLocked  bool   `json:"accountLocked,omitempty"`
	CSRFError      bool   `json:"csrfError,omitempty"`
	RateLimited    bool   `json:"rateLimited,omitempty"`
	EmailNotFound  bool   `json:"emailNotFound,omitempty"`
	AttemptsLeft   *int   `json:"attemptsLeft,omitempty"`
	MinutesLeft    *int   `json:"minutesLeft,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps a service error onto a status code and body. With
// envelope set the body carries success:false.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error, envelope bool) {
	status, b := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	if envelope {
		b.Success = boolPtr(false)
	}
	writeJSON(w, status, b)
}

func classify(err error) (int, body) {
	var (
		ve *common.ValidationError
		le *auth.LockedError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, body{Error: ve.Msg}
	case errors.As(err, &le):
		return http.StatusForbidden, body{Error: le.Error(), AccountLocked: true, MinutesLeft: intPtr(le.MinutesLeft)}
	case errors.Is(err, common.ErrSessionExpired):
		return http.StatusUnauthorized, body{Error: msgSessionExpired, SessionExpired: true}
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, body{Error: err.Error()}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, body{Error: msgNoteNotFound}
	}
	return http.StatusInternalServerError, body{Error: msgServerError}
}
