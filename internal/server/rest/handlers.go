package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/server/services"
	"github.com/gorilla/mux"
)

// UserService is the account side of the API.
type UserService interface {
	Authenticator
	Signup(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error
}

// NoteService is the note side of the API.
type NoteService interface {
	List(ctx context.Context, r services.Requester) ([]models.Note, error)
	Search(ctx context.Context, r services.Requester, query string) ([]models.Note, error)
	Get(ctx context.Context, r services.Requester, id int64) (*models.Note, error)
	Create(ctx context.Context, r services.Requester, title, content string) (*models.Note, error)
	Update(ctx context.Context, r services.Requester, id int64, title, content string) (int64, error)
	Delete(ctx context.Context, r services.Requester, id int64) (int64, error)
}

type handlers struct {
	users           UserService
	notes           NoteService
	logger          logging.Logger
	serverSideRoles bool
}

type userView struct {
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"lastLogin"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	Success bool     `json:"success"`
	User    userView `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool     `json:"success"`
	User      userView `json:"user"`
	CSRFToken string   `json:"csrfToken"`
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createNoteResponse struct {
	Message string `json:"message"`
	NoteID  int64  `json:"noteId"`
}

type updateNoteResponse struct {
	Message string `json:"message"`
	Changes int64  `json:"changes"`
}

type deleteNoteResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

type banner struct {
	Message   string            `json:"message"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

func (h *handlers) banner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, banner{
		Message: "Notes API Server",
		Status:  "running",
		Endpoints: map[string]string{
			"notes":  "/api/notes",
			"search": "/api/notes/search/:query",
			"note":   "/api/notes/:id",
		},
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, body{Success: boolPtr(false), Error: "Invalid JSON body"})
		return
	}

	u, err := h.users.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		var ve *common.ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusOK, body{Success: boolPtr(false), Error: ve.Msg})
		case errors.Is(err, common.ErrorAlreadyExists):
			writeJSON(w, http.StatusOK, body{Success: boolPtr(false), Error: "Email already registered"})
		default:
			h.logger.Error(r.Context(), "signup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, body{Success: boolPtr(false), Error: "Server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, signupResponse{
		Success: true,
		User:    userView{Username: u.Username, Email: u.Email, Role: u.Role},
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, body{Success: boolPtr(false), Error: "Invalid JSON body"})
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var le *services.LoginError
		if errors.As(err, &le) {
			metrics.LoginAttemptsTotal.WithLabelValues(loginOutcome(le.Reason)).Inc()
			writeJSON(w, http.StatusOK, loginFailureBody(le))
			return
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		h.logger.Error(r.Context(), "login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, body{Success: boolPtr(false), Error: "Server error"})
		return
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User: userView{
			Username:  res.User.Username,
			Email:     res.User.Email,
			Role:      res.User.Role,
			LastLogin: res.PreviousLogin,
		},
		CSRFToken: res.CSRFToken,
	})
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, body{Success: boolPtr(false), Error: "Invalid JSON body"})
		return
	}

	err := h.users.ChangePassword(r.Context(), req.Email, req.OldPassword, req.NewPassword)
	if err == nil {
		writeJSON(w, http.StatusOK, body{Success: boolPtr(true), Message: "Password changed successfully. Please login again."})
		return
	}

	var (
		le *services.LoginError
		ve *common.ValidationError
	)
	switch {
	case errors.As(err, &le):
		writeJSON(w, http.StatusOK, loginFailureBody(le))
	case errors.As(err, &ve):
		writeJSON(w, http.StatusOK, body{Success: boolPtr(false), Error: ve.Msg})
	default:
		writeServiceError(w, r, h.logger, err, true)
	}
}

func loginFailureBody(le *services.LoginError) body {
	b := body{Success: boolPtr(false), Error: le.Msg}
	switch le.Reason {
	case services.FailureLocked:
		b.AccountLocked = true
		b.MinutesLeft = intPtr(le.MinutesLeft)
	case services.FailureEmailNotFound:
		b.EmailNotFound = true
	case services.FailureWrongPassword:
		b.AttemptsLeft = intPtr(le.AttemptsLeft)
	}
	return b
}

func loginOutcome(reason services.LoginFailure) string {
	switch reason {
	case services.FailureLocked:
		return "locked"
	case services.FailureEmailNotFound:
		return "email_not_found"
	case services.FailureWrongPassword:
		return "wrong_password"
	}
	return "invalid_input"
}

// requester builds the note caller from the request role and the user
// resolved by RequireIdentity.
func (h *handlers) requester(r *http.Request) services.Requester {
	req := services.Requester{Role: paramsFrom(r.Context()).Role}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		req.Username = u.Username
		if h.serverSideRoles {
			req.Role = u.Role
		}
	}
	return req
}

func noteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeInvalidNoteID(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, body{Error: "Invalid note ID"})
}

func (h *handlers) listNotes(w http.ResponseWriter, r *http.Request) {
	list, err := h.notes.List(r.Context(), h.requester(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, false)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) searchNotes(w http.ResponseWriter, r *http.Request) {
	list, err := h.notes.Search(r.Context(), h.requester(r), mux.Vars(r)["query"])
	if err != nil {
		writeServiceError(w, r, h.logger, err, false)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) getNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeInvalidNoteID(w)
		return
	}
	n, err := h.notes.Get(r.Context(), h.requester(r), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, false)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *handlers) createNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, body{Error: "Invalid JSON body"})
		return
	}
	n, err := h.notes.Create(r.Context(), h.requester(r), req.Title, req.Content)
	if err != nil {
		writeServiceError(w, r, h.logger, err, false)
		return
	}
	writeJSON(w, http.StatusOK, createNoteResponse{Message: "Note created", NoteID: n.ID})
}

func (h *handlers) updateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeInvalidNoteID(w)
		return
	}
	var req noteRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, body{Error: "Invalid JSON body"})
		return
	}
	changes, err := h.notes.Update(r.Context(), h.requester(r), id, req.Title, req.Content)
	if err != nil {
		writeServiceError(w, r, h.logger, err, false)
		return
	}
	writeJSON(w, http.StatusOK, updateNoteResponse{Message: "Note updated", Changes: changes})
}

func (h *handlers) deleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeInvalidNoteID(w)
		return
	}
	deleted, err := h.notes.Delete(r.Context(), h.requester(r), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, false)
		return
	}
	writeJSON(w, http.StatusOK, deleteNoteResponse{Message: "Note deleted", DeletedCount: deleted})
}
