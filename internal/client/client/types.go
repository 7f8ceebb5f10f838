package client

import (
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

// Session is the identity kept after a successful login.
type Session struct {
	Username  string
	Email     string
	Role      string
	LastLogin *time.Time
}

// IsAdmin reports whether the session acts as an administrator.
func (s *Session) IsAdmin() bool { return s.Role == common.RoleAdmin }

type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type userJSON struct {
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"lastLogin"`
}

// reply is the loose envelope the server uses for statuses and errors.
type reply struct {
	Success        *bool     `json:"success"`
	Message        string    `json:"message"`
	Error          string    `json:"error"`
	SessionExpired bool      `json:"sessionExpired"`
	AccountLocked  bool      `json:"accountLocked"`
	CSRFError      bool      `json:"csrfError"`
	RateLimited    bool      `json:"rateLimited"`
	EmailNotFound  bool      `json:"emailNotFound"`
	AttemptsLeft   *int      `json:"attemptsLeft"`
	MinutesLeft    *int      `json:"minutesLeft"`
	User           *userJSON `json:"user"`
	CSRFToken      string    `json:"csrfToken"`
	NoteID         int64     `json:"noteId"`
	Changes        int64     `json:"changes"`
	DeletedCount   int64     `json:"deletedCount"`
}
