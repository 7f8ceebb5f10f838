// Package services contains server-side business logic. UserService covers
// signup, login with lockout, password change and per-request identity
// resolution. NoteService covers note CRUD under the access policy.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/config"
	"github.com/dmitrijs2005/notekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/users"
)

// LoginResult is returned on a successful login. PreviousLogin is the last
// login before this one, nil on a first login.
type LoginResult struct {
	User          *models.User
	PreviousLogin *time.Time
	CSRFToken     string
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	lockout     auth.Lockout
	tokens      *csrf.Registry
	locks       *auth.KeyedMutex
	logger      logging.Logger
	now         func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens *csrf.Registry, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      auth.NewHasher(cfg.BcryptCost),
		lockout:     auth.NewLockout(cfg.LockoutThreshold, cfg.LockoutDuration),
		tokens:      tokens,
		locks:       auth.NewKeyedMutex(),
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the time source used for lockout decisions.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

func (s *UserService) users() users.Repository {
	return s.repomanager.Users(s.db)
}

// Signup validates input and stores a new account with role user.
func (s *UserService) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, common.NewValidationError("Please provide username, email and password.")
	}

	cleanUsername := common.SanitizeInput(username, auth.MaxUsernameLen)
	if !auth.ValidUsername(cleanUsername) {
		return nil, common.NewValidationError("Username must be 3-30 characters (letters, numbers, underscore, hyphen only)")
	}

	cleanEmail := common.NormalizeEmail(email)
	if !auth.ValidEmail(cleanEmail) {
		return nil, common.NewValidationError("Please provide a valid email address.")
	}

	if err := auth.CheckPasswordPolicy(password); err != nil {
		return nil, err
	}

	repo := s.users()
	exists, err := repo.EmailExists(ctx, cleanEmail)
	if err != nil {
		s.logger.Error(ctx, "signup lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if exists {
		return nil, common.ErrorAlreadyExists
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := repo.Create(ctx, &models.User{
		Username:     cleanUsername,
		Email:        cleanEmail,
		PasswordHash: hash,
		Role:         common.RoleUser,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		s.logger.Error(ctx, "signup insert failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user signed up", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login runs one attempt through the lockout machine and, on success, issues
// a fresh anti-forgery token bound to the email.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, &LoginError{Reason: FailureInvalidInput, Msg: "Please provide email and password."}
	}
	email = common.NormalizeEmail(email)
	if !auth.ValidEmail(email) {
		return nil, &LoginError{Reason: FailureInvalidInput, Msg: "Please provide a valid email address."}
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	repo := s.users()
	u, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, &LoginError{Reason: FailureEmailNotFound, Msg: "No account found with this email address."}
		}
		s.logger.Error(ctx, "login lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	now := s.now()
	if err := s.checkPassword(ctx, repo, u, password, now, "Invalid password."); err != nil {
		return nil, err
	}

	if err := repo.RecordLogin(ctx, u.ID, now); err != nil {
		s.logger.Error(ctx, "record login failed", "user_id", u.ID, "error", err)
		return nil, common.ErrorInternal
	}

	token, err := s.tokens.Issue(ctx, u.Email)
	if err != nil {
		s.logger.Error(ctx, "csrf issue failed", "user_id", u.ID, "error", err)
		return nil, common.ErrorInternal
	}

	previous := s.lockout.OnSuccess(u, now)

	s.logger.Info(ctx, "user logged in", "user_id", u.ID)
	return &LoginResult{User: u, PreviousLogin: previous, CSRFToken: token}, nil
}

// checkPassword applies the lockout machine around one password comparison.
// The caller holds the per-email lock.
func (s *UserService) checkPassword(ctx context.Context, repo users.Repository, u *models.User, password string, now time.Time, wrongMsg string) error {
	d := s.lockout.Evaluate(u, now)
	switch {
	case d.State == auth.Locked:
		return lockedLoginError(d.MinutesLeft)
	case d.Expired:
		if err := repo.ClearLockout(ctx, u.ID); err != nil {
			s.logger.Error(ctx, "clear lockout failed", "user_id", u.ID, "error", err)
			return common.ErrorInternal
		}
		u.FailedAttempts = 0
		u.LockedUntil = nil
	}

	if s.hasher.CheckPassword(u.PasswordHash, password) {
		return nil
	}

	attempts, err := repo.RecordFailure(ctx, u.ID, s.lockout.Threshold, s.lockout.LockUntil(now))
	if err != nil {
		s.logger.Error(ctx, "record failure failed", "user_id", u.ID, "error", err)
		return common.ErrorInternal
	}

	f := s.lockout.OnFailure(attempts)
	if f.Locked {
		s.logger.Warn(ctx, "account locked", "user_id", u.ID, "attempts", attempts)
		return lockedLoginError(f.MinutesLeft)
	}

	return &LoginError{
		Reason:       FailureWrongPassword,
		Msg:          fmt.Sprintf("%s %d attempt(s) remaining.", wrongMsg, f.AttemptsLeft),
		AttemptsLeft: f.AttemptsLeft,
	}
}

// ChangePassword replaces the password after checking the current one and
// revokes every anti-forgery token bound to the email.
func (s *UserService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if email == "" || oldPassword == "" || newPassword == "" {
		return common.NewValidationError("Please provide email, current password and new password.")
	}
	if oldPassword == newPassword {
		return common.NewValidationError("New password must be different from current password.")
	}
	if err := auth.CheckPasswordPolicy(newPassword); err != nil {
		return err
	}

	email = common.NormalizeEmail(email)

	unlock := s.locks.Lock(email)
	defer unlock()

	repo := s.users()
	u, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrSessionExpired
		}
		s.logger.Error(ctx, "change password lookup failed", "error", err)
		return common.ErrorInternal
	}

	if err := s.checkPassword(ctx, repo, u, oldPassword, s.now(), "Current password is incorrect."); err != nil {
		return err
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		s.logger.Error(ctx, "update password failed", "user_id", u.ID, "error", err)
		return common.ErrorInternal
	}
	if u.FailedAttempts > 0 {
		if err := repo.ClearLockout(ctx, u.ID); err != nil {
			s.logger.Error(ctx, "clear lockout failed", "user_id", u.ID, "error", err)
			return common.ErrorInternal
		}
	}

	revoked, err := s.tokens.RevokeAll(ctx, u.Email)
	if err != nil {
		s.logger.Error(ctx, "token revoke failed", "user_id", u.ID, "error", err)
		return common.ErrorInternal
	}

	s.logger.Info(ctx, "password changed", "user_id", u.ID, "revoked_tokens", revoked)
	return nil
}

// Authenticate resolves a claimed identity for a protected request. Missing
// or unknown identities yield ErrSessionExpired; a locked account yields an
// *auth.LockedError. A lockout that has run out is cleared on the way.
func (s *UserService) Authenticate(ctx context.Context, claim auth.ClaimedIdentity) (*models.User, error) {
	if claim.IsZero() {
		return nil, common.ErrSessionExpired
	}

	repo := s.users()
	var (
		u   *models.User
		err error
	)
	switch claim.Kind {
	case auth.ClaimByEmail:
		u, err = repo.GetByEmail(ctx, claim.Value)
	case auth.ClaimByUsername:
		u, err = repo.GetByUsername(ctx, claim.Value)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionExpired
		}
		s.logger.Error(ctx, "identity lookup failed", "claim", claim.String(), "error", err)
		return nil, common.ErrorInternal
	}

	d := s.lockout.Evaluate(u, s.now())
	if d.State == auth.Locked {
		return nil, &auth.LockedError{MinutesLeft: d.MinutesLeft}
	}
	if d.Expired {
		return s.clearExpiredLockout(ctx, repo, u)
	}

	return u, nil
}

// clearExpiredLockout re-reads u under its lock so a lock set by a racing
// login is not wiped.
func (s *UserService) clearExpiredLockout(ctx context.Context, repo users.Repository, u *models.User) (*models.User, error) {
	unlock := s.locks.Lock(u.Email)
	defer unlock()

	fresh, err := repo.GetByEmail(ctx, u.Email)
	if err != nil {
		s.logger.Error(ctx, "identity reload failed", "user_id", u.ID, "error", err)
		return nil, common.ErrorInternal
	}

	d := s.lockout.Evaluate(fresh, s.now())
	if d.State == auth.Locked {
		return nil, &auth.LockedError{MinutesLeft: d.MinutesLeft}
	}
	if d.Expired {
		if err := repo.ClearLockout(ctx, fresh.ID); err != nil {
			s.logger.Error(ctx, "clear lockout failed", "user_id", fresh.ID, "error", err)
			return nil, common.ErrorInternal
		}
		fresh.FailedAttempts = 0
		fresh.LockedUntil = nil
	}
	return fresh, nil
}
