package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

const (
	DefaultLockoutThreshold = 3
	DefaultLockoutDuration  = 5 * time.Minute
)

type LockState int

const (
	Active LockState = iota
	Locked
)

func (s LockState) String() string {
	if s == Locked {
		return "LOCKED"
	}
	return "ACTIVE"
}

// Decision is the outcome of evaluating a user's lockout fields before an
// attempt. Expired is set when a lockout has run out and the stored fields
// must be cleared before the attempt is judged.
type Decision struct {
	State       LockState
	MinutesLeft int
	Expired     bool
}

// Failure describes the account after one more failed attempt.
type Failure struct {
	Attempts     int
	AttemptsLeft int
	Locked       bool
	MinutesLeft  int
}

// Lockout is the failed-attempt state machine. It only computes transitions;
// the credential store applies them.
type Lockout struct {
	Threshold int
	Duration  time.Duration
}

func NewLockout(threshold int, d time.Duration) Lockout {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if d <= 0 {
		d = DefaultLockoutDuration
	}
	return Lockout{Threshold: threshold, Duration: d}
}

// Evaluate classifies u at now.
func (l Lockout) Evaluate(u *models.User, now time.Time) Decision {
	if u.LockedUntil == nil {
		return Decision{State: Active}
	}
	if u.IsLockedAt(now) {
		return Decision{State: Locked, MinutesLeft: timex.CeilMinutes(u.LockedUntil.Sub(now))}
	}
	return Decision{State: Active, Expired: true}
}

// LockUntil is the expiry a lock started at now would get.
func (l Lockout) LockUntil(now time.Time) time.Time {
	return now.Add(l.Duration)
}

// OnFailure interprets the counter value returned by the store after an
// increment.
func (l Lockout) OnFailure(attempts int) Failure {
	f := Failure{Attempts: attempts, AttemptsLeft: l.Threshold - attempts}
	if attempts >= l.Threshold {
		f.Locked = true
		f.AttemptsLeft = 0
		f.MinutesLeft = timex.CeilMinutes(l.Duration)
	}
	return f
}

// OnSuccess applies a successful attempt to u: the counter and any lock are
// cleared and the last login moves to now. It returns the previous last login.
func (l Lockout) OnSuccess(u *models.User, now time.Time) *time.Time {
	previous := u.LastLogin
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLogin = &now
	return previous
}

// LockedError is returned while an account is locked.
type LockedError struct {
	MinutesLeft int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("Account locked. Try again in %d minute(s).", e.MinutesLeft)
}

func (e *LockedError) Is(target error) bool {
	return target == common.ErrAccountLocked
}
