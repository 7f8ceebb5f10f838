package models

import "time"

// User is a stored account. Email is unique and always lowercase.
// FailedAttempts and LockedUntil drive the login lockout; LockedUntil is
// nil while the account is not locked.
type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   string
	Role           string
	FailedAttempts int
	LockedUntil    *time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
}

// IsLockedAt reports whether the lockout is still in force at now.
func (u *User) IsLockedAt(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
