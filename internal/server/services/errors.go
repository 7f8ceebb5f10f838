package services

import (
	"fmt"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

// LoginFailure says why a login or password check was refused.
type LoginFailure int

const (
	FailureInvalidInput LoginFailure = iota
	FailureEmailNotFound
	FailureWrongPassword
	FailureLocked
)

// LoginError is a refused credential check. It is a normal outcome, not a
// server fault, and its Msg is meant for the user.
type LoginError struct {
	Reason       LoginFailure
	Msg          string
	AttemptsLeft int
	MinutesLeft  int
}

func (e *LoginError) Error() string { return e.Msg }

func (e *LoginError) Is(target error) bool {
	switch e.Reason {
	case FailureLocked:
		return target == common.ErrAccountLocked
	case FailureInvalidInput:
		return false
	}
	return target == common.ErrorUnauthorized
}

func lockedLoginError(minutes int) *LoginError {
	return &LoginError{
		Reason:      FailureLocked,
		Msg:         fmt.Sprintf("Account locked due to too many failed attempts. Try again in %d minute(s).", minutes),
		MinutesLeft: minutes,
	}
}

// AccessDeniedError is an ownership violation on a note.
type AccessDeniedError struct {
	Msg string
}

func (e *AccessDeniedError) Error() string { return e.Msg }

func (e *AccessDeniedError) Is(target error) bool {
	return target == common.ErrorForbidden
}
