// Package users stores accounts together with their lockout counters.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// RecordFailure bumps the failed-attempt counter in a single statement
	// and sets locked_until to lockUntil once the new count reaches
	// threshold. It returns the counter after the increment.
	RecordFailure(ctx context.Context, id int64, threshold int, lockUntil time.Time) (int, error)
	// ClearLockout zeroes the counter and removes any expiry.
	ClearLockout(ctx context.Context, id int64) error
	// RecordLogin clears the lockout and stamps the last login time.
	RecordLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
}
