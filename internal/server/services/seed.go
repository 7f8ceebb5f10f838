package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
)

type demoUser struct {
	username, email, password, role string
}

var demoUsers = []demoUser{
	{"admin", "admin@me.com", "Admin@123", common.RoleAdmin},
	{"Tom", "tom@me.com", "Tom@pass123", common.RoleUser},
	{"Jerry", "jerry@me.com", "Jerry@pass123", common.RoleUser},
}

const welcomeNote = "1. Welcome to ADMIN ACCOUNT."

// SeedDemoData creates the demo accounts that do not exist yet and, on an
// empty notes table, the admin welcome note. It is safe to run on every
// start.
func SeedDemoData(ctx context.Context, db *sql.DB, m repomanager.RepositoryManager, hasher *auth.Hasher, logger logging.Logger) error {
	created := 0

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := m.Users(tx)
		for _, d := range demoUsers {
			exists, err := users.EmailExists(ctx, d.email)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			hash, err := hasher.HashPassword(d.password)
			if err != nil {
				return err
			}
			_, err = users.Create(ctx, &models.User{
				Username:     d.username,
				Email:        d.email,
				PasswordHash: hash,
				Role:         d.role,
				CreatedAt:    time.Now(),
			})
			if err != nil {
				return err
			}
			created++
		}

		notes := m.Notes(tx)
		n, err := notes.Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			_, err = notes.Create(ctx, &models.Note{
				Title:     welcomeNote,
				Content:   welcomeNote,
				CreatedBy: common.RoleAdmin,
				CreatedAt: time.Now(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}

	logger.Info(ctx, "demo data seeded", "new_users", created)
	return nil
}
