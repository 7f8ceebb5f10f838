package auth

import (
	"context"

	"github.com/dmitrijs2005/notekeeper/internal/server/models"
)

type ctxKey struct{}

// WithUser attaches the resolved user to ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.User)
	return u, ok && u != nil
}
