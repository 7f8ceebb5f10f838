// Package notes stores notes. Ownership is decided above this layer; the
// repository only filters by owner when asked to.
package notes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/server/models"
)

type Repository interface {
	// List returns notes newest first. An empty owner lists every note.
	List(ctx context.Context, owner string) ([]models.Note, error)
	// Search matches query as a literal substring of title or content,
	// ignoring case. An empty owner searches every note.
	Search(ctx context.Context, owner, query string) ([]models.Note, error)
	Get(ctx context.Context, id int64) (*models.Note, error)
	Create(ctx context.Context, note *models.Note) (*models.Note, error)
	Update(ctx context.Context, id int64, title, content string, at time.Time) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	Count(ctx context.Context) (int64, error)
}
