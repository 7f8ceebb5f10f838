package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
)

const noteColumns = `id, title, content, created_by, created_at, updated_at`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) q(query string) string {
	return dbx.Rebind(r.dialect, query)
}

func (r *SQLRepository) List(ctx context.Context, owner string) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes`
	var args []any
	if owner != "" {
		query += ` WHERE created_by = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query, args...)
}

func (r *SQLRepository) Search(ctx context.Context, owner, query string) ([]models.Note, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	sqlText := `SELECT ` + noteColumns + ` FROM notes
		 WHERE (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern}
	if owner != "" {
		sqlText += ` AND created_by = ?`
		args = append(args, owner)
	}
	sqlText += ` ORDER BY created_at DESC, id DESC`
	return r.query(ctx, sqlText, args...)
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) ([]models.Note, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Note, 0)
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`

	n := &models.Note{}
	err := r.db.QueryRowContext(ctx, r.q(query), id).
		Scan(&n.ID, &n.Title, &n.Content, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *SQLRepository) Create(ctx context.Context, note *models.Note) (*models.Note, error) {

	query :=
		`INSERT INTO notes (title, content, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id
		 `

	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	note.CreatedAt = note.CreatedAt.UTC()
	note.UpdatedAt = note.CreatedAt

	err := r.db.QueryRowContext(ctx, r.q(query),
		note.Title, note.Content, note.CreatedBy, note.CreatedAt, note.UpdatedAt).Scan(&note.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return note, nil
}

// Update rewrites title and content. The owner column is never touched.
func (r *SQLRepository) Update(ctx context.Context, id int64, title, content string, at time.Time) (int64, error) {
	query := `UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, title, content, at.UTC(), id)
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) (int64, error) {
	return r.exec(ctx, `DELETE FROM notes WHERE id = ?`, id)
}

func (r *SQLRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
