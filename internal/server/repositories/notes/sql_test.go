package notes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var noteCols = []string{"id", "title", "content", "created_by", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db, dbx.Postgres), mock
}

func TestList_AllNotes(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*title,\s*content,\s*created_by,\s*created_at,\s*updated_at\s+FROM\s+notes\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC$`).
		WillReturnRows(sqlmock.NewRows(noteCols).
			AddRow(int64(2), "b", "B", "Tom", now, now).
			AddRow(int64(1), "a", "A", "admin", now, now))

	got, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestList_OwnerFilter(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+notes\s+WHERE\s+created_by\s*=\s*\$1\s+ORDER\s+BY`).
		WithArgs("Tom").
		WillReturnRows(sqlmock.NewRows(noteCols))

	got, err := repo.List(context.Background(), "Tom")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestList_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+notes`).WillReturnError(errors.New("boom"))

	_, err := repo.List(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: boom")
}

func TestSearch_EscapesAndScopes(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)WHERE\s+\(LOWER\(title\)\s+LIKE\s+\$1\s+ESCAPE\s+'\\'\s+OR\s+LOWER\(content\)\s+LIKE\s+\$2\s+ESCAPE\s+'\\'\)\s+AND\s+created_by\s*=\s*\$3`
	mock.ExpectQuery(q).
		WithArgs(`%50\%%`, `%50\%%`, "Tom").
		WillReturnRows(sqlmock.NewRows(noteCols))

	_, err := repo.Search(context.Background(), "Tom", "50%")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+notes\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 9)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreate_ReturnsID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+notes\s*\(title,\s*content,\s*created_by,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id\s*$`).
		WithArgs("t", "c", "Tom", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	n, err := repo.Create(context.Background(), &models.Note{Title: "t", Content: "c", CreatedBy: "Tom"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.ID)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)
}

func TestUpdate_LeavesOwnerAlone(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`^UPDATE\s+notes\s+SET\s+title\s*=\s*\$1,\s*content\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$4$`).
		WithArgs("t2", "c2", at, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Update(context.Background(), 5, "t2", "c2", at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDelete_Counts(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^DELETE\s+FROM\s+notes\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.Delete(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCount(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)\s+FROM\s+notes`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSQLite_RoundTrip(t *testing.T) {
	db, err := sql.Open("sqlite", "file:notes_repo_test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL)`)
	require.NoError(t, err)

	repo := NewSQLRepository(db, dbx.SQLite)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err = repo.Create(ctx, &models.Note{Title: "Groceries", Content: "milk 100% fresh", CreatedBy: "Tom", CreatedAt: base})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Note{Title: "Plans", Content: "cheese", CreatedBy: "Jerry", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Note{Title: "more", Content: "100 items", CreatedBy: "Tom", CreatedAt: base.Add(2 * time.Minute)})
	require.NoError(t, err)

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "more", all[0].Title)
	assert.Equal(t, "Groceries", all[2].Title)
	assert.True(t, all[2].CreatedAt.Equal(base))

	toms, err := repo.List(ctx, "Tom")
	require.NoError(t, err)
	assert.Len(t, toms, 2)

	hits, err := repo.Search(ctx, "Tom", "100%")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Groceries", hits[0].Title)

	hits, err = repo.Search(ctx, "", "GROC")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
