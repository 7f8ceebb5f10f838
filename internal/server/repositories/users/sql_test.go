package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "username", "email", "password", "role", "failed_attempts", "locked_until", "last_login", "created_at"}

func newRepoWithMock(t *testing.T, d dbx.Dialect) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db, d), mock
}

func TestCreate_Success_Postgres(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password,\s*role,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id\s*$`
	mock.ExpectQuery(q).
		WithArgs("bob", "bob@x.io", "hash", "user", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	u := &models.User{Username: "bob", Email: "bob@x.io", PasswordHash: "hash", Role: "user"}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_SQLiteKeepsQuestionMarks(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.SQLite)

	q := `(?s)^INSERT\s+INTO\s+users.*VALUES\s*\(\?,\s*\?,\s*\?,\s*\?,\s*\?\)`
	mock.ExpectQuery(q).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	_, err := repo.Create(context.Background(), &models.User{Username: "bob", Email: "bob@x.io", Role: "user"})
	require.NoError(t, err)
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{Username: "bob", Email: "bob@x.io"})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Username: "bob"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	locked := created.Add(5 * time.Minute)

	q := `(?s)^SELECT\s+id,\s*username,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`
	mock.ExpectQuery(q).
		WithArgs("bob@x.io").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(7), "bob", "bob@x.io", "hash", "user", 3, locked, nil, created))

	got, err := repo.GetByEmail(context.Background(), "bob@x.io")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, 3, got.FailedAttempts)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, got.LockedUntil.Equal(locked))
	assert.Nil(t, got.LastLogin)
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).
		WithArgs("ghost@x.io").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@x.io")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByUsername_OldestFirst(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	q := `(?s)FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+ORDER\s+BY\s+id\s+LIMIT\s+1$`
	mock.ExpectQuery(q).
		WithArgs("Tom").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(2), "Tom", "tom@me.com", "hash", "user", 0, nil, nil, time.Now()))

	got, err := repo.GetByUsername(context.Background(), "Tom")
	require.NoError(t, err)
	assert.Equal(t, "tom@me.com", got.Email)
}

func TestEmailExists(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("bob@x.io").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.EmailExists(context.Background(), "bob@x.io")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordFailure_SingleStatement(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	until := time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC)
	q := `(?s)^UPDATE\s+users\s+SET\s+failed_attempts\s*=\s*failed_attempts\s*\+\s*1,\s*locked_until\s*=\s*CASE\s+WHEN\s+failed_attempts\s*\+\s*1\s*>=\s*\$1\s+THEN\s+\$2\s+ELSE\s+locked_until\s+END\s+WHERE\s+id\s*=\s*\$3\s+RETURNING\s+failed_attempts\s*$`
	mock.ExpectQuery(q).
		WithArgs(3, until, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}).AddRow(3))

	n, err := repo.RecordFailure(context.Background(), 7, 3, until)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailure_UnknownUser(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.RecordFailure(context.Background(), 99, 3, time.Now())
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestClearLockout(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+failed_attempts\s*=\s*0,\s*locked_until\s*=\s*NULL\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearLockout(context.Background(), 7))
}

func TestRecordLogin(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+failed_attempts\s*=\s*0,\s*locked_until\s*=\s*NULL,\s*last_login\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2$`).
		WithArgs(at, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordLogin(context.Background(), 7, at))
}

func TestUpdatePassword_NoRows(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+password\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2$`).
		WithArgs("newhash", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), 7, "newhash")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdatePassword_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres)

	mock.ExpectExec(`UPDATE\s+users`).WillReturnError(errors.New("db err"))

	err := repo.UpdatePassword(context.Background(), 7, "newhash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db err")
}
