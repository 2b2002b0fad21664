package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-auth-service/internal/model"
)

var userRowColumns = []string{"id", "email", "password_hash", "external_id", "display_name", "role", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T, d Dialect) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepo(db, d), mock
}

func strPtr(s string) *string { return &s }

func TestCreate_MySQL_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t, DialectMySQL)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, email, password_hash, display_name, external_id, role) VALUES (?,?,?,?,?,?)")).
		WithArgs(sqlmock.AnyArg(), "a@x.com", "hash", "A", nil, "user").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id=? LIMIT 1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "a@x.com", "hash", nil, "A", "user", ts, ts))

	got, err := repo.Create(context.Background(), model.NewUser{
		Email:        "  A@X.com ",
		PasswordHash: "hash",
		DisplayName:  strPtr("A"),
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Nil(t, got.ExternalID)
	require.NotNil(t, got.DisplayName)
	assert.Equal(t, "A", *got.DisplayName)
	require.NotNil(t, got.CreatedAt)
	assert.Equal(t, ts, *got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Postgres_UsesNumberedPlaceholders(t *testing.T) {
	repo, mock := newRepoWithMock(t, DialectPostgres)
	ts := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, email, password_hash, display_name, external_id, role) VALUES ($1,$2,$3,$4,$5,$6)")).
		WithArgs(sqlmock.AnyArg(), "b@x.com", "hash", nil, "tg-7", "user").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id=$1 LIMIT 1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("0d3c9f66-3f1d-4a57-9d0f-6f7a3d1c2b10", "b@x.com", "hash", "tg-7", nil, "user", ts, ts))

	got, err := repo.Create(context.Background(), model.NewUser{Email: "b@x.com", PasswordHash: "hash", ExternalID: strPtr("tg-7")})
	require.NoError(t, err)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "tg-7", *got.ExternalID)
	assert.Nil(t, got.DisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	cases := map[string]struct {
		dialect Dialect
		err     error
	}{
		"mysql 1062":     {DialectMySQL, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@x.com' for key 'users.email'"}},
		"postgres 23505": {DialectPostgres, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t, tc.dialect)
			mock.ExpectExec("INSERT INTO users").WillReturnError(tc.err)

			_, err := repo.Create(context.Background(), model.NewUser{Email: "a@x.com", PasswordHash: "hash"})
			assert.ErrorIs(t, err, ErrDuplicateIdentity)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t, DialectMySQL)
	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), model.NewUser{Email: "a@x.com", PasswordHash: "hash"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateIdentity)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestFindByEmail_NormalizesAndScans(t *testing.T) {
	repo, mock := newRepoWithMock(t, DialectMySQL)
	ts := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE email=? LIMIT 1")).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "a@x.com", "hash", "tg-1", nil, "user", ts, nil))

	got, err := repo.FindByEmail(context.Background(), "A@x.COM")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.NotNil(t, got.CreatedAt)
	assert.Nil(t, got.UpdatedAt)
}

func TestFind_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t, DialectMySQL)

	mock.ExpectQuery("WHERE email=").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("WHERE id=").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("WHERE external_id=").WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	_, err := repo.FindByEmail(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByExternalID(ctx, "tg-404")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_PostgresRejectsNonUUIDWithoutQuery(t *testing.T) {
	repo, mock := newRepoWithMock(t, DialectPostgres)

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByExternalID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t, DialectMySQL)
	mock.ExpectQuery("WHERE external_id=").WithArgs("tg-1").WillReturnError(errors.New("conn reset"))

	_, err := repo.FindByExternalID(context.Background(), "tg-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Regexp(t, `db error: .*conn reset`, err.Error())
}

func TestRebind(t *testing.T) {
	pg := &UserRepo{Dialect: DialectPostgres}
	my := &UserRepo{Dialect: DialectMySQL}

	assert.Equal(t, "a=$1 AND b=$2", pg.rebind("a=? AND b=?"))
	assert.Equal(t, "a=? AND b=?", my.rebind("a=? AND b=?"))
}
