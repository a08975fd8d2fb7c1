package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	_, err := store.CreateUser(context.Background(), "doc@example.org", "hash", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT \\* FROM users WHERE email").
		WithArgs("nobody@example.org").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := store.GetUserByEmail(context.Background(), "nobody@example.org")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func userRow(userID string, role models.Role, status models.AccountStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "email", "password_hash", "role", "account_status", "created_at", "updated_at",
	}).AddRow(userID, "doc@example.org", "$2a$hash", role, status, time.Now().UTC(), time.Now().UTC())
}

func TestGetUserByID_Found(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT \\* FROM users WHERE user_id").
		WithArgs("user-1").
		WillReturnRows(userRow("user-1", models.RoleReader, models.AccountActive))

	u, err := store.GetUserByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleReader, u.Role)
	assert.Equal(t, models.AccountActive, u.AccountStatus)
}

func TestSetAccountStatus_NotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("UPDATE users SET account_status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetAccountStatus(context.Background(), "missing-user", models.AccountBlocked)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCountActiveAdmins(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM users WHERE role").
		WithArgs(models.RoleAdmin, models.AccountActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.CountActiveAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetActiveTokenByHash_ExpiredOrMissingReturnsNilNoError(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT \\* FROM auth_tokens").
		WillReturnRows(sqlmock.NewRows([]string{"token_hash"}))

	rec, err := store.GetActiveTokenByHash(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRevokeActiveTokensForUser(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("UPDATE auth_tokens SET revoked_at").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.RevokeActiveTokensForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
