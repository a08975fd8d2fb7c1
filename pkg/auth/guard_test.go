package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

func TestExtractBearerToken(t *testing.T) {
	tok, err := ExtractBearerToken("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)

	_, err = ExtractBearerToken("")
	assert.IsType(t, &MissingAuthTokenError{}, err)

	_, err = ExtractBearerToken("   ")
	assert.IsType(t, &MissingAuthTokenError{}, err)

	_, err = ExtractBearerToken("abc123")
	assert.IsType(t, &InvalidAuthTokenError{}, err)

	_, err = ExtractBearerToken("Basic abc123")
	assert.IsType(t, &InvalidAuthTokenError{}, err)
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, RequireAdmin(models.RoleAdmin))
	assert.Error(t, RequireAdmin(models.RoleReader))
}

func TestRequireAuditRead(t *testing.T) {
	assert.NoError(t, RequireAuditRead(models.RoleAdmin))
	assert.NoError(t, RequireAuditRead(models.RoleReader))
	assert.Error(t, RequireAuditRead(models.Role("unknown")))
}

func TestGuard_RequireAdminUser_Success(t *testing.T) {
	store, mock := newTestStore(t)
	tokens := NewTokenService()
	g := NewGuard(store, tokens)
	tokenHash := tokens.HashToken("valid-token")

	mock.ExpectQuery("SELECT \\* FROM auth_tokens").
		WillReturnRows(sqlmock.NewRows([]string{
			"token_hash", "user_id", "issued_at", "expires_at", "revoked_at", "last_used_at",
		}).AddRow(tokenHash, "admin-1", time.Now().UTC(), time.Now().UTC().Add(time.Hour), nil, nil))
	mock.ExpectQuery("SELECT \\* FROM users WHERE user_id").
		WithArgs("admin-1").
		WillReturnRows(userRow("admin-1", models.RoleAdmin, models.AccountActive))

	user, err := g.RequireAdminUser(context.Background(), "Bearer valid-token")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", user.UserID)
}

func TestGuard_RequireAdminUser_WrongRole(t *testing.T) {
	store, mock := newTestStore(t)
	tokens := NewTokenService()
	g := NewGuard(store, tokens)
	tokenHash := tokens.HashToken("valid-token")

	mock.ExpectQuery("SELECT \\* FROM auth_tokens").
		WillReturnRows(sqlmock.NewRows([]string{
			"token_hash", "user_id", "issued_at", "expires_at", "revoked_at", "last_used_at",
		}).AddRow(tokenHash, "reader-1", time.Now().UTC(), time.Now().UTC().Add(time.Hour), nil, nil))
	mock.ExpectQuery("SELECT \\* FROM users WHERE user_id").
		WithArgs("reader-1").
		WillReturnRows(userRow("reader-1", models.RoleReader, models.AccountActive))

	_, err := g.RequireAdminUser(context.Background(), "Bearer valid-token")
	assert.IsType(t, &RoleNotAuthorizedError{}, err)
}

func TestGuard_RequireAdminUser_NoMatchingToken(t *testing.T) {
	store, mock := newTestStore(t)
	tokens := NewTokenService()
	g := NewGuard(store, tokens)

	mock.ExpectQuery("SELECT \\* FROM auth_tokens").
		WillReturnRows(sqlmock.NewRows([]string{"token_hash"}))

	_, err := g.RequireAdminUser(context.Background(), "Bearer unknown-token")
	assert.IsType(t, &InvalidAuthTokenError{}, err)
}

func TestGuard_RequireAdminUser_InactiveUserIsInvalid(t *testing.T) {
	store, mock := newTestStore(t)
	tokens := NewTokenService()
	g := NewGuard(store, tokens)
	tokenHash := tokens.HashToken("valid-token")

	mock.ExpectQuery("SELECT \\* FROM auth_tokens").
		WillReturnRows(sqlmock.NewRows([]string{
			"token_hash", "user_id", "issued_at", "expires_at", "revoked_at", "last_used_at",
		}).AddRow(tokenHash, "blocked-1", time.Now().UTC(), time.Now().UTC().Add(time.Hour), nil, nil))
	mock.ExpectQuery("SELECT \\* FROM users WHERE user_id").
		WithArgs("blocked-1").
		WillReturnRows(userRow("blocked-1", models.RoleAdmin, models.AccountBlocked))

	_, err := g.RequireAdminUser(context.Background(), "Bearer valid-token")
	assert.IsType(t, &InvalidAuthTokenError{}, err)
}
