package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/auth"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/monitoring"
)

func newMonitoringTestServer(t *testing.T) (*Server, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()
	authDB, authMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = authDB.Close() })
	monDB, monMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = monDB.Close() })

	store := auth.NewStore(sqlx.NewDb(authDB, "postgres"))
	tokens := auth.NewTokenService()
	guard := auth.NewGuard(store, tokens)
	monSvc := monitoring.NewService(monitoring.NewStore(sqlx.NewDb(monDB, "postgres")))
	s := NewServer(nil, guard, nil, tokens, monSvc, nil)
	return s, authMock, monMock
}

func expectAuditUser(mock sqlmock.Sqlmock, tokenHash, userID string, role models.Role) {
	mock.ExpectQuery("SELECT \\* FROM auth_tokens").
		WithArgs(tokenHash).
		WillReturnRows(sqlmock.NewRows([]string{"token_hash", "user_id", "issued_at", "expires_at"}).
			AddRow(tokenHash, userID, time.Now().UTC(), time.Now().UTC().Add(time.Hour)))
	mock.ExpectQuery("SELECT \\* FROM users WHERE user_id").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "email", "password_hash", "role", "account_status", "created_at", "updated_at",
		}).AddRow(userID, "reader@example.org", "$2a$hash", role, models.AccountActive, time.Now().UTC(), time.Now().UTC()))
}

func TestHandleListCases_RequiresAuth(t *testing.T) {
	s, _, _ := newMonitoringTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/monitoring/cases", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleListCases_ReturnsPageForAuditUser(t *testing.T) {
	s, authMock, monMock := newMonitoringTestServer(t)
	tokens := auth.NewTokenService()
	tokenHash := tokens.HashToken("tok-123")
	expectAuditUser(authMock, tokenHash, "user-1", models.RoleReader)

	monMock.ExpectQuery("SELECT count\\(\\*\\) FROM").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	monMock.ExpectQuery("SELECT \\* FROM \\(").
		WillReturnRows(sqlmock.NewRows([]string{"case_id", "status", "latest_activity_at"}))

	req := httptest.NewRequest(http.MethodGet, "/monitoring/cases", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleGetCaseDetail_NotFoundReturns404(t *testing.T) {
	s, authMock, monMock := newMonitoringTestServer(t)
	tokens := auth.NewTokenService()
	tokenHash := tokens.HashToken("tok-123")
	expectAuditUser(authMock, tokenHash, "user-1", models.RoleAdmin)

	monMock.ExpectQuery("SELECT status FROM cases").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	req := httptest.NewRequest(http.MethodGet, "/monitoring/cases/missing-case", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
