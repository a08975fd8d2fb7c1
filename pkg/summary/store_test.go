package summary

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestAggregateMetrics_RunsSixCountsInOrder(t *testing.T) {
	store, mock := newTestStore(t)
	windowStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM cases WHERE created_at").
		WithArgs(windowStart, windowEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM case_events").
		WithArgs(windowStart, windowEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM cases\\s+WHERE doctor_decided_at").
		WithArgs(windowStart, windowEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM cases\\s+WHERE appointment_status = \\$3 AND appointment_decided_at IS NOT NULL").
		WithArgs(windowStart, windowEnd, "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM cases\\s+WHERE doctor_decision = \\$3").
		WithArgs(windowStart, windowEnd, "deny").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM cases\\s+WHERE appointment_status = \\$3 AND appointment_decided_at IS NOT NULL").
		WithArgs(windowStart, windowEnd, "denied").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	metrics, err := store.AggregateMetrics(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 10, metrics.PatientsReceived)
	assert.Equal(t, 7, metrics.ReportsProcessed)
	assert.Equal(t, 5, metrics.CasesEvaluated)
	assert.Equal(t, 3, metrics.Accepted)
	assert.Equal(t, 2, metrics.Refused)
	assert.NoError(t, mock.ExpectationsWereMet())
}
