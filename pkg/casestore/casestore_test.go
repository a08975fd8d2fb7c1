package casestore

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
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewStore(sqlxDB), mock
}

func TestCreate_Success(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO cases").WillReturnResult(sqlmock.NewResult(1, 1))

	c, err := store.Create(context.Background(), "case-1", "!r1:example.org", "$evt1", "@sender:example.org", "mxc://example.org/abc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusR1AckProcessing, c.Status)
}

func TestCreate_DuplicateOriginEvent(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO cases").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	_, err := store.Create(context.Background(), "case-1", "!r1:example.org", "$evt1", "@sender:example.org", "mxc://example.org/abc")
	assert.ErrorIs(t, err, ErrDuplicateOriginEvent)
}

func caseRow(status models.CaseStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"case_id", "status", "room1_origin_room_id", "room1_origin_event_id", "room1_sender_user_id",
		"pdf_source_uri", "extracted_text", "agency_record_number", "structured_data", "suggested_action",
		"doctor_decision", "doctor_support_flag", "doctor_reason", "doctor_decided_at",
		"appointment_status", "appointment_at", "appointment_location", "appointment_instructions",
		"appointment_reason", "appointment_decided_at", "room1_final_reply_event_id", "created_at", "updated_at",
	}).AddRow(
		"case-1", status, "!r1:example.org", "$evt1", "@sender:example.org",
		"mxc://example.org/abc", nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil, time.Now().UTC(), time.Now().UTC(),
	)
}

func TestStorePDFExtraction_ValidTransition(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT \\* FROM cases").WillReturnRows(caseRow(models.StatusR1AckProcessing))
	mock.ExpectExec("UPDATE cases SET extracted_text").WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.StorePDFExtraction(context.Background(), "case-1", "clean text", "12345")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePDFExtraction_InvalidTransitionRejected(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT \\* FROM cases").WillReturnRows(caseRow(models.StatusCleaned))

	err := store.StorePDFExtraction(context.Background(), "case-1", "clean text", "12345")
	assert.Error(t, err)
}

func TestRecordDoctorDecision_Deny(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT \\* FROM cases").WillReturnRows(caseRow(models.StatusWaitDoctor))
	mock.ExpectExec("UPDATE cases SET doctor_decision").WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.RecordDoctorDecision(context.Background(), "case-1", models.DoctorDecisionDeny, models.SupportNone, "insufficient exam data")
	require.NoError(t, err)
}

func TestPriorCasesForSender_NoPriorCases(t *testing.T) {
	store, mock := newTestStore(t)
	rows := sqlmock.NewRows([]string{
		"case_id", "status", "room1_origin_room_id", "room1_origin_event_id", "room1_sender_user_id",
		"pdf_source_uri", "extracted_text", "agency_record_number", "structured_data", "suggested_action",
		"doctor_decision", "doctor_support_flag", "doctor_reason", "doctor_decided_at",
		"appointment_status", "appointment_at", "appointment_location", "appointment_instructions",
		"appointment_reason", "appointment_decided_at", "room1_final_reply_event_id", "created_at", "updated_at",
	})
	mock.ExpectQuery("SELECT \\* FROM cases").WillReturnRows(rows)

	ctx, err := store.PriorCasesForSender(context.Background(), "case-2", "12345", time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, ctx.PriorCase)
	assert.Nil(t, ctx.PriorDenialCount7d)
}

func TestPriorCasesForSender_MostRecentDenialWins(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now().UTC()
	older := now.Add(-2 * time.Hour)
	denyReason := "insufficient exam data"

	rows := sqlmock.NewRows([]string{
		"case_id", "status", "room1_origin_room_id", "room1_origin_event_id", "room1_sender_user_id",
		"pdf_source_uri", "extracted_text", "agency_record_number", "structured_data", "suggested_action",
		"doctor_decision", "doctor_support_flag", "doctor_reason", "doctor_decided_at",
		"appointment_status", "appointment_at", "appointment_location", "appointment_instructions",
		"appointment_reason", "appointment_decided_at", "room1_final_reply_event_id", "created_at", "updated_at",
	}).AddRow(
		"case-older", models.StatusCleaned, "!r1:example.org", "$evt-older", "@sender:example.org",
		"mxc://example.org/a", nil, "12345", nil, nil,
		"accept", nil, nil, older,
		nil, nil, nil, nil,
		nil, nil, nil, older, older,
	).AddRow(
		"case-newer", models.StatusCleaned, "!r1:example.org", "$evt-newer", "@sender:example.org",
		"mxc://example.org/b", nil, "12345", nil, nil,
		"deny", nil, denyReason, now,
		nil, nil, nil, nil,
		nil, nil, nil, now, now,
	)
	mock.ExpectQuery("SELECT \\* FROM cases").WillReturnRows(rows)

	result, err := store.PriorCasesForSender(context.Background(), "case-current", "12345", now)
	require.NoError(t, err)
	require.NotNil(t, result.PriorCase)
	assert.Equal(t, "case-newer", result.PriorCase.PriorCaseID)
	assert.Equal(t, "deny_triage", result.PriorCase.Decision)
	require.NotNil(t, result.PriorDenialCount7d)
	assert.Equal(t, 1, *result.PriorDenialCount7d)
}
