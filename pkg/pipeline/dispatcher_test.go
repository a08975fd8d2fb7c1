package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/casestore"
	"github.com/carlosapgomes/triage-automation/pkg/checkpoint"
	"github.com/carlosapgomes/triage-automation/pkg/config"
	"github.com/carlosapgomes/triage-automation/pkg/intake"
	"github.com/carlosapgomes/triage-automation/pkg/journal"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// newTestDispatcher wires a Dispatcher over independent sqlmock-backed
// stores so each dependency's expectations can be set per test.
func newTestDispatcher(t *testing.T) (*Dispatcher, map[string]sqlmock.Sqlmock) {
	t.Helper()
	mocks := map[string]sqlmock.Sqlmock{}

	newDB := func(name string) *sqlx.DB {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		mocks[name] = mock
		return sqlx.NewDb(db, "postgres")
	}

	casesStore := casestore.NewStore(newDB("cases"))
	journalStore := journal.NewStore(newDB("journal"))
	queueStore := queue.NewStore(newDB("queue"), config.DefaultQueueConfig())
	checkpointStore := checkpoint.NewStore(newDB("checkpoint"))

	intakeSvc := intake.NewService(casesStore, journalStore, queueStore, nil)

	d := NewDispatcher(casesStore, journalStore, queueStore, checkpointStore, nil, nil, nil, nil, intakeSvc, Rooms{
		Room2ID: "!r2:example.org", Room3ID: "!r3:example.org",
	})
	return d, mocks
}

func TestHandle_MissingCaseIDIsFatal(t *testing.T) {
	d, _ := newTestDispatcher(t)
	job := &models.Job{ID: 1, JobType: JobRunLLM1}

	err := d.Handle(context.Background(), job)

	require.Error(t, err)
	herr, ok := err.(*queue.HandlerError)
	require.True(t, ok)
	assert.Equal(t, "fatal", herr.Cause)
}

func TestHandle_UnknownJobTypeIsFatal(t *testing.T) {
	d, _ := newTestDispatcher(t)
	caseID := "case-1"
	job := &models.Job{ID: 1, CaseID: &caseID, JobType: "not_a_real_job_type"}

	err := d.Handle(context.Background(), job)

	require.Error(t, err)
	herr, ok := err.(*queue.HandlerError)
	require.True(t, ok)
	assert.Equal(t, "fatal", herr.Cause)
}

func caseRowForDispatcherTest(caseID string, status models.CaseStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"case_id", "status", "room1_origin_room_id", "room1_origin_event_id", "room1_sender_user_id",
		"pdf_source_uri", "extracted_text", "agency_record_number", "structured_data", "suggested_action",
		"doctor_decision", "doctor_support_flag", "doctor_reason", "doctor_decided_at",
		"appointment_status", "appointment_at", "appointment_location", "appointment_instructions",
		"appointment_reason", "appointment_decided_at", "room1_final_reply_event_id", "created_at", "updated_at",
	}).AddRow(
		caseID, status, "!r1:example.org", "$evt1", "@sender:example.org",
		"mxc://example.org/abc", nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil, time.Now().UTC(), time.Now().UTC(),
	)
}

func TestOnJobFailed_TransitionsEventsAndEnqueuesFinalReply(t *testing.T) {
	d, mocks := newTestDispatcher(t)
	caseID := "case-1"

	mocks["cases"].ExpectQuery("SELECT \\* FROM cases").
		WithArgs(caseID).
		WillReturnRows(caseRowForDispatcherTest(caseID, models.StatusExtracting))
	mocks["cases"].ExpectExec("UPDATE cases SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mocks["journal"].ExpectExec("INSERT INTO case_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mocks["queue"].ExpectQuery("INSERT INTO jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	job := &models.Job{ID: 1, CaseID: &caseID, JobType: JobProcessPDFCase}
	herr := &queue.HandlerError{Cause: "extract", Details: "bad pdf", Err: assertError("boom")}

	d.OnJobFailed(context.Background(), job, herr)

	for name, mock := range mocks {
		assert.NoError(t, mock.ExpectationsWereMet(), "unmet expectations for %s", name)
	}
}

type assertError string

func (e assertError) Error() string { return string(e) }
