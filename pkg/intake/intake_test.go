package intake

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/casestore"
	"github.com/carlosapgomes/triage-automation/pkg/config"
	"github.com/carlosapgomes/triage-automation/pkg/journal"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

type fakeChatPoster struct {
	postedEventID string
	err           error
}

func (f *fakeChatPoster) ReplyText(ctx context.Context, roomID, targetEventID, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.postedEventID, nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeChatPoster) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sqlxDB := sqlx.NewDb(db, "postgres")

	cases := casestore.NewStore(sqlxDB)
	j := journal.NewStore(sqlxDB)
	q := queue.NewStore(sqlxDB, config.DefaultQueueConfig())
	chat := &fakeChatPoster{postedEventID: "$ack1"}
	return NewService(cases, j, q, chat), mock, chat
}

func TestIngest_HappyPath(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectExec("INSERT INTO cases").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO case_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO case_messages").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO case_messages").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO case_events").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectQuery("INSERT INTO jobs").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	result, err := svc.Ingest(context.Background(), ParsedRoom1PDFIntakeEvent{
		RoomID: "!r1:example.org", EventID: "$evt1", SenderUserID: "@sender:example.org",
		PDFURI: "mxc://example.org/abc", Filename: "exam.pdf", Mimetype: "application/pdf",
	})
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.NotEmpty(t, result.CaseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_DuplicateOriginEventReportsNoSideEffects(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectExec("INSERT INTO cases").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	result, err := svc.Ingest(context.Background(), ParsedRoom1PDFIntakeEvent{
		RoomID: "!r1:example.org", EventID: "$evt1", SenderUserID: "@sender:example.org",
		PDFURI: "mxc://example.org/abc",
	})
	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, reasonDuplicateOriginEvent, result.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}
