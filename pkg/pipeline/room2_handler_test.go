package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

const doctorTestCaseID = "11111111-1111-1111-1111-111111111111"

func TestHandlePostRoom2Widget_PostsThreeMessagesAndAdvancesStatus(t *testing.T) {
	d, mocks := newTestDispatcher(t)
	chat := &fakeChatClient{}
	d.chat = chat
	caseID := doctorTestCaseID

	mocks["cases"].ExpectQuery("SELECT \\* FROM cases").
		WithArgs(caseID).
		WillReturnRows(caseRowWithStructuredData(caseID, models.StatusLLMSuggest))
	mocks["journal"].ExpectExec("INSERT INTO case_messages").WillReturnResult(sqlmock.NewResult(1, 1))
	mocks["checkpoint"].ExpectExec("INSERT INTO reaction_checkpoints").WillReturnResult(sqlmock.NewResult(1, 1))
	mocks["cases"].ExpectQuery("SELECT \\* FROM cases").
		WithArgs(caseID).
		WillReturnRows(caseRowForDispatcherTest(caseID, models.StatusLLMSuggest))
	mocks["cases"].ExpectExec("UPDATE cases SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mocks["cases"].ExpectQuery("SELECT \\* FROM cases").
		WithArgs(caseID).
		WillReturnRows(caseRowForDispatcherTest(caseID, models.StatusR2PostWidget))
	mocks["cases"].ExpectExec("UPDATE cases SET status").WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.handlePostRoom2Widget(context.Background(), caseID)

	require.NoError(t, err)
}

func TestHandleDoctorDecisionReply_DenyRecordsAndEnqueuesTriageFinal(t *testing.T) {
	d, mocks := newTestDispatcher(t)
	chat := &fakeChatClient{}
	d.chat = chat
	caseID := doctorTestCaseID

	mocks["checkpoint"].ExpectQuery("SELECT case_id FROM reaction_checkpoints").
		WithArgs("!r2:example.org", "$evt-target").
		WillReturnRows(sqlmock.NewRows([]string{"case_id"}).AddRow(caseID))
	mocks["cases"].ExpectQuery("SELECT \\* FROM cases").
		WithArgs(caseID).
		WillReturnRows(caseRowForDispatcherTest(caseID, models.StatusWaitDoctor))
	mocks["cases"].ExpectExec("UPDATE cases SET doctor_decision").WillReturnResult(sqlmock.NewResult(0, 1))
	mocks["journal"].ExpectExec("INSERT INTO case_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mocks["queue"].ExpectQuery("INSERT INTO jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	body := "decision: deny\nsupport_flag: none\nreason: laudo incompleto\ncase_id: " + caseID

	err := d.HandleDoctorDecisionReply(context.Background(), "!r2:example.org", "$evt-reply", "$evt-target", "@doctor:example.org", body)

	require.NoError(t, err)
	for name, mock := range mocks {
		assert.NoError(t, mock.ExpectationsWereMet(), "unmet expectations for %s", name)
	}
}

func TestHandleDoctorDecisionReply_ParseFailurePostsErrorReply(t *testing.T) {
	d, mocks := newTestDispatcher(t)
	chat := &fakeChatClient{}
	d.chat = chat
	caseID := doctorTestCaseID

	mocks["checkpoint"].ExpectQuery("SELECT case_id FROM reaction_checkpoints").
		WithArgs("!r2:example.org", "$evt-target").
		WillReturnRows(sqlmock.NewRows([]string{"case_id"}).AddRow(caseID))

	err := d.HandleDoctorDecisionReply(context.Background(), "!r2:example.org", "$evt-reply", "$evt-target", "@doctor:example.org", "not a valid reply")

	require.NoError(t, err)
	assert.Empty(t, chat.redacted) // no redaction happened
	require.Len(t, chat.replies, 1)
	assert.Contains(t, chat.replies[0], "could not parse decision")
}

func caseRowWithStructuredData(caseID string, status models.CaseStatus) *sqlmock.Rows {
	recordNumber := "12345"
	return sqlmock.NewRows([]string{
		"case_id", "status", "room1_origin_room_id", "room1_origin_event_id", "room1_sender_user_id",
		"pdf_source_uri", "extracted_text", "agency_record_number", "structured_data", "suggested_action",
		"doctor_decision", "doctor_support_flag", "doctor_reason", "doctor_decided_at",
		"appointment_status", "appointment_at", "appointment_location", "appointment_instructions",
		"appointment_reason", "appointment_decided_at", "room1_final_reply_event_id", "created_at", "updated_at",
	}).AddRow(
		caseID, status, "!r1:example.org", "$evt1", "@sender:example.org",
		"mxc://example.org/abc", nil, &recordNumber,
		[]byte(`{"summary":{"one_liner":"paciente estavel"}}`),
		[]byte(`{"decision":"accept","support_flag":"none","reason":"policy_precheck_clear"}`),
		nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil, time.Now().UTC(), time.Now().UTC(),
	)
}
