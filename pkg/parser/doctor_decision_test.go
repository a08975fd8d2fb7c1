package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doctorTestCaseID = "3fa85f64-5717-4562-b3fc-2c963f66afa6"

func TestParseDoctorDecisionReply_AcceptHappyPath(t *testing.T) {
	body := "decision: accept\nsupport_flag: none\ncase_id: " + doctorTestCaseID
	reply, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	require.NoError(t, err)
	assert.Equal(t, "accept", reply.Decision)
	assert.Equal(t, "none", reply.SupportFlag)
	assert.Nil(t, reply.Reason)
}

func TestParseDoctorDecisionReply_PortugueseAliasesAndDiacritics(t *testing.T) {
	body := "Decisão: Aceito\nSuporte: Nenhum\nCaso: " + doctorTestCaseID
	reply, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	require.NoError(t, err)
	assert.Equal(t, "accept", reply.Decision)
	assert.Equal(t, "none", reply.SupportFlag)
}

func TestParseDoctorDecisionReply_DenyWithReason(t *testing.T) {
	body := "decision: negar\nsupport_flag: nenhum\nreason: missing labs\ncase_id: " + doctorTestCaseID
	reply, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	require.NoError(t, err)
	assert.Equal(t, "deny", reply.Decision)
	require.NotNil(t, reply.Reason)
	assert.Equal(t, "missing labs", *reply.Reason)
}

func TestParseDoctorDecisionReply_DenyWithEmptyReasonMarkerNormalizesToNil(t *testing.T) {
	body := "decision: deny\nsupport_flag: none\nreason: n/a\ncase_id: " + doctorTestCaseID
	reply, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	require.NoError(t, err)
	assert.Nil(t, reply.Reason)
}

func TestParseDoctorDecisionReply_EmptyMessage(t *testing.T) {
	_, err := ParseDoctorDecisionReply("   \n\n", doctorTestCaseID)
	assertReason(t, err, "empty_message")
}

func TestParseDoctorDecisionReply_UnknownField(t *testing.T) {
	body := "decision: accept\nsupport_flag: none\ncase_id: " + doctorTestCaseID + "\ndoctor_user_id: @doc:example.org"
	_, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	assertReason(t, err, "unknown_field")
}

func TestParseDoctorDecisionReply_DuplicateField(t *testing.T) {
	body := "decision: accept\ndecision: deny\nsupport_flag: none\ncase_id: " + doctorTestCaseID
	_, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	assertReason(t, err, "duplicate_field")
}

func TestParseDoctorDecisionReply_MissingRequiredLine(t *testing.T) {
	body := "decision: accept\ncase_id: " + doctorTestCaseID
	_, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	assertReason(t, err, "missing_support_flag_line")
}

func TestParseDoctorDecisionReply_InvalidDecisionValue(t *testing.T) {
	body := "decision: maybe\nsupport_flag: none\ncase_id: " + doctorTestCaseID
	_, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	assertReason(t, err, "invalid_decision_value")
}

func TestParseDoctorDecisionReply_InvalidSupportFlagValue(t *testing.T) {
	body := "decision: accept\nsupport_flag: maybe\ncase_id: " + doctorTestCaseID
	_, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	assertReason(t, err, "invalid_support_flag_value")
}

func TestParseDoctorDecisionReply_DenyRequiresNoSupport(t *testing.T) {
	body := "decision: deny\nsupport_flag: anesthesist\ncase_id: " + doctorTestCaseID
	_, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	assertReason(t, err, "invalid_support_flag_for_decision")
}

func TestParseDoctorDecisionReply_CaseIDMismatch(t *testing.T) {
	body := "decision: accept\nsupport_flag: none\ncase_id: " + doctorTestCaseID
	_, err := ParseDoctorDecisionReply(body, "00000000-0000-0000-0000-000000000000")
	assertReason(t, err, "case_id_mismatch")
}

func TestParseDoctorDecisionReply_InvalidCaseLine(t *testing.T) {
	body := "decision: accept\nsupport_flag: none\ncase_id: not-a-uuid"
	_, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	assertReason(t, err, "invalid_case_line")
}

func TestParseDoctorDecisionReply_IgnoresFenceMarkersAndQuotedNoise(t *testing.T) {
	body := "```\ndecision: accept\n```\n> irrelevant quoted commentary\nsupport_flag: none\ncase_id: " + doctorTestCaseID
	reply, err := ParseDoctorDecisionReply(body, doctorTestCaseID)
	require.NoError(t, err)
	assert.Equal(t, "accept", reply.Decision)
}

func assertReason(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	var doctorErr *DoctorDecisionError
	if ok := asDoctorErr(err, &doctorErr); ok {
		assert.Equal(t, reason, doctorErr.Reason)
		return
	}
	var schedErr *SchedulerError
	if ok := asSchedulerErr(err, &schedErr); ok {
		assert.Equal(t, reason, schedErr.Reason)
		return
	}
	t.Fatalf("unexpected error type: %v", err)
}

func asDoctorErr(err error, target **DoctorDecisionError) bool {
	de, ok := err.(*DoctorDecisionError)
	if !ok {
		return false
	}
	*target = de
	return true
}

func asSchedulerErr(err error, target **SchedulerError) bool {
	se, ok := err.(*SchedulerError)
	if !ok {
		return false
	}
	*target = se
	return true
}
