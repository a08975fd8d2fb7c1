package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

func TestBuildRoom2CasePDFMessage(t *testing.T) {
	recordNumber := "12345"
	c := &models.Case{CaseID: "case-1", AgencyRecordNumber: &recordNumber, PDFSourceURI: "mxc://example.org/abc"}

	got := buildRoom2CasePDFMessage(c)

	assert.Contains(t, got, "case-1")
	assert.Contains(t, got, "registro: 12345")
	assert.Contains(t, got, "mxc://example.org/abc")
	assert.Contains(t, got, "PDF original")
}

func TestBuildRoom2CaseSummaryMessage(t *testing.T) {
	c := &models.Case{
		CaseID: "case-1",
		StructuredData: []byte(`{
			"summary": {"one_liner": "paciente estavel"},
			"patient": {"name": "Fulano", "age": 42}
		}`),
		SuggestedAction: []byte(`{"decision": "accept", "support_flag": "none", "reason": "policy_precheck_clear"}`),
	}

	got, err := buildRoom2CaseSummaryMessage(c)
	require.NoError(t, err)

	assert.Contains(t, got, "case-1")
	assert.Contains(t, got, "paciente estavel")
	assert.Contains(t, got, "Dados estruturados")
	assert.Contains(t, got, "Recomendacao")
	assert.Contains(t, got, `"decision": "accept"`)
}

func TestBuildRoom2CaseDecisionInstructionsMessage(t *testing.T) {
	got := buildRoom2CaseDecisionInstructionsMessage("case-1")

	assert.Contains(t, got, "decision: accept|deny")
	assert.Contains(t, got, "support_flag: none|anesthesist|anesthesist_icu")
	assert.Contains(t, got, "reason:")
	assert.Contains(t, got, "case_id: case-1")
}

func TestBuildRoom2DecisionAckMessage(t *testing.T) {
	got := buildRoom2DecisionAckMessage("case-1", "deny", "none", "laudo incompleto")

	assert.Contains(t, got, "resultado: sucesso")
	assert.Contains(t, got, "case_id: case-1")
	assert.Contains(t, got, "decision: deny")
	assert.Contains(t, got, "support_flag: none")
	assert.Contains(t, got, "reason: laudo incompleto")
}
