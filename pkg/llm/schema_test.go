package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLlm1JSON(agencyRecordNumber string) string {
	return `{
		"schema_version": "1.1",
		"language": "pt-BR",
		"agency_record_number": "` + agencyRecordNumber + `",
		"patient": {"name": "Jane Doe", "age": 40, "sex": "F"},
		"eda": {"indication_category": "dyspepsia"},
		"policy_precheck": {"excluded_from_eda_flow": false},
		"summary": {
			"one_liner": "Paciente estavel, sem contraindicacoes.",
			"bullet_points": ["sem febre", "exames normais", "sem uso de anticoagulantes"]
		},
		"extraction_quality": {"confidence": "alta"}
	}`
}

func TestValidateLlm1Response_HappyPath(t *testing.T) {
	resp, err := ValidateLlm1Response(validLlm1JSON("12345"), "12345")
	require.NoError(t, err)
	assert.Equal(t, "1.1", resp.SchemaVersion)
	assert.Len(t, resp.Summary.BulletPoints, 3)
}

func TestValidateLlm1Response_NonJSON(t *testing.T) {
	_, err := ValidateLlm1Response(`{"schema_version":"1.1"`, "12345")
	assert.Error(t, err)
}

func TestValidateLlm1Response_WrongSchemaVersion(t *testing.T) {
	_, err := ValidateLlm1Response(`{"schema_version":"1.0"}`, "12345")
	assert.Error(t, err)
}

func TestValidateLlm1Response_AgencyRecordNumberMismatch(t *testing.T) {
	_, err := ValidateLlm1Response(validLlm1JSON("12345"), "99999")
	assert.Error(t, err)
}

func TestValidateLlm1Response_TooFewBulletPoints(t *testing.T) {
	raw := `{
		"schema_version": "1.1", "language": "pt-BR", "agency_record_number": "12345",
		"summary": {"one_liner": "x", "bullet_points": ["a", "b"]}
	}`
	_, err := ValidateLlm1Response(raw, "12345")
	assert.Error(t, err)
}

func TestValidateLlm1Response_TooManyBulletPoints(t *testing.T) {
	raw := `{
		"schema_version": "1.1", "language": "pt-BR", "agency_record_number": "12345",
		"summary": {"one_liner": "x", "bullet_points": ["1","2","3","4","5","6","7","8","9"]}
	}`
	_, err := ValidateLlm1Response(raw, "12345")
	assert.Error(t, err)
}
