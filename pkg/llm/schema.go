package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Llm1Response is the v1.1 structured extraction schema run_llm1
// validates every completion against. Fields are kept as loosely-typed
// JSON sub-objects beyond the few validated here — persistence stores
// the whole decoded document as opaque JSON per spec §9, this struct
// only gates what the handler must enforce.
type Llm1Response struct {
	SchemaVersion      string          `json:"schema_version"`
	Language           string          `json:"language"`
	AgencyRecordNumber string          `json:"agency_record_number"`
	Patient            json.RawMessage `json:"patient"`
	EDA                json.RawMessage `json:"eda"`
	PolicyPrecheck     json.RawMessage `json:"policy_precheck"`
	Summary            Llm1Summary     `json:"summary"`
	ExtractionQuality  json.RawMessage `json:"extraction_quality"`
}

// Llm1Summary carries the one-line and bullet-point summary fields,
// the only nested shape run_llm1 needs to validate directly (spec
// §4.6: "summary with 3-8 bullets").
type Llm1Summary struct {
	OneLiner     string   `json:"one_liner"`
	BulletPoints []string `json:"bullet_points"`
}

var agencyRecordNumberPattern = regexp.MustCompile(`^[0-9]{5}$`)

// ValidateLlm1Response parses raw as JSON, validates it against the
// v1.1 schema's required fields, and enforces that its
// agency_record_number equals the value injected into the prompt.
// Any failure here is the caller's cue to raise a retriable "llm1"
// HandlerError, per spec §4.6.
func ValidateLlm1Response(raw string, expectedAgencyRecordNumber string) (*Llm1Response, error) {
	var resp Llm1Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("llm1 response is not valid JSON: %w", err)
	}
	if resp.SchemaVersion != "1.1" {
		return nil, fmt.Errorf("llm1 response schema_version %q, want \"1.1\"", resp.SchemaVersion)
	}
	if resp.Language != "pt-BR" {
		return nil, fmt.Errorf("llm1 response language %q, want \"pt-BR\"", resp.Language)
	}
	if !agencyRecordNumberPattern.MatchString(resp.AgencyRecordNumber) {
		return nil, fmt.Errorf("llm1 response agency_record_number %q does not match ^[0-9]{5}$", resp.AgencyRecordNumber)
	}
	if resp.AgencyRecordNumber != expectedAgencyRecordNumber {
		return nil, fmt.Errorf("llm1 response agency_record_number %q does not match injected value %q", resp.AgencyRecordNumber, expectedAgencyRecordNumber)
	}
	if resp.Summary.OneLiner == "" {
		return nil, fmt.Errorf("llm1 response summary.one_liner is empty")
	}
	if n := len(resp.Summary.BulletPoints); n < 3 || n > 8 {
		return nil, fmt.Errorf("llm1 response summary.bullet_points has %d entries, want 3-8", n)
	}
	return &resp, nil
}
