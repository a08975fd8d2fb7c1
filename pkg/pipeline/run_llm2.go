package pipeline

import (
	"context"
	"encoding/json"

	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// suggestedAction is the LLM2 output persisted to Case.SuggestedAction,
// built from the accept/deny plus support vocabulary the policy
// precheck already carries (spec §4.6: "suggest accept|deny plus
// support recommendation from structured data").
type suggestedAction struct {
	Decision    string `json:"decision"`
	SupportFlag string `json:"support_flag"`
	Reason      string `json:"reason"`
}

// triState is the three-valued "yes"/"no"/"unknown" vocabulary the
// policy precheck fields below are encoded with.
type triState string

const triStateYes triState = "yes"

func (t triState) isYes() bool { return t == triStateYes }

// policyPrecheckFields is the subset of the policy precheck structure
// run_llm2 reads to derive its suggestion.
type policyPrecheckFields struct {
	ExcludedFromEDAFlow bool     `json:"excluded_from_eda_flow"`
	LabsPass            triState `json:"labs_pass"`
	ECGPresent          triState `json:"ecg_present"`
	PediatricFlag       bool     `json:"pediatric_flag"`
}

// handleRunLLM2 derives an accept/deny suggestion plus anesthesia
// support recommendation from the case's already-stored structured
// data and advances the case to LLM_SUGGEST (spec §4.6).
func (d *Dispatcher) handleRunLLM2(ctx context.Context, caseID string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	if len(c.StructuredData) == 0 {
		return &queue.HandlerError{Cause: "fatal", Err: errNoStructuredData}
	}

	var structured struct {
		PolicyPrecheck policyPrecheckFields `json:"policy_precheck"`
	}
	if err := json.Unmarshal(c.StructuredData, &structured); err != nil {
		return &queue.HandlerError{Cause: "llm2", Err: err}
	}

	action := deriveSuggestedAction(structured.PolicyPrecheck)

	if err := d.cases.StoreSuggestedAction(ctx, caseID, action); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	if err := d.journal.AppendCaseEvent(ctx, caseID, models.ActorSystem, nil, nil, nil, "LLM2_COMPLETED", action); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	if _, err := d.queue.Enqueue(ctx, &caseID, JobPostRoom2Widget, jobPayload{CaseID: caseID}, zeroTime); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	return nil
}

// deriveSuggestedAction is a deterministic policy: exclusion from the
// EDA flow or failing labs denies outright; a pediatric case or a
// missing ECG escalates to anesthesia support rather than a denial.
func deriveSuggestedAction(p policyPrecheckFields) suggestedAction {
	switch {
	case p.ExcludedFromEDAFlow:
		return suggestedAction{Decision: "deny", SupportFlag: "none", Reason: "excluded_from_eda_flow"}
	case !p.LabsPass.isYes():
		return suggestedAction{Decision: "deny", SupportFlag: "none", Reason: "labs_not_passing"}
	case p.PediatricFlag:
		return suggestedAction{Decision: "accept", SupportFlag: "anesthesist_icu", Reason: "pediatric_flag"}
	case !p.ECGPresent.isYes():
		return suggestedAction{Decision: "accept", SupportFlag: "anesthesist", Reason: "ecg_missing"}
	default:
		return suggestedAction{Decision: "accept", SupportFlag: "none", Reason: "policy_precheck_clear"}
	}
}
