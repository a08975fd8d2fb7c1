package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/carlosapgomes/triage-automation/pkg/casestore"
	"github.com/carlosapgomes/triage-automation/pkg/llm"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/prompttemplate"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// promptVersionAuditPayload is the audit event payload recording which
// prompt versions produced an LLM1 completion.
type promptVersionAuditPayload struct {
	PromptSystemName    string `json:"prompt_system_name"`
	PromptSystemVersion int    `json:"prompt_system_version"`
	PromptUserName      string `json:"prompt_user_name"`
	PromptUserVersion   int    `json:"prompt_user_version"`
}

// handleRunLLM1 loads the active llm1_system/llm1_user prompts, renders
// the user prompt with the case's clean text and record number, calls
// the LLM port, validates the v1.1 schema response, and advances the
// case to LLM_STRUCT (spec §4.6).
func (d *Dispatcher) handleRunLLM1(ctx context.Context, caseID string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	if c.ExtractedText == nil || c.AgencyRecordNumber == nil {
		return &queue.HandlerError{Cause: "fatal", Err: errNoExtractedText}
	}

	systemPrompt, systemVersion, err := d.prompts.GetRequiredActivePrompt(ctx, prompttemplate.NameLLM1System)
	if err != nil {
		return &queue.HandlerError{Cause: "llm1", Err: err}
	}
	userTemplate, userVersion, err := d.prompts.GetRequiredActivePrompt(ctx, prompttemplate.NameLLM1User)
	if err != nil {
		return &queue.HandlerError{Cause: "llm1", Err: err}
	}

	priorCtx, err := d.cases.PriorCasesForSender(ctx, caseID, *c.AgencyRecordNumber, time.Now().UTC())
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	userPrompt := renderLLM1UserPrompt(userTemplate, *c.AgencyRecordNumber, *c.ExtractedText, priorCtx)

	raw, err := d.llmClient.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return &queue.HandlerError{Cause: "llm1", Err: err}
	}

	resp, err := llm.ValidateLlm1Response(raw, *c.AgencyRecordNumber)
	if err != nil {
		return &queue.HandlerError{Cause: "llm1", Err: err}
	}

	if err := d.cases.StoreLLM1Artifacts(ctx, caseID, resp); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	if err := d.journal.AppendCaseEvent(ctx, caseID, models.ActorSystem, nil, nil, nil, "LLM1_COMPLETED", promptVersionAuditPayload{
		PromptSystemName: prompttemplate.NameLLM1System, PromptSystemVersion: systemVersion,
		PromptUserName: prompttemplate.NameLLM1User, PromptUserVersion: userVersion,
	}); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	if _, err := d.queue.Enqueue(ctx, &caseID, JobRunLLM2, jobPayload{CaseID: caseID}, zeroTime); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	return nil
}

var errNoExtractedText = errors.New("run_llm1: case has no extracted text or agency record number")

// renderLLM1UserPrompt substitutes the conventional placeholder tokens
// a DB-stored llm1_user template carries (spec §4.6 requires loading
// prompts from PromptTemplate rather than hardcoded strings). Prior-case
// context is rendered as a short note, or the word "none" when none exists.
func renderLLM1UserPrompt(template, agencyRecordNumber, cleanText string, priorCtx *casestore.PriorCaseContext) string {
	prior := "none"
	if priorCtx != nil && priorCtx.PriorCase != nil {
		prior = priorCtx.PriorCase.PriorCaseID + ": " + priorCtx.PriorCase.Decision
	}
	replacer := strings.NewReplacer(
		"{{agency_record_number}}", agencyRecordNumber,
		"{{extracted_text}}", cleanText,
		"{{prior_case_context}}", prior,
	)
	return replacer.Replace(template)
}
