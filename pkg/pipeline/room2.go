package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carlosapgomes/triage-automation/pkg/checkpoint"
	"github.com/carlosapgomes/triage-automation/pkg/journal"
	"github.com/carlosapgomes/triage-automation/pkg/llm"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/parser"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// handlePostRoom2Widget posts the PDF link, summary, and decision
// instruction messages to room 2, registers the ROOM2_ACK checkpoint
// targeting the instruction message, and advances the case through
// R2_POST_WIDGET to WAIT_DOCTOR (spec §4.6).
func (d *Dispatcher) handlePostRoom2Widget(ctx context.Context, caseID string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	pdfMsg := buildRoom2CasePDFMessage(c)
	pdfEventID, err := d.chat.PostText(ctx, d.rooms.Room2ID, pdfMsg)
	if err != nil {
		return &queue.HandlerError{Cause: "chat_post", Err: err}
	}
	if err := d.journal.AddCaseMessage(ctx, caseID, d.rooms.Room2ID, pdfEventID, nil, models.MessageKindRoom2Root); err != nil && !errors.Is(err, journal.ErrDuplicateCaseMessage) {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	summaryMsg, err := buildRoom2CaseSummaryMessage(c)
	if err != nil {
		return &queue.HandlerError{Cause: "fatal", Err: err}
	}
	if _, err := d.chat.PostText(ctx, d.rooms.Room2ID, summaryMsg); err != nil {
		return &queue.HandlerError{Cause: "chat_post", Err: err}
	}

	instructionsMsg := buildRoom2CaseDecisionInstructionsMessage(caseID)
	instructionsEventID, err := d.chat.PostText(ctx, d.rooms.Room2ID, instructionsMsg)
	if err != nil {
		return &queue.HandlerError{Cause: "chat_post", Err: err}
	}

	if err := d.checkpoints.EnsureExpectedCheckpoint(ctx, caseID, models.CheckpointRoom2Ack, d.rooms.Room2ID, instructionsEventID); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	if err := d.cases.SetStatusWithTransition(ctx, caseID, models.StatusR2PostWidget); err != nil {
		return &queue.HandlerError{Cause: "fatal", Err: err}
	}
	if err := d.cases.SetStatusWithTransition(ctx, caseID, models.StatusWaitDoctor); err != nil {
		return &queue.HandlerError{Cause: "fatal", Err: err}
	}
	return nil
}

// HandleDoctorDecisionReply resolves an inbound room-2 reply's case via
// the checkpoint it targets, parses it, records the decision, posts a
// deterministic ack, and enqueues the appropriate successor job (spec
// §4.6 "Doctor reply path").
func (d *Dispatcher) HandleDoctorDecisionReply(ctx context.Context, roomID, eventID, targetEventID, senderUserID, body string) error {
	caseID, err := d.checkpoints.LookupCaseIDByTarget(ctx, roomID, targetEventID)
	if err != nil {
		if err == checkpoint.ErrNoMatch {
			return nil
		}
		return err
	}

	reply, err := parser.ParseDoctorDecisionReply(body, caseID)
	if err != nil {
		reason := err.Error()
		if de, ok := err.(*parser.DoctorDecisionError); ok {
			reason = de.Reason
		}
		_, postErr := d.chat.ReplyText(ctx, roomID, eventID, "❌ could not parse decision: "+reason)
		return postErr
	}

	decision := models.DoctorDecision(reply.Decision)
	support := models.SupportFlag(reply.SupportFlag)
	reasonText := ""
	if reply.Reason != nil {
		reasonText = *reply.Reason
	}

	if err := d.cases.RecordDoctorDecision(ctx, caseID, decision, support, reasonText); err != nil {
		return err
	}
	if err := d.journal.AppendCaseEvent(ctx, caseID, models.ActorHuman, &senderUserID, &roomID, &eventID, "ROOM2_DOCTOR_DECISION_RECORDED", reply); err != nil {
		return err
	}

	ackMsg := buildRoom2DecisionAckMessage(caseID, reply.Decision, reply.SupportFlag, reasonText)
	if _, err := d.chat.ReplyText(ctx, roomID, eventID, ackMsg); err != nil {
		return err
	}

	if decision == models.DoctorDecisionAccept {
		_, err = d.queue.Enqueue(ctx, &caseID, JobPostRoom3Request, jobPayload{CaseID: caseID}, zeroTime)
	} else {
		_, err = d.queue.Enqueue(ctx, &caseID, JobPostRoom1FinalDenialTriage, jobPayload{CaseID: caseID}, zeroTime)
	}
	return err
}

func buildRoom2CasePDFMessage(c *models.Case) string {
	recordNumber := ""
	if c.AgencyRecordNumber != nil {
		recordNumber = *c.AgencyRecordNumber
	}
	return fmt.Sprintf("PDF original\ncase_id: %s\nregistro: %s\npdf: %s", c.CaseID, recordNumber, c.PDFSourceURI)
}

func buildRoom2CaseSummaryMessage(c *models.Case) (string, error) {
	var resp llm.Llm1Response
	if err := json.Unmarshal(c.StructuredData, &resp); err != nil {
		return "", fmt.Errorf("build room2 summary message: decode structured_data: %w", err)
	}
	structuredPretty, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("build room2 summary message: marshal structured_data: %w", err)
	}
	suggestedPretty, err := json.MarshalIndent(json.RawMessage(c.SuggestedAction), "", "  ")
	if err != nil {
		return "", fmt.Errorf("build room2 summary message: marshal suggested_action: %w", err)
	}
	return fmt.Sprintf("case_id: %s\n%s\n\nDados estruturados:\n%s\n\nRecomendacao:\n%s",
		c.CaseID, resp.Summary.OneLiner, structuredPretty, suggestedPretty), nil
}

func buildRoom2CaseDecisionInstructionsMessage(caseID string) string {
	return fmt.Sprintf(
		"Reply to this message with:\ndecision: accept|deny\nsupport_flag: none|anesthesist|anesthesist_icu\nreason: <optional>\ncase_id: %s",
		caseID)
}

func buildRoom2DecisionAckMessage(caseID, decision, supportFlag, reason string) string {
	return fmt.Sprintf("resultado: sucesso\ncase_id: %s\ndecision: %s\nsupport_flag: %s\nreason: %s",
		caseID, decision, supportFlag, reason)
}
