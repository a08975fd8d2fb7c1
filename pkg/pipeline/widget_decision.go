package pipeline

import (
	"context"
	"errors"

	"github.com/carlosapgomes/triage-automation/pkg/casestore"
	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// WidgetDecisionOutcome reports the result of a structured (HTTP widget)
// doctor decision submission, letting the HTTP layer map it to the
// right status code without knowing about case internals.
type WidgetDecisionOutcome int

const (
	WidgetDecisionSuccess WidgetDecisionOutcome = iota
	WidgetDecisionNotFound
	WidgetDecisionWrongState
)

// WidgetDecisionSnapshot is the bootstrap response shape for the Room-2
// widget: current status plus whatever decision was already recorded.
type WidgetDecisionSnapshot struct {
	CaseID         string
	Status         models.CaseStatus
	DoctorDecision *string
	DoctorReason   *string
}

// GetWidgetDecisionSnapshot loads the bootstrap data for the Room-2
// decision widget. Returns nil, nil when the case doesn't exist.
func (d *Dispatcher) GetWidgetDecisionSnapshot(ctx context.Context, caseID string) (*WidgetDecisionSnapshot, error) {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, casestore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &WidgetDecisionSnapshot{
		CaseID:         c.CaseID,
		Status:         c.Status,
		DoctorDecision: c.DoctorDecision,
		DoctorReason:   c.DoctorReason,
	}, nil
}

// HandleWidgetDoctorDecision records a doctor decision submitted through
// the authenticated Room-2 HTTP widget rather than a chat reply: same
// recording/journaling/successor-job semantics as
// HandleDoctorDecisionReply, but driven by a validated JSON payload
// instead of a parsed chat template, and with no room reply to post.
func (d *Dispatcher) HandleWidgetDoctorDecision(ctx context.Context, caseID, doctorUserID string, decision models.DoctorDecision, supportFlag models.SupportFlag, reason string) (WidgetDecisionOutcome, error) {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, casestore.ErrNotFound) {
			return WidgetDecisionNotFound, nil
		}
		return WidgetDecisionNotFound, err
	}
	if c.Status != models.StatusWaitDoctor {
		return WidgetDecisionWrongState, nil
	}

	if err := d.cases.RecordDoctorDecision(ctx, caseID, decision, supportFlag, reason); err != nil {
		return WidgetDecisionSuccess, err
	}
	payload := map[string]any{"decision": decision, "support_flag": supportFlag, "reason": reason}
	if err := d.journal.AppendCaseEvent(ctx, caseID, models.ActorHuman, &doctorUserID, nil, nil, "WIDGET_DOCTOR_DECISION_RECORDED", payload); err != nil {
		return WidgetDecisionSuccess, err
	}

	if decision == models.DoctorDecisionAccept {
		_, err = d.queue.Enqueue(ctx, &caseID, JobPostRoom3Request, jobPayload{CaseID: caseID}, zeroTime)
	} else {
		_, err = d.queue.Enqueue(ctx, &caseID, JobPostRoom1FinalDenialTriage, jobPayload{CaseID: caseID}, zeroTime)
	}
	if err != nil {
		return WidgetDecisionSuccess, err
	}
	return WidgetDecisionSuccess, nil
}
