package pipeline

import (
	"context"
	"fmt"

	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// room1FinalDatetimeLayout renders an appointment time as
// DD-MM-YYYY HH:MM BRT, matching the room-1 final accepted template
// (spec §6) and the scheduler reply's own BRT rendering.
const room1FinalDatetimeLayout = "02-01-2006 15:04"

// handlePostRoom1FinalAppt posts the bit-exact "accepted" reply to the
// room-1 origin event (spec §6).
func (d *Dispatcher) handlePostRoom1FinalAppt(ctx context.Context, caseID string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	when := ""
	if c.AppointmentAt != nil {
		when = c.AppointmentAt.In(brtLocationOrUTC()).Format(room1FinalDatetimeLayout) + " BRT"
	}
	location, instructions := "", ""
	if c.AppointmentLocation != nil {
		location = *c.AppointmentLocation
	}
	if c.AppointmentInstructions != nil {
		instructions = *c.AppointmentInstructions
	}
	return d.postRoom1Final(ctx, c, buildRoom1FinalApptMessage(caseID, when, location, instructions))
}

// handlePostRoom1FinalApptDenied posts the bit-exact "denied
// (appointment)" reply to the room-1 origin event (spec §6).
func (d *Dispatcher) handlePostRoom1FinalApptDenied(ctx context.Context, caseID string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	reason := ""
	if c.AppointmentReason != nil {
		reason = *c.AppointmentReason
	}
	return d.postRoom1Final(ctx, c, buildRoom1FinalApptDeniedMessage(caseID, reason))
}

// handlePostRoom1FinalDenialTriage posts the bit-exact "denied
// (triage)" reply to the room-1 origin event (spec §6).
func (d *Dispatcher) handlePostRoom1FinalDenialTriage(ctx context.Context, caseID string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	reason := ""
	if c.DoctorReason != nil {
		reason = *c.DoctorReason
	}
	return d.postRoom1Final(ctx, c, buildRoom1FinalDenialTriageMessage(caseID, reason))
}

// handlePostRoom1FinalFailure posts the bit-exact "processing failed"
// reply to the room-1 origin event (spec §6, §7 FatalHandler(cause)).
func (d *Dispatcher) handlePostRoom1FinalFailure(ctx context.Context, caseID, cause, details string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	return d.postRoom1Final(ctx, c, buildRoom1FinalFailureMessage(caseID, cause, details))
}

func buildRoom1FinalApptMessage(caseID, when, location, instructions string) string {
	return fmt.Sprintf("✅ accepted\nappointment: %s\nlocation: %s\ninstructions: %s\ncase: %s",
		when, location, instructions, caseID)
}

func buildRoom1FinalApptDeniedMessage(caseID, reason string) string {
	return fmt.Sprintf("❌ denied (appointment)\nreason: %s\ncase: %s", reason, caseID)
}

func buildRoom1FinalDenialTriageMessage(caseID, reason string) string {
	return fmt.Sprintf("❌ denied (triage)\nreason: %s\ncase: %s", reason, caseID)
}

func buildRoom1FinalFailureMessage(caseID, cause, details string) string {
	return fmt.Sprintf("⚠️ processing failed\ncause: %s\ndetails: %s\ncase: %s", cause, details, caseID)
}

// postRoom1Final is the shared tail of all four post_room1_final_*
// handlers: reply to the room-1 origin event, record the reply event
// id, the room1_final case message, and the ROOM1_FINAL checkpoint,
// then advance to WAIT_R1_CLEANUP_THUMBS.
func (d *Dispatcher) postRoom1Final(ctx context.Context, c *models.Case, body string) error {
	eventID, err := d.chat.ReplyText(ctx, c.Room1OriginRoomID, c.Room1OriginEventID, body)
	if err != nil {
		return &queue.HandlerError{Cause: "chat_post", Err: err}
	}

	if err := d.cases.SetRoom1FinalReply(ctx, c.CaseID, eventID); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	if err := d.journal.AddCaseMessage(ctx, c.CaseID, c.Room1OriginRoomID, eventID, nil, models.MessageKindRoom1Final); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	if err := d.checkpoints.EnsureExpectedCheckpoint(ctx, c.CaseID, models.CheckpointRoom1Final, c.Room1OriginRoomID, eventID); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	if err := d.cases.SetStatusWithTransition(ctx, c.CaseID, models.StatusWaitR1CleanupThumbs); err != nil {
		return &queue.HandlerError{Cause: "fatal", Err: err}
	}
	return nil
}
