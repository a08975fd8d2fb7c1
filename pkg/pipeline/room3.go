package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carlosapgomes/triage-automation/pkg/checkpoint"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/parser"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// room2Patient is the subset of the stored structured_data's patient
// sub-object the room-3 request message quotes.
type room2Patient struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// handlePostRoom3Request posts the room-3 request and template message
// pair, registers the ROOM3_ACK checkpoint, and advances the case to
// WAIT_APPT (spec §4.6). Idempotent against duplicate job execution:
// if the case has already left DOCTOR_ACCEPTED, nothing is posted
// again (test_post_room3_request.py::test_duplicate_job_execution_is_idempotent).
func (d *Dispatcher) handlePostRoom3Request(ctx context.Context, caseID string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	if c.Status != models.StatusDoctorAccepted {
		return nil
	}

	var structured struct {
		Patient room2Patient `json:"patient"`
	}
	if err := json.Unmarshal(c.StructuredData, &structured); err != nil {
		return &queue.HandlerError{Cause: "fatal", Err: err}
	}
	recordNumber := ""
	if c.AgencyRecordNumber != nil {
		recordNumber = *c.AgencyRecordNumber
	}

	requestMsg := buildRoom3RequestMessage(caseID, recordNumber, structured.Patient)
	requestEventID, err := d.chat.PostText(ctx, d.rooms.Room3ID, requestMsg)
	if err != nil {
		return &queue.HandlerError{Cause: "chat_post", Err: err}
	}
	if err := d.journal.AddCaseMessage(ctx, caseID, d.rooms.Room3ID, requestEventID, nil, models.MessageKindRoom3Request); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	templateMsg := buildRoom3TemplateMessage(caseID)
	templateEventID, err := d.chat.PostText(ctx, d.rooms.Room3ID, templateMsg)
	if err != nil {
		return &queue.HandlerError{Cause: "chat_post", Err: err}
	}
	if err := d.journal.AddCaseMessage(ctx, caseID, d.rooms.Room3ID, templateEventID, nil, models.MessageKindRoom3Template); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	if err := d.checkpoints.EnsureExpectedCheckpoint(ctx, caseID, models.CheckpointRoom3Ack, d.rooms.Room3ID, templateEventID); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	if err := d.cases.SetStatusWithTransition(ctx, caseID, models.StatusR3PostRequest); err != nil {
		return &queue.HandlerError{Cause: "fatal", Err: err}
	}
	if err := d.cases.SetStatusWithTransition(ctx, caseID, models.StatusWaitAppt); err != nil {
		return &queue.HandlerError{Cause: "fatal", Err: err}
	}
	return nil
}

// HandleSchedulerReply resolves an inbound room-3 reply's case via the
// checkpoint it targets, parses it, records the appointment outcome,
// and enqueues the appropriate room-1 final reply job (spec §4.6
// "Scheduler reply path").
func (d *Dispatcher) HandleSchedulerReply(ctx context.Context, roomID, eventID, targetEventID, senderUserID, body string) error {
	caseID, err := d.checkpoints.LookupCaseIDByTarget(ctx, roomID, targetEventID)
	if err != nil {
		if err == checkpoint.ErrNoMatch {
			return nil
		}
		return err
	}

	reply, err := parser.ParseSchedulerReply(body, caseID)
	if err != nil {
		reason := err.Error()
		if se, ok := err.(*parser.SchedulerError); ok {
			reason = se.Reason
		}
		_, postErr := d.chat.ReplyText(ctx, roomID, eventID, "❌ could not parse scheduler reply: "+reason)
		return postErr
	}

	status := models.AppointmentStatus(reply.AppointmentStatus)
	location, instructions, reasonText := "", "", ""
	if reply.Location != nil {
		location = *reply.Location
	}
	if reply.Instructions != nil {
		instructions = *reply.Instructions
	}
	if reply.Reason != nil {
		reasonText = *reply.Reason
	}

	if err := d.cases.RecordSchedulerOutcome(ctx, caseID, status, reply.AppointmentAt, location, instructions, reasonText); err != nil {
		return err
	}
	if err := d.journal.AppendCaseEvent(ctx, caseID, models.ActorHuman, &senderUserID, &roomID, &eventID, "ROOM3_SCHEDULER_OUTCOME_RECORDED", reply); err != nil {
		return err
	}

	if status == models.AppointmentConfirmed {
		_, err = d.queue.Enqueue(ctx, &caseID, JobPostRoom1FinalAppt, jobPayload{CaseID: caseID}, zeroTime)
	} else {
		_, err = d.queue.Enqueue(ctx, &caseID, JobPostRoom1FinalApptDenied, jobPayload{CaseID: caseID}, zeroTime)
	}
	return err
}

func buildRoom3RequestMessage(caseID, recordNumber string, patient room2Patient) string {
	return fmt.Sprintf(
		"caso esperado\ncase_id: %s\nregistro: %s\npaciente: %s\nidade: %d\ncopie a proxima mensagem e preencha os campos",
		caseID, recordNumber, patient.Name, patient.Age)
}

func buildRoom3TemplateMessage(caseID string) string {
	return fmt.Sprintf(
		"status: confirmado\ndata_hora: DD-MM-YYYY HH:MM BRT\nlocal: <location>\ninstrucoes: <instructions>\ncaso: %s",
		caseID)
}
