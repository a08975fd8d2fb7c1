// Package intake implements Room 1 PDF intake (C5): turning a parsed
// chat event into a new Case, a journal trail, a processing-ack chat
// reply, and the first pipeline job — observably idempotent per
// event_id so a redelivered chat event never produces a second case.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carlosapgomes/triage-automation/pkg/casestore"
	"github.com/carlosapgomes/triage-automation/pkg/journal"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// ParsedRoom1PDFIntakeEvent is what the Chat Gateway hands Intake once it
// has classified an inbound Room 1 message as a human-originated PDF
// submission (file URL with PDF mime or .pdf extension, sender ≠ bot).
type ParsedRoom1PDFIntakeEvent struct {
	RoomID       string
	EventID      string
	SenderUserID string
	PDFURI       string
	Filename     string
	Mimetype     string
}

// ChatPoster is the narrow Chat Gateway capability Intake needs: reply
// to the origin event with a processing acknowledgement.
type ChatPoster interface {
	ReplyText(ctx context.Context, roomID, targetEventID, text string) (postedEventID string, err error)
}

// Result reports what Intake did for one event.
type Result struct {
	Processed bool
	Reason    string
	CaseID    string
}

const reasonDuplicateOriginEvent = "duplicate_origin_event"

// processingAckText is the deterministic acknowledgement reply posted
// to the origin message before the pipeline does any real work.
const processingAckText = "processing..."

// Service wires the case store, journal, job queue, and chat gateway
// together to perform Room 1 intake.
type Service struct {
	cases   *casestore.Store
	journal *journal.Store
	queue   *queue.Store
	chat    ChatPoster
}

// NewService constructs an intake Service.
func NewService(cases *casestore.Store, journalStore *journal.Store, queueStore *queue.Store, chat ChatPoster) *Service {
	return &Service{cases: cases, journal: journalStore, queue: queueStore, chat: chat}
}

// Ingest performs the four-step intake sequence from spec §4.5. Two
// concurrent calls for the same origin event_id are guaranteed to
// produce exactly one Case and exactly one process_pdf_case job: the
// unique index on room1_origin_event_id arbitrates the race, and the
// loser returns Result{Processed: false, Reason: duplicate_origin_event}
// with no further side effects.
func (s *Service) Ingest(ctx context.Context, ev ParsedRoom1PDFIntakeEvent) (Result, error) {
	caseID := uuid.NewString()

	c, err := s.cases.Create(ctx, caseID, ev.RoomID, ev.EventID, ev.SenderUserID, ev.PDFURI)
	if err != nil {
		if errors.Is(err, casestore.ErrDuplicateOriginEvent) {
			return Result{Processed: false, Reason: reasonDuplicateOriginEvent}, nil
		}
		return Result{}, fmt.Errorf("create case: %w", err)
	}

	sender := ev.SenderUserID
	room := ev.RoomID
	eventID := ev.EventID
	if err := s.journal.AppendCaseEvent(ctx, c.CaseID, models.ActorHuman, &sender, &room, &eventID, "ROOM1_PDF_ACCEPTED", map[string]string{
		"pdf_uri": ev.PDFURI, "filename": ev.Filename, "mimetype": ev.Mimetype,
	}); err != nil {
		return Result{}, fmt.Errorf("append ROOM1_PDF_ACCEPTED: %w", err)
	}
	if err := s.journal.AddCaseMessage(ctx, c.CaseID, ev.RoomID, ev.EventID, &sender, models.MessageKindRoom1Origin); err != nil {
		return Result{}, fmt.Errorf("add room1_origin message: %w", err)
	}

	postedEventID, err := s.chat.ReplyText(ctx, ev.RoomID, ev.EventID, processingAckText)
	if err != nil {
		return Result{}, fmt.Errorf("post processing ack: %w", err)
	}
	if err := s.journal.AddCaseMessage(ctx, c.CaseID, ev.RoomID, postedEventID, nil, models.MessageKindBotProcessing); err != nil {
		return Result{}, fmt.Errorf("add bot_processing message: %w", err)
	}
	if err := s.journal.AppendCaseEvent(ctx, c.CaseID, models.ActorBot, nil, &room, &postedEventID, "ROOM1_PROCESSING_ACK_POSTED", nil); err != nil {
		return Result{}, fmt.Errorf("append ROOM1_PROCESSING_ACK_POSTED: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, &c.CaseID, "process_pdf_case", map[string]string{"case_id": c.CaseID}, time.Time{}); err != nil {
		return Result{}, fmt.Errorf("enqueue process_pdf_case: %w", err)
	}

	return Result{Processed: true, CaseID: c.CaseID}, nil
}
