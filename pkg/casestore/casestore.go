// Package casestore implements the mutable case row repository (C3).
// Every verb that changes Status routes through
// pkg/statemachine.AssertTransition before writing, so an invalid
// transition never reaches the database. Each mutation is a narrow,
// intention-revealing method wrapping the single underlying table.
package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/statemachine"
)

const postgresUniqueViolation = "23505"

// ErrDuplicateOriginEvent is returned by Create when room1_origin_event_id
// already exists — the signal Intake (C5) uses to report
// duplicate_origin_event rather than creating a second case.
var ErrDuplicateOriginEvent = errors.New("duplicate origin event")

// ErrNotFound is returned when a case_id does not exist.
var ErrNotFound = errors.New("case not found")

// Queryer is the subset of *sqlx.DB / *sqlx.Tx this store needs.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Store is the case repository.
type Store struct {
	db Queryer
}

// NewStore constructs a Store over a *sqlx.DB.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// NewStoreTx constructs a Store scoped to an in-flight transaction.
func NewStoreTx(tx *sqlx.Tx) *Store {
	return &Store{db: tx}
}

// Create inserts a new case in StatusR1AckProcessing. Fails with
// ErrDuplicateOriginEvent if room1OriginEventID was already seen.
func (s *Store) Create(ctx context.Context, caseID, room1OriginRoomID, room1OriginEventID, room1SenderUserID, pdfSourceURI string) (*models.Case, error) {
	now := time.Now().UTC()
	c := &models.Case{
		CaseID:             caseID,
		Status:             models.StatusR1AckProcessing,
		Room1OriginRoomID:  room1OriginRoomID,
		Room1OriginEventID: room1OriginEventID,
		Room1SenderUserID:  room1SenderUserID,
		PDFSourceURI:       pdfSourceURI,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (case_id, status, room1_origin_room_id, room1_origin_event_id, room1_sender_user_id, pdf_source_uri, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.CaseID, c.Status, c.Room1OriginRoomID, c.Room1OriginEventID, c.Room1SenderUserID, c.PDFSourceURI, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateOriginEvent
		}
		return nil, fmt.Errorf("create case: %w", err)
	}
	return c, nil
}

// Get loads a case by id.
func (s *Store) Get(ctx context.Context, caseID string) (*models.Case, error) {
	var c models.Case
	err := s.db.GetContext(ctx, &c, `SELECT * FROM cases WHERE case_id = $1`, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return &c, nil
}

// SetStatusWithTransition advances Status after validating the move via
// pkg/statemachine. MarkCleanupCompleted calls this directly; the other
// status-changing verbs below run the same AssertTransition check before
// writing status together with their own columns.
func (s *Store) SetStatusWithTransition(ctx context.Context, caseID string, to models.CaseStatus) error {
	c, err := s.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if err := statemachine.AssertTransition(c.Status, to); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE cases SET status = $1, updated_at = $2 WHERE case_id = $3`,
		to, time.Now().UTC(), caseID)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// StorePDFExtraction persists extracted text, the agency record number,
// and advances status to EXTRACTING.
func (s *Store) StorePDFExtraction(ctx context.Context, caseID, extractedText, agencyRecordNumber string) error {
	c, err := s.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if err := statemachine.AssertTransition(c.Status, models.StatusExtracting); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE cases SET extracted_text = $1, agency_record_number = $2, status = $3, updated_at = $4
		WHERE case_id = $5`,
		extractedText, agencyRecordNumber, models.StatusExtracting, time.Now().UTC(), caseID)
	if err != nil {
		return fmt.Errorf("store pdf extraction: %w", err)
	}
	return nil
}

// StoreLLM1Artifacts persists the structured LLM1 output and advances
// status to LLM_STRUCT.
func (s *Store) StoreLLM1Artifacts(ctx context.Context, caseID string, structuredData any) error {
	raw, err := json.Marshal(structuredData)
	if err != nil {
		return fmt.Errorf("marshal structured data: %w", err)
	}
	c, err := s.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if err := statemachine.AssertTransition(c.Status, models.StatusLLMStruct); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE cases SET structured_data = $1, status = $2, updated_at = $3 WHERE case_id = $4`,
		raw, models.StatusLLMStruct, time.Now().UTC(), caseID)
	if err != nil {
		return fmt.Errorf("store llm1 artifacts: %w", err)
	}
	return nil
}

// StoreSuggestedAction persists the LLM2 accept/deny suggestion and
// advances status to LLM_SUGGEST.
func (s *Store) StoreSuggestedAction(ctx context.Context, caseID string, suggestedAction any) error {
	raw, err := json.Marshal(suggestedAction)
	if err != nil {
		return fmt.Errorf("marshal suggested action: %w", err)
	}
	c, err := s.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if err := statemachine.AssertTransition(c.Status, models.StatusLLMSuggest); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE cases SET suggested_action = $1, status = $2, updated_at = $3 WHERE case_id = $4`,
		raw, models.StatusLLMSuggest, time.Now().UTC(), caseID)
	if err != nil {
		return fmt.Errorf("store suggested action: %w", err)
	}
	return nil
}

// RecordDoctorDecision persists the parsed Room 2 doctor reply and
// advances status to DOCTOR_ACCEPTED or DOCTOR_DENIED.
func (s *Store) RecordDoctorDecision(ctx context.Context, caseID string, decision models.DoctorDecision, supportFlag models.SupportFlag, reason string) error {
	c, err := s.Get(ctx, caseID)
	if err != nil {
		return err
	}
	to := models.StatusDoctorAccepted
	if decision == models.DoctorDecisionDeny {
		to = models.StatusDoctorDenied
	}
	if err := statemachine.AssertTransition(c.Status, to); err != nil {
		return err
	}
	decidedAt := time.Now().UTC()
	decisionStr := string(decision)
	supportStr := string(supportFlag)
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE cases SET doctor_decision = $1, doctor_support_flag = $2, doctor_reason = $3,
			doctor_decided_at = $4, status = $5, updated_at = $6
		WHERE case_id = $7`,
		decisionStr, supportStr, reasonPtr, decidedAt, to, decidedAt, caseID)
	if err != nil {
		return fmt.Errorf("record doctor decision: %w", err)
	}
	return nil
}

// RecordSchedulerOutcome persists the parsed Room 3 scheduler reply and
// advances status to APPT_CONFIRMED or APPT_DENIED.
func (s *Store) RecordSchedulerOutcome(ctx context.Context, caseID string, status models.AppointmentStatus, appointmentAt *time.Time, location, instructions, reason string) error {
	c, err := s.Get(ctx, caseID)
	if err != nil {
		return err
	}
	to := models.StatusApptConfirmed
	if status == models.AppointmentDenied {
		to = models.StatusApptDenied
	}
	if err := statemachine.AssertTransition(c.Status, to); err != nil {
		return err
	}
	decidedAt := time.Now().UTC()
	statusStr := string(status)
	var locationPtr, instructionsPtr, reasonPtr *string
	if location != "" {
		locationPtr = &location
	}
	if instructions != "" {
		instructionsPtr = &instructions
	}
	if reason != "" {
		reasonPtr = &reason
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE cases SET appointment_status = $1, appointment_at = $2, appointment_location = $3,
			appointment_instructions = $4, appointment_reason = $5, appointment_decided_at = $6,
			status = $7, updated_at = $8
		WHERE case_id = $9`,
		statusStr, appointmentAt, locationPtr, instructionsPtr, reasonPtr, decidedAt, to, decidedAt, caseID)
	if err != nil {
		return fmt.Errorf("record scheduler outcome: %w", err)
	}
	return nil
}

// SetRoom1FinalReply records the event id of the final Room 1 reply
// (accept/deny/failure branch) without forcing a particular successor
// status, since all three branches route through different terminal
// statuses before cleanup.
func (s *Store) SetRoom1FinalReply(ctx context.Context, caseID, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cases SET room1_final_reply_event_id = $1, updated_at = $2 WHERE case_id = $3`,
		eventID, time.Now().UTC(), caseID)
	if err != nil {
		return fmt.Errorf("set room1 final reply: %w", err)
	}
	return nil
}

// MarkCleanupCompleted advances status to CLEANED, the terminal state
// after chat redaction has run.
func (s *Store) MarkCleanupCompleted(ctx context.Context, caseID string) error {
	return s.SetStatusWithTransition(ctx, caseID, models.StatusCleaned)
}

// PriorCaseSummary describes the most recent prior case for the same
// agency record number within the lookback window.
type PriorCaseSummary struct {
	PriorCaseID string
	DecidedAt   time.Time
	Decision    string
	Reason      *string
}

// PriorCaseContext is the enrichment payload handed to LLM1.
type PriorCaseContext struct {
	PriorCase          *PriorCaseSummary
	PriorDenialCount7d *int
}

// priorCaseLookbackWindow is the prior-case enrichment window.
const priorCaseLookbackWindow = 7 * 24 * time.Hour

// PriorCasesForSender returns 7-day prior-case context for the given
// agency record number, excluding the current case, used to enrich the
// LLM1 prompt (supplemented feature — see DESIGN.md).
func (s *Store) PriorCasesForSender(ctx context.Context, currentCaseID, agencyRecordNumber string, now time.Time) (*PriorCaseContext, error) {
	windowStart := now.Add(-priorCaseLookbackWindow)

	var candidates []models.Case
	err := s.db.SelectContext(ctx, &candidates, `
		SELECT * FROM cases
		WHERE agency_record_number = $1 AND created_at >= $2 AND created_at <= $3 AND case_id != $4`,
		agencyRecordNumber, windowStart, now, currentCaseID)
	if err != nil {
		return nil, fmt.Errorf("prior cases for sender: %w", err)
	}
	if len(candidates) == 0 {
		return &PriorCaseContext{}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	denialCount := 0
	for _, c := range candidates {
		if isDenial(c) {
			denialCount++
		}
	}

	top := candidates[0]
	summary := &PriorCaseSummary{
		PriorCaseID: top.CaseID,
		DecidedAt:   selectDecidedAt(top),
		Decision:    mapPriorDecision(top),
		Reason:      selectReason(top),
	}
	return &PriorCaseContext{PriorCase: summary, PriorDenialCount7d: &denialCount}, nil
}

func isDenial(c models.Case) bool {
	return (c.DoctorDecision != nil && *c.DoctorDecision == string(models.DoctorDecisionDeny)) ||
		(c.AppointmentStatus != nil && *c.AppointmentStatus == string(models.AppointmentDenied))
}

func mapPriorDecision(c models.Case) string {
	if c.DoctorDecision != nil && *c.DoctorDecision == string(models.DoctorDecisionDeny) {
		return "deny_triage"
	}
	if c.AppointmentStatus != nil && *c.AppointmentStatus == string(models.AppointmentDenied) {
		return "deny_appointment"
	}
	if c.Status == models.StatusFailed {
		return "failed"
	}
	return "accepted"
}

func selectDecidedAt(c models.Case) time.Time {
	if c.DoctorDecidedAt != nil {
		return *c.DoctorDecidedAt
	}
	if c.AppointmentDecidedAt != nil {
		return *c.AppointmentDecidedAt
	}
	return c.CreatedAt
}

func selectReason(c models.Case) *string {
	if c.DoctorReason != nil && *c.DoctorReason != "" {
		return c.DoctorReason
	}
	if c.AppointmentReason != nil && *c.AppointmentReason != "" {
		return c.AppointmentReason
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return false
}
