package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// Store computes aggregate summary metrics directly from the cases and
// case_events tables.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store over a *sqlx.DB.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// AggregateMetrics returns the counters for [windowStart, windowEnd).
// reportsProcessed counts "PDF_EXTRACTED" case_events rather than a
// dedicated report-transcript table — this schema folds report capture
// into the journal instead of a separate table (see DESIGN.md).
func (s *Store) AggregateMetrics(ctx context.Context, windowStart, windowEnd time.Time) (*Metrics, error) {
	patientsReceived, err := s.count(ctx, `SELECT count(*) FROM cases WHERE created_at >= $1 AND created_at < $2`, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("count patients received: %w", err)
	}
	reportsProcessed, err := s.count(ctx, `
		SELECT count(*) FROM case_events
		WHERE event_type = 'PDF_EXTRACTED' AND captured_at >= $1 AND captured_at < $2`, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("count reports processed: %w", err)
	}
	casesEvaluated, err := s.count(ctx, `
		SELECT count(*) FROM cases
		WHERE doctor_decided_at IS NOT NULL AND doctor_decided_at >= $1 AND doctor_decided_at < $2`, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("count cases evaluated: %w", err)
	}
	accepted, err := s.count(ctx, `
		SELECT count(*) FROM cases
		WHERE appointment_status = $3 AND appointment_decided_at IS NOT NULL
		  AND appointment_decided_at >= $1 AND appointment_decided_at < $2`,
		windowStart, windowEnd, models.AppointmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("count accepted: %w", err)
	}
	doctorDenied, err := s.count(ctx, `
		SELECT count(*) FROM cases
		WHERE doctor_decision = $3 AND doctor_decided_at IS NOT NULL
		  AND doctor_decided_at >= $1 AND doctor_decided_at < $2`,
		windowStart, windowEnd, models.DoctorDecisionDeny)
	if err != nil {
		return nil, fmt.Errorf("count doctor denied: %w", err)
	}
	schedulerDenied, err := s.count(ctx, `
		SELECT count(*) FROM cases
		WHERE appointment_status = $3 AND appointment_decided_at IS NOT NULL
		  AND appointment_decided_at >= $1 AND appointment_decided_at < $2`,
		windowStart, windowEnd, models.AppointmentDenied)
	if err != nil {
		return nil, fmt.Errorf("count scheduler denied: %w", err)
	}

	return &Metrics{
		PatientsReceived: patientsReceived,
		ReportsProcessed: reportsProcessed,
		CasesEvaluated:   casesEvaluated,
		Accepted:         accepted,
		Refused:          doctorDenied + schedulerDenied,
	}, nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}
