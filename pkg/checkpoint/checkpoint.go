// Package checkpoint implements reaction checkpoints (C9): "we expect a
// positive reaction to this posted event" bookkeeping that lets the
// pipeline wait on a human thumbs-up without polling the chat gateway.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

const postgresUniqueViolation = "23505"

// ErrNoMatch is returned by MatchIncomingReaction when no PENDING
// checkpoint exists for the given (room_id, related_event_id) pair —
// not an error condition per se, just "this reaction isn't one we're
// waiting on".
var ErrNoMatch = errors.New("no pending checkpoint for reaction")

// Store is the reaction checkpoint repository.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store over a *sqlx.DB.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureExpectedCheckpoint registers that targetEventID, once reacted
// to, should resolve the given stage for caseID. Duplicate insertions
// on (room_id, target_event_id) are silently absorbed per spec §4.8.
func (s *Store) EnsureExpectedCheckpoint(ctx context.Context, caseID string, stage models.CheckpointStage, roomID, targetEventID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reaction_checkpoints (case_id, stage, room_id, target_external_event_id, expected_at, outcome)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		caseID, stage, roomID, targetEventID, time.Now().UTC(), models.OutcomePending)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("ensure expected checkpoint: %w", err)
	}
	return nil
}

// MatchIncomingReaction looks up the checkpoint for (roomID,
// relatedEventID) and, if it is still PENDING, atomically moves it to
// POSITIVE_RECEIVED. The UPDATE is conditional on outcome=PENDING so a
// duplicate delivery of the same reaction never double-counts (spec
// §4.8, §8 invariant: at most one PENDING→POSITIVE_RECEIVED transition
// per checkpoint). Returns the checkpoint's CaseID and Stage on a fresh
// match, or ErrNoMatch if nothing matched or it was already resolved.
func (s *Store) MatchIncomingReaction(ctx context.Context, roomID, relatedEventID, reactionUserID, reactionEventID string) (caseID string, stage models.CheckpointStage, err error) {
	now := time.Now().UTC()
	row := s.db.QueryRowxContext(ctx, `
		UPDATE reaction_checkpoints
		SET outcome = $1, reaction_user_id = $2, reaction_event_id = $3, reaction_received_at = $4
		WHERE room_id = $5 AND target_external_event_id = $6 AND outcome = $7
		RETURNING case_id, stage`,
		models.OutcomePositiveReceived, reactionUserID, reactionEventID, now,
		roomID, relatedEventID, models.OutcomePending)

	if scanErr := row.Scan(&caseID, &stage); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return "", "", ErrNoMatch
		}
		return "", "", fmt.Errorf("match incoming reaction: %w", scanErr)
	}
	return caseID, stage, nil
}

// LookupCaseIDByTarget resolves the case_id a posted (roomID,
// targetEventID) pair belongs to, reusing the same unique index
// EnsureExpectedCheckpoint populates. Doctor-decision and
// scheduler-reply handlers use this to map an inbound reply's
// in-reply-to target back to the case it concerns, since the reply
// itself carries no case_id. Returns ErrNoMatch if the target was
// never registered as a checkpoint.
func (s *Store) LookupCaseIDByTarget(ctx context.Context, roomID, targetEventID string) (string, error) {
	var caseID string
	err := s.db.GetContext(ctx, &caseID, `
		SELECT case_id FROM reaction_checkpoints
		WHERE room_id = $1 AND target_external_event_id = $2`,
		roomID, targetEventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoMatch
		}
		return "", fmt.Errorf("lookup case id by target: %w", err)
	}
	return caseID, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return false
}
