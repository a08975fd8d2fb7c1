// Package journal implements the append-only case/auth event and
// message store (C2). All writes are commit-per-call; rows are
// independent so concurrent appenders never deadlock beyond the unique
// indices used to enforce idempotency.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// postgresUniqueViolation is the SQLSTATE code for a unique constraint
// violation (used to detect duplicate case messages without a
// SELECT-then-INSERT race).
const postgresUniqueViolation = "23505"

// ErrDuplicateCaseMessage is returned by AddCaseMessage when the
// (room_id, external_event_id) pair already exists.
var ErrDuplicateCaseMessage = errors.New("duplicate case message")

// Queryer is the subset of *sqlx.DB / *sqlx.Tx the journal needs, so
// callers can run journal writes inside a larger transaction alongside
// pkg/casestore mutations when a handler needs both in one commit.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Store is the journal repository, backed by a *sqlx.DB or *sqlx.Tx.
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

// AppendCaseEvent inserts one immutable CaseEvent row.
func (s *Store) AppendCaseEvent(ctx context.Context, caseID string, actorType models.ActorType, actorUserID, roomID, externalEventID *string, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal case event payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO case_events (case_id, actor_type, actor_user_id, room_id, external_event_id, event_type, payload, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		caseID, actorType, actorUserID, roomID, externalEventID, eventType, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append case event: %w", err)
	}
	return nil
}

// AppendAuthEvent inserts one immutable AuthEvent row.
func (s *Store) AppendAuthEvent(ctx context.Context, userID, actorID *string, eventType, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_events (user_id, actor_id, event_type, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, actorID, eventType, detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append auth event: %w", err)
	}
	return nil
}

// AddCaseMessage records one chat message tracked against a case. Fails
// distinctly with ErrDuplicateCaseMessage on a duplicate (room_id,
// external_event_id) pair rather than a generic DB error, so callers at
// Intake (C5) and the pipeline (C6/C7) can absorb it silently per §7.
func (s *Store) AddCaseMessage(ctx context.Context, caseID, roomID, externalEventID string, senderUserID *string, kind models.CaseMessageKind) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO case_messages (case_id, room_id, external_event_id, sender_user_id, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		caseID, roomID, externalEventID, senderUserID, kind, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCaseMessage
		}
		return fmt.Errorf("add case message: %w", err)
	}
	return nil
}

// ListMessageRefsForCase returns every tracked message for a case, used
// by the cleanup handler to iterate and redact each one via the Chat
// Gateway.
func (s *Store) ListMessageRefsForCase(ctx context.Context, caseID string) ([]models.CaseMessage, error) {
	var rows []models.CaseMessage
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, case_id, room_id, external_event_id, sender_user_id, kind, created_at
		FROM case_messages WHERE case_id = $1 ORDER BY id ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list message refs for case: %w", err)
	}
	return rows, nil
}

// isUniqueViolation inspects a pgx error for SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return false
}
