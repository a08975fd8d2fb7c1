package checkpoint

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestEnsureExpectedCheckpoint_DuplicateAbsorbed(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO reaction_checkpoints").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := store.EnsureExpectedCheckpoint(context.Background(), "case-1", models.CheckpointRoom2Ack, "!r2:example.org", "$evt1")
	assert.NoError(t, err)
}

func TestMatchIncomingReaction_Match(t *testing.T) {
	store, mock := newTestStore(t)
	rows := sqlmock.NewRows([]string{"case_id", "stage"}).AddRow("case-1", "ROOM2_ACK")
	mock.ExpectQuery("UPDATE reaction_checkpoints").WillReturnRows(rows)

	caseID, stage, err := store.MatchIncomingReaction(context.Background(), "!r2:example.org", "$evt1", "@doctor:example.org", "$react1")
	require.NoError(t, err)
	assert.Equal(t, "case-1", caseID)
	assert.Equal(t, models.CheckpointRoom2Ack, stage)
}

func TestMatchIncomingReaction_NoMatch(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("UPDATE reaction_checkpoints").WillReturnError(sql.ErrNoRows)

	_, _, err := store.MatchIncomingReaction(context.Background(), "!r2:example.org", "$evt1", "@doctor:example.org", "$react1")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestLookupCaseIDByTarget_Found(t *testing.T) {
	store, mock := newTestStore(t)
	rows := sqlmock.NewRows([]string{"case_id"}).AddRow("case-1")
	mock.ExpectQuery("SELECT case_id FROM reaction_checkpoints").
		WithArgs("!r2:example.org", "$evt1").
		WillReturnRows(rows)

	caseID, err := store.LookupCaseIDByTarget(context.Background(), "!r2:example.org", "$evt1")
	require.NoError(t, err)
	assert.Equal(t, "case-1", caseID)
}

func TestLookupCaseIDByTarget_NotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT case_id FROM reaction_checkpoints").
		WithArgs("!r2:example.org", "$evt1").
		WillReturnError(sql.ErrNoRows)

	_, err := store.LookupCaseIDByTarget(context.Background(), "!r2:example.org", "$evt1")
	assert.ErrorIs(t, err, ErrNoMatch)
}
