// Package prompttemplate implements the versioned LLM prompt store
// (supplemented feature, see SPEC_FULL.md §6). At most one row per Name
// may be active at once, enforced by a partial unique index on (name)
// WHERE is_active; ActivateVersion flips the old and new active rows in
// one transaction.
package prompttemplate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// Recognized prompt names (spec §4.6, SPEC_FULL.md §6). run_llm1 loads
// the llm1 pair; no handler loads the llm2 names, since run_llm2 derives
// its suggestion without an LLM call.
const (
	NameLLM1System = "llm1_system"
	NameLLM1User   = "llm1_user"
	NameLLM2System = "llm2_system"
	NameLLM2User   = "llm2_user"
)

// ErrMissingActiveTemplate is returned when no active row exists for a
// required prompt name.
var ErrMissingActiveTemplate = errors.New("missing active prompt template")

// Store is the prompt template repository.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store over a *sqlx.DB.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// GetActiveByName returns the active template row for name, or
// ErrMissingActiveTemplate if none is active.
func (s *Store) GetActiveByName(ctx context.Context, name string) (*models.PromptTemplate, error) {
	var tmpl models.PromptTemplate
	err := s.db.GetContext(ctx, &tmpl, `
		SELECT * FROM prompt_templates WHERE name = $1 AND is_active = TRUE
		ORDER BY version DESC LIMIT 1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMissingActiveTemplate, name)
		}
		return nil, fmt.Errorf("get active prompt template: %w", err)
	}
	return &tmpl, nil
}

// GetRequiredActivePrompt loads the active template content for name,
// used by run_llm1 to render its system/user prompts.
func (s *Store) GetRequiredActivePrompt(ctx context.Context, name string) (string, int, error) {
	tmpl, err := s.GetActiveByName(ctx, name)
	if err != nil {
		return "", 0, err
	}
	return tmpl.Content, tmpl.Version, nil
}

// CreateVersion inserts a new, inactive template version for name.
func (s *Store) CreateVersion(ctx context.Context, name, content string, version int) (*models.PromptTemplate, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO prompt_templates (name, version, content, is_active, created_at)
		VALUES ($1, $2, $3, FALSE, now()) RETURNING id`,
		name, version, content).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create prompt template version: %w", err)
	}
	return s.getByID(ctx, id)
}

// ActivateVersion deactivates whatever row is currently active for name
// and activates id, inside one transaction, preserving the "at most one
// active row per name" invariant (SPEC_FULL.md §10).
func (s *Store) ActivateVersion(ctx context.Context, name string, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("activate prompt template: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE prompt_templates SET is_active = FALSE WHERE name = $1 AND is_active = TRUE`, name); err != nil {
		return fmt.Errorf("activate prompt template: deactivate current: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE prompt_templates SET is_active = TRUE WHERE id = $1 AND name = $2`, id, name); err != nil {
		return fmt.Errorf("activate prompt template: activate new: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("activate prompt template: commit: %w", err)
	}
	return nil
}

func (s *Store) getByID(ctx context.Context, id int64) (*models.PromptTemplate, error) {
	var tmpl models.PromptTemplate
	if err := s.db.GetContext(ctx, &tmpl, `SELECT * FROM prompt_templates WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("get prompt template: %w", err)
	}
	return &tmpl, nil
}
