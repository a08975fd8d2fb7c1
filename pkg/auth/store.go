package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

const postgresUniqueViolation = "23505"

// ErrDuplicateEmail is returned by CreateUser when the lowercased email
// already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrUserNotFound is returned when a user_id or email has no matching row.
var ErrUserNotFound = errors.New("user not found")

// Store is the repository for users, auth tokens, and auth events.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store over a *sqlx.DB.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// CreateUser inserts a new user row with a fresh UUID.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error) {
	now := time.Now().UTC()
	u := &models.User{
		UserID:        uuid.NewString(),
		Email:         email,
		PasswordHash:  passwordHash,
		Role:          role,
		AccountStatus: models.AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, email, password_hash, role, account_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.UserID, u.Email, u.PasswordHash, u.Role, u.AccountStatus, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks up a user by lowercased email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID looks up a user by id.
func (s *Store) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// ListUsers returns every user ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountActiveAdmins returns how many admin-role users are currently active.
func (s *Store) CountActiveAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT count(*) FROM users WHERE role = $1 AND account_status = $2`,
		models.RoleAdmin, models.AccountActive)
	if err != nil {
		return 0, fmt.Errorf("count active admins: %w", err)
	}
	return n, nil
}

// CountUsers returns the total number of user rows, used by admin
// bootstrap to decide whether seeding is needed.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// SetAccountStatus updates a user's account_status.
func (s *Store) SetAccountStatus(ctx context.Context, userID string, status models.AccountStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET account_status = $2, updated_at = $3 WHERE user_id = $1`,
		userID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateToken persists a new opaque token's hash for userID.
func (s *Store) CreateToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.AuthToken, error) {
	now := time.Now().UTC()
	t := &models.AuthToken{
		TokenHash: tokenHash,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (token_hash, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		t.TokenHash, t.UserID, t.IssuedAt, t.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return t, nil
}

// GetActiveTokenByHash returns the token row for tokenHash if it is not
// revoked and not expired, nil otherwise.
func (s *Store) GetActiveTokenByHash(ctx context.Context, tokenHash string) (*models.AuthToken, error) {
	var t models.AuthToken
	err := s.db.GetContext(ctx, &t, `
		SELECT * FROM auth_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2`,
		tokenHash, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active token: %w", err)
	}
	return &t, nil
}

// RevokeActiveTokensForUser marks every non-revoked token for userID as
// revoked and returns the number of rows affected.
func (s *Store) RevokeActiveTokensForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auth_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke active tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke active tokens: %w", err)
	}
	return n, nil
}

// AppendAuthEvent records one append-only audit row. userID and actorID
// are both optional: a failed login against an unknown email has
// neither; a successful login has userID only; an admin action has both.
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return false
}
