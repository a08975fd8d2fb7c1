package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// MissingAuthTokenError is returned when a bearer token is required but
// the Authorization header is absent or blank.
type MissingAuthTokenError struct{}

func (e *MissingAuthTokenError) Error() string { return "missing bearer token" }

// InvalidAuthTokenError is returned when the bearer header is malformed
// or the token itself does not resolve to an active session.
type InvalidAuthTokenError struct{ reason string }

func (e *InvalidAuthTokenError) Error() string { return e.reason }

// RoleNotAuthorizedError is returned when an authenticated caller's role
// does not satisfy the endpoint's required role set.
type RoleNotAuthorizedError struct{ Role models.Role }

func (e *RoleNotAuthorizedError) Error() string { return "role not authorized: " + string(e.Role) }

// ExtractBearerToken parses a strict "Authorization: Bearer <tok>" header.
func ExtractBearerToken(authorizationHeader string) (string, error) {
	if strings.TrimSpace(authorizationHeader) == "" {
		return "", &MissingAuthTokenError{}
	}
	parts := strings.Fields(authorizationHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", &InvalidAuthTokenError{reason: "invalid bearer token header"}
	}
	return parts[1], nil
}

// RequireAdmin accepts only models.RoleAdmin.
func RequireAdmin(role models.Role) error {
	if role != models.RoleAdmin {
		return &RoleNotAuthorizedError{Role: role}
	}
	return nil
}

// RequireAuditRead accepts models.RoleAdmin or models.RoleReader.
func RequireAuditRead(role models.Role) error {
	if role != models.RoleAdmin && role != models.RoleReader {
		return &RoleNotAuthorizedError{Role: role}
	}
	return nil
}

// Guard resolves a bearer token to an active user and enforces role
// requirements.
type Guard struct {
	users  *Store
	tokens *TokenService
}

// NewGuard constructs a Guard.
func NewGuard(users *Store, tokens *TokenService) *Guard {
	return &Guard{users: users, tokens: tokens}
}

// RequireAdminUser resolves the caller from authorizationHeader and
// requires the admin role.
func (g *Guard) RequireAdminUser(ctx context.Context, authorizationHeader string) (*models.User, error) {
	user, err := g.resolveActiveUser(ctx, authorizationHeader)
	if err != nil {
		return nil, err
	}
	if err := RequireAdmin(user.Role); err != nil {
		return nil, err
	}
	return user, nil
}

// RequireAuditUser resolves the caller from authorizationHeader and
// requires dashboard audit-read access (admin or reader).
func (g *Guard) RequireAuditUser(ctx context.Context, authorizationHeader string) (*models.User, error) {
	user, err := g.resolveActiveUser(ctx, authorizationHeader)
	if err != nil {
		return nil, err
	}
	if err := RequireAuditRead(user.Role); err != nil {
		return nil, err
	}
	return user, nil
}

func (g *Guard) resolveActiveUser(ctx context.Context, authorizationHeader string) (*models.User, error) {
	token, err := ExtractBearerToken(authorizationHeader)
	if err != nil {
		return nil, err
	}
	tokenHash := g.tokens.HashToken(token)
	rec, err := g.users.GetActiveTokenByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &InvalidAuthTokenError{reason: "invalid or expired auth token"}
	}
	user, err := g.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, &InvalidAuthTokenError{reason: "invalid or expired auth token"}
		}
		return nil, err
	}
	if user.AccountStatus != models.AccountActive {
		return nil, &InvalidAuthTokenError{reason: "invalid or expired auth token"}
	}
	return user, nil
}
