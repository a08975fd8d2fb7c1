package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// AuthOutcome enumerates the possible results of an authentication attempt.
type AuthOutcome string

const (
	OutcomeSuccess            AuthOutcome = "success"
	OutcomeInvalidCredentials AuthOutcome = "invalid_credentials"
	OutcomeInactiveUser       AuthOutcome = "inactive_user"
)

// AuthResult is the return value of Authenticate.
type AuthResult struct {
	Outcome AuthOutcome
	User    *models.User
}

// AuthService verifies login credentials and appends an audit event for
// every outcome.
type AuthService struct {
	users  *Store
	hasher PasswordHasher
}

// NewAuthService constructs an AuthService.
func NewAuthService(users *Store, hasher PasswordHasher) *AuthService {
	return &AuthService{users: users, hasher: hasher}
}

// Authenticate verifies email/password and records the outcome. Every
// branch appends exactly one auth event, mirroring the original's
// login_failed / login_blocked_inactive / login_success event types.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, normalizedEmail)
	if errors.Is(err, ErrUserNotFound) {
		if aerr := s.users.AppendAuthEvent(ctx, nil, nil, "login_failed",
			fmt.Sprintf("reason=invalid_credentials email=%s", normalizedEmail)); aerr != nil {
			return nil, aerr
		}
		return &AuthResult{Outcome: OutcomeInvalidCredentials}, nil
	}
	if err != nil {
		return nil, err
	}

	if user.AccountStatus != models.AccountActive {
		if aerr := s.users.AppendAuthEvent(ctx, &user.UserID, nil, "login_blocked_inactive",
			fmt.Sprintf("email=%s status=%s", user.Email, user.AccountStatus)); aerr != nil {
			return nil, aerr
		}
		return &AuthResult{Outcome: OutcomeInactiveUser}, nil
	}

	if !s.hasher.VerifyPassword(password, user.PasswordHash) {
		if aerr := s.users.AppendAuthEvent(ctx, &user.UserID, nil, "login_failed",
			fmt.Sprintf("reason=invalid_credentials email=%s", user.Email)); aerr != nil {
			return nil, aerr
		}
		return &AuthResult{Outcome: OutcomeInvalidCredentials}, nil
	}

	if aerr := s.users.AppendAuthEvent(ctx, &user.UserID, nil, "login_success",
		fmt.Sprintf("email=%s role=%s", user.Email, user.Role)); aerr != nil {
		return nil, aerr
	}
	return &AuthResult{Outcome: OutcomeSuccess, User: user}, nil
}

// IssueToken generates and persists a fresh opaque bearer token for user.
func (s *AuthService) IssueToken(ctx context.Context, tokens *TokenService, userID string) (string, *models.AuthToken, error) {
	token, err := tokens.GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	rec, err := s.users.CreateToken(ctx, userID, tokens.HashToken(token), time.Now().UTC().Add(DefaultTokenTTL))
	if err != nil {
		return "", nil, err
	}
	return token, rec, nil
}

// SelfUserManagementError is raised when an actor attempts to block or
// remove their own account.
type SelfUserManagementError struct {
	UserID string
}

func (e *SelfUserManagementError) Error() string {
	return fmt.Sprintf("user %s cannot perform this action on itself", e.UserID)
}

// LastActiveAdminError is raised when an action would leave zero active
// admins.
type LastActiveAdminError struct {
	UserID string
}

func (e *LastActiveAdminError) Error() string {
	return fmt.Sprintf("cannot deactivate %s: would leave no active admin", e.UserID)
}

// UserManagementService implements the admin-facing user lifecycle:
// listing, creating, blocking, reactivating, and removing users.
type UserManagementService struct {
	users  *Store
	hasher PasswordHasher
}

// NewUserManagementService constructs a UserManagementService.
func NewUserManagementService(users *Store, hasher PasswordHasher) *UserManagementService {
	return &UserManagementService{users: users, hasher: hasher}
}

// ListUsers returns every user.
func (s *UserManagementService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.ListUsers(ctx)
}

// CreateUser hashes password and inserts a new user row.
func (s *UserManagementService) CreateUser(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.users.CreateUser(ctx, strings.ToLower(strings.TrimSpace(email)), hash, role)
}

// BlockUser sets a user's account to blocked and revokes their active
// tokens. Refuses self-action and refuses to block the last active admin.
func (s *UserManagementService) BlockUser(ctx context.Context, actorUserID, userID string) error {
	if actorUserID == userID {
		return &SelfUserManagementError{UserID: userID}
	}
	target, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.requireNotDisablingLastActiveAdmin(ctx, target); err != nil {
		return err
	}
	if err := s.users.SetAccountStatus(ctx, userID, models.AccountBlocked); err != nil {
		return err
	}
	_, err = s.users.RevokeActiveTokensForUser(ctx, userID)
	return err
}

// RemoveUser sets a user's account to removed and revokes their active
// tokens. Same guards as BlockUser.
func (s *UserManagementService) RemoveUser(ctx context.Context, actorUserID, userID string) error {
	if actorUserID == userID {
		return &SelfUserManagementError{UserID: userID}
	}
	target, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.requireNotDisablingLastActiveAdmin(ctx, target); err != nil {
		return err
	}
	if err := s.users.SetAccountStatus(ctx, userID, models.AccountRemoved); err != nil {
		return err
	}
	_, err = s.users.RevokeActiveTokensForUser(ctx, userID)
	return err
}

// ReactivateUser sets a user's account back to active. No self-action or
// last-admin guard applies: any admin can reactivate anyone.
func (s *UserManagementService) ReactivateUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.users.SetAccountStatus(ctx, userID, models.AccountActive)
}

// requireNotDisablingLastActiveAdmin only applies its check when target
// is an active admin; non-admins and already-inactive targets pass
// through unchecked, mirroring the original's narrow guard.
func (s *UserManagementService) requireNotDisablingLastActiveAdmin(ctx context.Context, target *models.User) error {
	if target.Role != models.RoleAdmin || target.AccountStatus != models.AccountActive {
		return nil
	}
	n, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return &LastActiveAdminError{UserID: target.UserID}
	}
	return nil
}
