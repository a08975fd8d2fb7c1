package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// BootstrapOutcome enumerates the result states of initial admin seeding.
type BootstrapOutcome string

const (
	BootstrapCreated                 BootstrapOutcome = "created"
	BootstrapSkippedUsersPresent     BootstrapOutcome = "skipped_users_present"
	BootstrapSkippedConcurrentInsert BootstrapOutcome = "skipped_concurrent_insert"
)

// BootstrapResult reports what EnsureInitialAdminUser did.
type BootstrapResult struct {
	Outcome BootstrapOutcome
	Email   string
}

// EnsureInitialAdminUser creates a single admin user when the users
// table is empty. A concurrent insert racing on the unique email index
// is absorbed as BootstrapSkippedConcurrentInsert rather than surfaced
// as an error, since two API process replicas may run this at startup
// simultaneously.
func EnsureInitialAdminUser(ctx context.Context, store *Store, hasher PasswordHasher, email, password string) (*BootstrapResult, error) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))

	count, err := store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	if count > 0 {
		return &BootstrapResult{Outcome: BootstrapSkippedUsersPresent, Email: normalizedEmail}, nil
	}

	hash, err := hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("bootstrap admin: hash password: %w", err)
	}

	_, err = store.CreateUser(ctx, normalizedEmail, hash, models.RoleAdmin)
	if errors.Is(err, ErrDuplicateEmail) {
		return &BootstrapResult{Outcome: BootstrapSkippedConcurrentInsert, Email: normalizedEmail}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	return &BootstrapResult{Outcome: BootstrapCreated, Email: normalizedEmail}, nil
}
