// Package auth implements authentication and authorization (C10):
// bcrypt password hashing, opaque bearer tokens persisted as sha256
// hashes, bearer extraction and role guards, admin bootstrap, and the
// admin-facing user lifecycle (block/reactivate/remove).
package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes and verifies plaintext passwords for storage.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, passwordHash string) bool
}

// BcryptHasher is the bcrypt-backed PasswordHasher implementation.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher builds a BcryptHasher using bcrypt.DefaultCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

func (h *BcryptHasher) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) VerifyPassword(password, passwordHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}
