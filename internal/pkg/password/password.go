// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"fmt"

	"github.com/go-user-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// maxBytes is the bcrypt input limit; longer inputs are rejected instead of truncated.
const maxBytes = 72

// Hasher is a salted, deliberately slow one-way password hash.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using cost, clamped to bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a fresh bcrypt hash; every call uses a new random salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if err := Validate(plaintext); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Validate rejects passwords bcrypt cannot hash faithfully.
func Validate(plaintext string) error {
	if plaintext == "" {
		return fmt.Errorf("password is required: %w", domain.ErrBadRequest)
	}
	if len(plaintext) > maxBytes {
		return fmt.Errorf("password exceeds %d bytes: %w", maxBytes, domain.ErrBadRequest)
	}
	return nil
}

// Verify reports whether plaintext matches hash. Malformed hashes simply fail.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
