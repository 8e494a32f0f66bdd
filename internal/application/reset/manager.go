// Package reset issues and redeems single-use password reset tokens.
package reset

import (
	"context"
	"fmt"
	"time"

	"github.com/go-user-service/internal/domain"
	pkgtoken "github.com/go-user-service/internal/pkg/token"
)

type verificationStore interface {
	Put(ctx context.Context, v *domain.Verification) error
	Consume(ctx context.Context, verType, key, secret string, now time.Time) (*domain.Verification, error)
}

// Manager stores reset tokens keyed by the digest of the token, so a reader
// of the store cannot redeem them. Uniqueness is per token, not per user: a second request leaves earlier tokens live until
// they expire or are redeemed.
type Manager struct {
	store verificationStore
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store verificationStore, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue returns a new 256-bit hex token bound to userID.
func (m *Manager) Issue(ctx context.Context, userID string) (string, error) {
	tok, err := pkgtoken.NewOpaque()
	if err != nil {
		return "", err
	}
	v := domain.NewVerification(domain.VerificationReset, pkgtoken.Digest(tok), userID, "", m.now(), m.ttl)
	if err := m.store.Put(ctx, v); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return tok, nil
}

// Redeem consumes tok and returns the user it was issued for. It fails with
// domain.ErrTokenNotFound or domain.ErrTokenExpired; either way the token is
// gone afterwards.
func (m *Manager) Redeem(ctx context.Context, tok string) (string, error) {
	if tok == "" {
		return "", fmt.Errorf("empty reset token: %w", domain.ErrTokenNotFound)
	}
	v, err := m.store.Consume(ctx, domain.VerificationReset, pkgtoken.Digest(tok), "", m.now())
	if err != nil {
		return "", fmt.Errorf("redeem reset token: %w", err)
	}
	return v.Subject, nil
}
