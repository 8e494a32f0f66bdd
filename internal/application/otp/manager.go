// Package otp issues and verifies short-lived numeric codes for second-factor login.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-user-service/internal/domain"
	pkgtoken "github.com/go-user-service/internal/pkg/token"
)

const (
	// CodeLength is the number of decimal digits in an issued code.
	CodeLength = 6
	// DefaultMaxAttempts is how many wrong guesses a code survives before it is deleted.
	DefaultMaxAttempts = 5
)

type verificationStore interface {
	Put(ctx context.Context, v *domain.Verification) error
	Consume(ctx context.Context, verType, key, secret string, now time.Time) (*domain.Verification, error)
}

// Manager keeps at most one live code per principal key. It never delivers
// codes; callers hand the returned code to a mail or SMS sender. Only the
// code's digest reaches the store.
type Manager struct {
	store       verificationStore
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewManager(store verificationStore, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl, maxAttempts: DefaultMaxAttempts, now: time.Now}
}

// WithMaxAttempts sets the wrong-guess budget of newly issued codes.
// Values below one keep the current budget.
func (m *Manager) WithMaxAttempts(n int) *Manager {
	if n > 0 {
		m.maxAttempts = n
	}
	return m
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue stores a fresh code for principalKey, replacing any previous one.
func (m *Manager) Issue(ctx context.Context, principalKey string) (string, error) {
	code, err := pkgtoken.NewNumericCode(CodeLength)
	if err != nil {
		return "", err
	}
	v := domain.NewVerification(domain.VerificationTwoFactor, principalKey, principalKey, pkgtoken.Digest(code), m.now(), m.ttl)
	v.MaxAttempts = m.maxAttempts
	if err := m.store.Put(ctx, v); err != nil {
		return "", fmt.Errorf("store 2fa code: %w", err)
	}
	return code, nil
}

// Verify reports whether code is the live code for principalKey and consumes
// it on success. Missing, expired, mismatched and exhausted codes yield
// (false, nil); the error is reserved for store failures.
func (m *Manager) Verify(ctx context.Context, principalKey, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	_, err := m.store.Consume(ctx, domain.VerificationTwoFactor, principalKey, pkgtoken.Digest(code), m.now())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrCodeMismatch),
		errors.Is(err, domain.ErrTooManyAttempts):
		return false, nil
	default:
		return false, fmt.Errorf("consume 2fa code: %w", err)
	}
}
