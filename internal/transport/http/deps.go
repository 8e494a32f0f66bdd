package http

import (
	"context"
	"time"

	"github.com/go-user-service/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user directory.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindByIdentifier resolves a username first, then an email address.
	FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetTwoFactor(ctx context.Context, userID string, enabled bool) error
}

// VerificationStore holds 2FA codes and reset tokens. Consume must be atomic:
// of N concurrent callers presenting the same live secret, exactly one wins.
type VerificationStore interface {
	Put(ctx context.Context, v *domain.Verification) error
	Consume(ctx context.Context, verType, key, secret string, now time.Time) (*domain.Verification, error)
}
