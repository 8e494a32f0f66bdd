package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-user-service/internal/domain"
)

// UserRepo is an in-process user directory with the same contract as dynamo.UserRepo.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]domain.User)}
}

// Put inserts u. The user id, username and email must all be new.
func (r *UserRepo) Put(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, other := range r.users {
		if id == u.UserID {
			return fmt.Errorf("user id already exists: %w", domain.ErrConflict)
		}
		if other.Username == u.Username || strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("username or email taken: %w", domain.ErrConflict)
		}
	}
	r.users[u.UserID] = *u
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

// FindByIdentifier resolves a username first, then an email address.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if u, err := r.GetByUsername(ctx, identifier); err == nil {
		return u, nil
	}
	return r.GetByEmail(ctx, identifier)
}

func (r *UserRepo) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return r.update(userID, func(u *domain.User) { u.PasswordHash = hash })
}

func (r *UserRepo) SetTwoFactor(_ context.Context, userID string, enabled bool) error {
	return r.update(userID, func(u *domain.User) { u.TwoFactorEnabled = enabled })
}

func (r *UserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
}

func (r *UserRepo) update(userID string, apply func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	apply(&u)
	u.UpdatedAt = time.Now().UTC()
	r.users[userID] = u
	return nil
}
