package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-user-service/internal/domain"
	"github.com/go-user-service/internal/pkg/id"
)

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	SetTwoFactor(ctx context.Context, userID string, enabled bool) (*domain.User, error)
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	SetTwoFactor(ctx context.Context, userID string, enabled bool) error
}

type hasher interface {
	Hash(plaintext string) (string, error)
}

type service struct {
	repo   userStore
	hasher hasher
	now    func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
	Hasher   hasher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:   deps.UserRepo,
		hasher: deps.Hasher,
		now:    time.Now,
	}
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureFree(ctx, req.Username, email); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:           id.New(),
		Username:         req.Username,
		Email:            email,
		Phone:            req.Phone,
		PasswordHash:     hash,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Role:             domain.RoleUser,
		TwoFactorChannel: domain.ChannelEmail,
		Enable:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) SetTwoFactor(ctx context.Context, userID string, enabled bool) (*domain.User, error) {
	if err := s.repo.SetTwoFactor(ctx, userID, enabled); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

// ensureFree fails with domain.ErrConflict when either name is taken. Login
// resolves an identifier as a username and then as an email, so each name is
// checked against both indexes. Lookup failures other than not-found are
// returned as is.
func (s *service) ensureFree(ctx context.Context, username, email string) error {
	checks := []struct {
		lookup func(context.Context, string) (*domain.User, error)
		value  string
		msg    string
	}{
		{s.repo.GetByUsername, username, "username already taken"},
		{s.repo.GetByEmail, username, "username matches a registered email"},
		{s.repo.GetByEmail, email, "email already registered"},
		{s.repo.GetByUsername, email, "email matches a registered username"},
	}
	for _, c := range checks {
		if _, err := c.lookup(ctx, c.value); err == nil {
			return fmt.Errorf("%s: %w", c.msg, domain.ErrConflict)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}
