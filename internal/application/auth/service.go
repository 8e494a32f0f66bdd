package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-user-service/internal/domain"
	"github.com/go-user-service/internal/infrastructure/metrics"
	"github.com/go-user-service/internal/pkg/password"
)

// Stage is where a login attempt ended up.
type Stage string

const (
	StageAwaitingSecondFactor Stage = "awaiting_second_factor"
	StageAuthenticated        Stage = "authenticated"
)

// LoginResult carries a session token only when Stage is StageAuthenticated.
type LoginResult struct {
	Stage Stage
	Token string
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type VerifySecondFactorRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Code       string `json:"code" validate:"required"`
}

type PasswordResetRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type CompletePasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type Service interface {
	Login(ctx context.Context, identifier, plaintext string) (*LoginResult, error)
	VerifySecondFactor(ctx context.Context, identifier, code string) (*LoginResult, error)
	RequestPasswordReset(ctx context.Context, identifier string) error
	CompletePasswordReset(ctx context.Context, token, newPlaintext string) error
}

type userDirectory interface {
	FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

type credentialStore interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type codeManager interface {
	Issue(ctx context.Context, principalKey string) (string, error)
	Verify(ctx context.Context, principalKey, code string) (bool, error)
}

type resetManager interface {
	Issue(ctx context.Context, userID string) (string, error)
	Redeem(ctx context.Context, token string) (string, error)
}

type tokenSigner interface {
	Sign(p domain.Principal) (string, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	users  userDirectory
	hasher credentialStore
	codes  codeManager
	resets resetManager
	signer tokenSigner
	mailer mailer
	sms    smsSender

	dummyOnce sync.Once
	dummyHash string
}

// ServiceDeps wires the orchestrator. SMSSender may be nil, in which case
// every second-factor code goes out by email.
type ServiceDeps struct {
	UserRepo    userDirectory
	Hasher      credentialStore
	Codes       codeManager
	Resets      resetManager
	JWTProvider tokenSigner
	Mailer      mailer
	SMSSender   smsSender
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:  deps.UserRepo,
		hasher: deps.Hasher,
		codes:  deps.Codes,
		resets: deps.Resets,
		signer: deps.JWTProvider,
		mailer: deps.Mailer,
		sms:    deps.SMSSender,
	}
}

func (s *service) Login(ctx context.Context, identifier, plaintext string) (*LoginResult, error) {
	u, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			s.verifyDummy(plaintext)
		}
		metrics.RecordLogin(outcomeFor(err))
		return nil, err
	}
	if !s.hasher.Verify(plaintext, u.PasswordHash) || !u.Enable {
		metrics.RecordLogin(metrics.OutcomeInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	if u.TwoFactorEnabled {
		code, err := s.codes.Issue(ctx, u.UserID)
		if err != nil {
			metrics.RecordLogin(metrics.OutcomeError)
			return nil, err
		}
		if err := s.deliverCode(ctx, u, code); err != nil {
			metrics.RecordLogin(metrics.OutcomeError)
			return nil, err
		}
		metrics.RecordLogin(metrics.OutcomeSecondFactorSent)
		return &LoginResult{Stage: StageAwaitingSecondFactor}, nil
	}

	tok, err := s.signer.Sign(u.Principal())
	if err != nil {
		metrics.RecordLogin(metrics.OutcomeError)
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	metrics.RecordLogin(metrics.OutcomeAuthenticated)
	return &LoginResult{Stage: StageAuthenticated, Token: tok}, nil
}

// VerifySecondFactor resolves identifier to the user first because codes are
// keyed by user id; the same code is reachable by username or email. An
// unknown identifier or a disabled account is reported exactly like a wrong
// code, and the code is left untouched.
func (s *service) VerifySecondFactor(ctx context.Context, identifier, code string) (*LoginResult, error) {
	u, err := s.lookup(ctx, identifier)
	if errors.Is(err, domain.ErrPrincipalNotFound) {
		metrics.RecordSecondFactor(metrics.OutcomeInvalidCode)
		return nil, domain.ErrInvalidOrExpiredCode
	}
	if err != nil {
		metrics.RecordSecondFactor(metrics.OutcomeError)
		return nil, err
	}
	if !u.Enable {
		metrics.RecordSecondFactor(metrics.OutcomeInvalidCode)
		return nil, domain.ErrInvalidOrExpiredCode
	}

	ok, err := s.codes.Verify(ctx, u.UserID, code)
	if err != nil {
		metrics.RecordSecondFactor(metrics.OutcomeError)
		return nil, err
	}
	if !ok {
		metrics.RecordSecondFactor(metrics.OutcomeInvalidCode)
		return nil, domain.ErrInvalidOrExpiredCode
	}

	tok, err := s.signer.Sign(u.Principal())
	if err != nil {
		metrics.RecordSecondFactor(metrics.OutcomeError)
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	metrics.RecordSecondFactor(metrics.OutcomeAuthenticated)
	return &LoginResult{Stage: StageAuthenticated, Token: tok}, nil
}

func (s *service) RequestPasswordReset(ctx context.Context, identifier string) error {
	u, err := s.lookup(ctx, identifier)
	if err != nil {
		metrics.RecordPasswordReset(metrics.StageRequest, outcomeFor(err))
		return err
	}
	tok, err := s.resets.Issue(ctx, u.UserID)
	if err != nil {
		metrics.RecordPasswordReset(metrics.StageRequest, metrics.OutcomeError)
		return err
	}
	if err := s.mailer.SendEmail(u.Email, "Password reset", "Use this token to reset your password: "+tok); err != nil {
		metrics.RecordPasswordReset(metrics.StageRequest, metrics.OutcomeError)
		return fmt.Errorf("send reset token: %w", err)
	}
	metrics.RecordPasswordReset(metrics.StageRequest, metrics.OutcomeIssued)
	return nil
}

// CompletePasswordReset consumes the token before hashing. A failure after
// redemption leaves the token spent; the caller must request a new one.
func (s *service) CompletePasswordReset(ctx context.Context, token, newPlaintext string) error {
	if err := password.Validate(newPlaintext); err != nil {
		return err
	}
	userID, err := s.resets.Redeem(ctx, token)
	if err != nil {
		metrics.RecordPasswordReset(metrics.StageComplete, outcomeFor(err))
		return err
	}
	hash, err := s.hasher.Hash(newPlaintext)
	if err != nil {
		metrics.RecordPasswordReset(metrics.StageComplete, metrics.OutcomeError)
		slog.Error("reset token spent but hashing failed", "user_id", userID, "err", err)
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		metrics.RecordPasswordReset(metrics.StageComplete, metrics.OutcomeError)
		slog.Error("reset token spent but password update failed", "user_id", userID, "err", err)
		return fmt.Errorf("update password: %w", err)
	}
	metrics.RecordPasswordReset(metrics.StageComplete, metrics.OutcomeRedeemed)
	slog.Info("password reset completed", "user_id", userID)
	return nil
}

func (s *service) lookup(ctx context.Context, identifier string) (*domain.User, error) {
	u, err := s.users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up principal: %w", err)
	}
	return u, nil
}

// verifyDummy spends one password comparison on an unknown principal so the
// miss is not faster than a wrong password. The placeholder hash is made
// on first use with the configured hasher, so it carries the same cost.
func (s *service) verifyDummy(plaintext string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("placeholder-for-unknown-principals")
		if err != nil {
			slog.Warn("could not build placeholder hash", "err", err)
		}
		s.dummyHash = h
	})
	s.hasher.Verify(plaintext, s.dummyHash)
}

func (s *service) deliverCode(ctx context.Context, u *domain.User, code string) error {
	msg := "Your login code: " + code
	if s.sms != nil && u.SecondFactorChannel() == domain.ChannelSMS {
		if err := s.sms.SendSMS(ctx, *u.Phone, msg); err != nil {
			metrics.RecordDelivery(domain.ChannelSMS, metrics.StatusFailed)
			return fmt.Errorf("send 2fa sms: %w", err)
		}
		metrics.RecordDelivery(domain.ChannelSMS, metrics.StatusSent)
		return nil
	}
	if err := s.mailer.SendEmail(u.Email, "Your login code", msg); err != nil {
		return fmt.Errorf("send 2fa email: %w", err)
	}
	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrPrincipalNotFound):
		return metrics.OutcomePrincipalNotFound
	case errors.Is(err, domain.ErrTokenNotFound):
		return metrics.OutcomeTokenNotFound
	case errors.Is(err, domain.ErrTokenExpired):
		return metrics.OutcomeTokenExpired
	default:
		return metrics.OutcomeError
	}
}
