package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// Authentication failures. Anything not matching one of these is an infrastructure fault.
var (
	ErrPrincipalNotFound    = errors.New("principal not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrTokenNotFound        = errors.New("token not found")
	ErrTokenExpired         = errors.New("token expired")
	ErrSignatureInvalid     = errors.New("signature invalid")
	ErrSessionExpired       = errors.New("session expired")

	// ErrCodeMismatch is returned by verification stores when the record exists
	// but the submitted secret differs. The record is left in place.
	ErrCodeMismatch = errors.New("code mismatch")

	// ErrTooManyAttempts is returned when a wrong secret uses up the record's
	// attempt budget. The record is deleted.
	ErrTooManyAttempts = errors.New("too many attempts")
)
