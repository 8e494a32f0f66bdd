package domain

import (
	"crypto/subtle"
	"time"
)

// Verification types stored in the user_verifications table.
const (
	VerificationTwoFactor = "2fa"
	VerificationReset     = "reset"
)

// Verification is a short-lived single-use secret.
// PK: key, SK: type. For "2fa" the key is the principal key and Code holds the
// digest of the one-time code; for "reset" the key is the digest of the opaque
// token and Code is empty. Stores never see a plaintext secret.
//
// IssuedAt and ExpiresAt are Unix nanoseconds. TTL is ExpiresAt rounded up to
// whole seconds for the DynamoDB TTL attribute and is never used for expiry.
type Verification struct {
	Key         string `json:"key" dynamodbav:"key"`
	Type        string `json:"type" dynamodbav:"type"`
	Subject     string `json:"subject" dynamodbav:"subject"` // user_id of the principal
	Code        string `json:"code,omitempty" dynamodbav:"code"`
	Attempts    int    `json:"attempts" dynamodbav:"attempts"`
	MaxAttempts int    `json:"max_attempts,omitempty" dynamodbav:"max_attempts"` // 0 means unlimited
	IssuedAt    int64  `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt   int64  `json:"expires_at" dynamodbav:"expires_at"`
	TTL         int64  `json:"-" dynamodbav:"ttl"`
}

// NewVerification builds a record issued at now that lives for ttl.
func NewVerification(verType, key, subject, code string, now time.Time, ttl time.Duration) *Verification {
	expires := now.Add(ttl)
	ttlSec := expires.Unix()
	if expires.Nanosecond() > 0 {
		ttlSec++
	}
	return &Verification{
		Key:       key,
		Type:      verType,
		Subject:   subject,
		Code:      code,
		IssuedAt:  now.UnixNano(),
		ExpiresAt: expires.UnixNano(),
		TTL:       ttlSec,
	}
}

// Lifetime is the span between issue and expiry.
func (v *Verification) Lifetime() time.Duration {
	return time.Duration(v.ExpiresAt - v.IssuedAt)
}

// Expired is the one expiry predicate used by every store and sweep.
// A record is still valid at exactly its expiry instant.
func (v *Verification) Expired(now time.Time) bool {
	return now.UnixNano() > v.ExpiresAt
}

// Exhausted reports whether the attempt budget is used up.
func (v *Verification) Exhausted() bool {
	return v.MaxAttempts > 0 && v.Attempts >= v.MaxAttempts
}

// RecordFailure counts one wrong secret and reports whether the record is now exhausted.
func (v *Verification) RecordFailure() bool {
	v.Attempts++
	return v.Exhausted()
}

// Check classifies a stored record against a submitted secret at now.
// It returns ErrTokenExpired, ErrTooManyAttempts, ErrCodeMismatch or nil
// (consumable). An empty secret matches any record; reset tokens are
// addressed by key alone.
func (v *Verification) Check(secret string, now time.Time) error {
	if v.Expired(now) {
		return ErrTokenExpired
	}
	if v.Exhausted() {
		return ErrTooManyAttempts
	}
	if secret != "" && subtle.ConstantTimeCompare([]byte(v.Code), []byte(secret)) != 1 {
		return ErrCodeMismatch
	}
	return nil
}
