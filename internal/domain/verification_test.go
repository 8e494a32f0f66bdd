package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewVerification_ExpiresAtIsIssuedPlusTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerification(VerificationReset, "tok", "u1", "", now, time.Hour)

	assert.Equal(t, now.UnixNano(), v.IssuedAt)
	assert.Equal(t, now.Add(time.Hour).UnixNano(), v.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour).Unix(), v.TTL)
	assert.Equal(t, time.Hour, v.Lifetime())
}

func TestNewVerification_TTLRoundsUp(t *testing.T) {
	now := time.Unix(1_700_000_000, int64(900*time.Millisecond))
	v := NewVerification(VerificationReset, "tok", "u1", "", now, time.Minute)

	assert.Equal(t, int64(1_700_000_061), v.TTL)
}

func TestVerification_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerification(VerificationTwoFactor, "alice", "u1", "123456", now, time.Minute)

	assert.False(t, v.Expired(now))
	assert.False(t, v.Expired(now.Add(time.Minute)), "expiry instant is still valid")
	assert.True(t, v.Expired(now.Add(time.Minute+time.Nanosecond)))
}

func TestVerification_ExpiredSubSecond(t *testing.T) {
	now := time.Unix(1_700_000_000, int64(900*time.Millisecond))
	v := NewVerification(VerificationTwoFactor, "alice", "u1", "123456", now, 5*time.Minute)

	assert.False(t, v.Expired(now.Add(5*time.Minute)))
	assert.True(t, v.Expired(now.Add(5*time.Minute+50*time.Millisecond)))
	assert.ErrorIs(t, v.Check("123456", now.Add(5*time.Minute+50*time.Millisecond)), ErrTokenExpired)
}

func TestVerification_RecordFailure(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerification(VerificationTwoFactor, "alice", "u1", "123456", now, time.Minute)
	v.MaxAttempts = 3

	assert.False(t, v.RecordFailure())
	assert.False(t, v.RecordFailure())
	assert.True(t, v.RecordFailure())
	assert.ErrorIs(t, v.Check("123456", now), ErrTooManyAttempts, "an exhausted record rejects the right code too")

	unlimited := NewVerification(VerificationReset, "tok", "u1", "", now, time.Minute)
	for i := 0; i < 100; i++ {
		assert.False(t, unlimited.RecordFailure())
	}
}

func TestUser_SecondFactorChannel(t *testing.T) {
	phone := "+15550001"
	u := &User{TwoFactorChannel: ChannelSMS, Phone: &phone}
	assert.Equal(t, ChannelEmail, u.SecondFactorChannel(), "unconfirmed phone falls back to email")

	u.PhoneConfirmed = true
	assert.Equal(t, ChannelSMS, u.SecondFactorChannel())

	u.Phone = nil
	assert.Equal(t, ChannelEmail, u.SecondFactorChannel())
}

func TestVerification_Check(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerification(VerificationTwoFactor, "alice", "u1", "123456", now, time.Minute)

	assert.NoError(t, v.Check("123456", now))
	assert.ErrorIs(t, v.Check("654321", now), ErrCodeMismatch)
	assert.ErrorIs(t, v.Check("12345", now), ErrCodeMismatch)
	assert.ErrorIs(t, v.Check("123456", now.Add(2*time.Minute)), ErrTokenExpired)
	assert.NoError(t, v.Check("", now), "reset tokens are matched by key")
}
