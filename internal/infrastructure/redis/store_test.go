package redisstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-user-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1_700_000_000, 0)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *VerificationStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewVerificationStore(client)
}

func TestPut_SetsNativeTTLBackstop(t *testing.T) {
	mr, s := newTestStore(t)
	v := domain.NewVerification(domain.VerificationReset, "tok", "u1", "", t0, time.Hour)
	require.NoError(t, s.Put(context.Background(), v))

	assert.True(t, mr.Exists("vrf:reset:tok"))
	assert.Equal(t, time.Hour+expirySlack, mr.TTL("vrf:reset:tok"))
}

func TestConsume_SingleUse(t *testing.T) {
	ctx := context.Background()
	_, s := newTestStore(t)
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationTwoFactor, "u1", "u1", "123456", t0, time.Minute)))

	v, err := s.Consume(ctx, domain.VerificationTwoFactor, "u1", "123456", t0)
	require.NoError(t, err)
	assert.Equal(t, "u1", v.Subject)

	_, err = s.Consume(ctx, domain.VerificationTwoFactor, "u1", "123456", t0)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestConsume_MismatchKeepsRecord(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestStore(t)
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationTwoFactor, "u1", "u1", "123456", t0, time.Minute)))

	_, err := s.Consume(ctx, domain.VerificationTwoFactor, "u1", "999999", t0)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	assert.True(t, mr.Exists("vrf:2fa:u1"))

	_, err = s.Consume(ctx, domain.VerificationTwoFactor, "u1", "123456", t0)
	assert.NoError(t, err)
}

func TestConsume_AttemptLimitDeletesRecord(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestStore(t)
	v := domain.NewVerification(domain.VerificationTwoFactor, "u1", "u1", "123456", t0, time.Minute)
	v.MaxAttempts = 2
	require.NoError(t, s.Put(ctx, v))

	_, err := s.Consume(ctx, domain.VerificationTwoFactor, "u1", "999999", t0)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	assert.Equal(t, time.Minute+expirySlack, mr.TTL("vrf:2fa:u1"), "a failed attempt keeps the TTL")

	_, err = s.Consume(ctx, domain.VerificationTwoFactor, "u1", "999999", t0)
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)
	assert.False(t, mr.Exists("vrf:2fa:u1"))

	_, err = s.Consume(ctx, domain.VerificationTwoFactor, "u1", "123456", t0)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestConsume_ExpiredIsDeleted(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestStore(t)
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationReset, "tok", "u1", "", t0, time.Hour)))

	_, err := s.Consume(ctx, domain.VerificationReset, "tok", "", t0.Add(time.Hour+time.Second))
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	assert.False(t, mr.Exists("vrf:reset:tok"))
}

func TestConsume_NativeExpiryReadsAsNotFound(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestStore(t)
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationReset, "tok", "u1", "", t0, time.Hour)))

	mr.FastForward(2 * time.Hour)

	_, err := s.Consume(ctx, domain.VerificationReset, "tok", "", t0)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestConsume_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	_, s := newTestStore(t)
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationReset, "tok", "u1", "", t0, time.Hour)))

	const n = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.Consume(ctx, domain.VerificationReset, "tok", "", t0); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
