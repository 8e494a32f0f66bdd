package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-user-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1_700_000_000, 0)

func TestConsume_NotFound(t *testing.T) {
	s := NewVerificationStore()
	_, err := s.Consume(context.Background(), domain.VerificationReset, "missing", "", t0)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestConsume_SingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewVerificationStore()
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationTwoFactor, "alice", "u1", "123456", t0, time.Minute)))

	v, err := s.Consume(ctx, domain.VerificationTwoFactor, "alice", "123456", t0)
	require.NoError(t, err)
	assert.Equal(t, "u1", v.Subject)

	_, err = s.Consume(ctx, domain.VerificationTwoFactor, "alice", "123456", t0)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestConsume_MismatchKeepsRecord(t *testing.T) {
	ctx := context.Background()
	s := NewVerificationStore()
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationTwoFactor, "alice", "u1", "123456", t0, time.Minute)))

	_, err := s.Consume(ctx, domain.VerificationTwoFactor, "alice", "000000", t0)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	assert.Equal(t, 1, s.Len())

	_, err = s.Consume(ctx, domain.VerificationTwoFactor, "alice", "123456", t0)
	assert.NoError(t, err)
}

func TestConsume_AttemptLimitDeletesRecord(t *testing.T) {
	ctx := context.Background()
	s := NewVerificationStore()
	v := domain.NewVerification(domain.VerificationTwoFactor, "alice", "u1", "123456", t0, time.Minute)
	v.MaxAttempts = 3
	require.NoError(t, s.Put(ctx, v))

	for i := 0; i < 2; i++ {
		_, err := s.Consume(ctx, domain.VerificationTwoFactor, "alice", "000000", t0)
		assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	}
	_, err := s.Consume(ctx, domain.VerificationTwoFactor, "alice", "000000", t0)
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)
	assert.Equal(t, 0, s.Len())

	_, err = s.Consume(ctx, domain.VerificationTwoFactor, "alice", "123456", t0)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestConsume_ExpiredIsDeleted(t *testing.T) {
	ctx := context.Background()
	s := NewVerificationStore()
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationReset, "tok", "u1", "", t0, time.Hour)))

	_, err := s.Consume(ctx, domain.VerificationReset, "tok", "", t0.Add(time.Hour+time.Second))
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	assert.Equal(t, 0, s.Len())
}

func TestPut_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := NewVerificationStore()
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationTwoFactor, "alice", "u1", "111111", t0, time.Minute)))
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationTwoFactor, "alice", "u1", "222222", t0, time.Minute)))

	_, err := s.Consume(ctx, domain.VerificationTwoFactor, "alice", "111111", t0)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	_, err = s.Consume(ctx, domain.VerificationTwoFactor, "alice", "222222", t0)
	assert.NoError(t, err)
}

func TestTypesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := NewVerificationStore()
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationTwoFactor, "k", "u1", "123456", t0, time.Minute)))

	_, err := s.Consume(ctx, domain.VerificationReset, "k", "", t0)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestConsume_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewVerificationStore()
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationTwoFactor, "alice", "u1", "123456", t0, time.Minute)))

	const n = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.Consume(ctx, domain.VerificationTwoFactor, "alice", "123456", t0); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestSweep_UsesExpiryPredicate(t *testing.T) {
	ctx := context.Background()
	s := NewVerificationStore()
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationReset, "old", "u1", "", t0, time.Minute)))
	require.NoError(t, s.Put(ctx, domain.NewVerification(domain.VerificationReset, "new", "u1", "", t0, time.Hour)))

	assert.Equal(t, 1, s.Sweep(ctx, t0.Add(10*time.Minute)))
	assert.Equal(t, 1, s.Len())

	_, err := s.Consume(ctx, domain.VerificationReset, "new", "", t0.Add(10*time.Minute))
	assert.NoError(t, err)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	s := NewVerificationStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
