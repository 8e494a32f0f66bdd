package reset

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-user-service/internal/domain"
	"github.com/go-user-service/internal/infrastructure/memory"
	pkgtoken "github.com/go-user-service/internal/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() (*Manager, *memory.VerificationStore, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	store := memory.NewVerificationStore()
	m := NewManager(store, time.Hour).WithClock(func() time.Time { return now })
	return m, store, &now
}

func TestIssue_TokenShape(t *testing.T) {
	m, _, _ := newManager()
	a, err := m.Issue(context.Background(), "u1")
	require.NoError(t, err)
	b, err := m.Issue(context.Background(), "u1")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestRedeem_RoundTripThenNotFound(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager()
	tok, err := m.Issue(ctx, "u1")
	require.NoError(t, err)

	userID, err := m.Redeem(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = m.Redeem(ctx, tok)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestRedeem_Expired(t *testing.T) {
	ctx := context.Background()
	m, store, now := newManager()
	tok, err := m.Issue(ctx, "u1")
	require.NoError(t, err)

	*now = now.Add(time.Hour + time.Second)
	_, err = m.Redeem(ctx, tok)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	assert.Equal(t, 0, store.Len())

	_, err = m.Redeem(ctx, tok)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestRedeem_UnknownAndEmpty(t *testing.T) {
	m, _, _ := newManager()
	_, err := m.Redeem(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	_, err = m.Redeem(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestIssue_EarlierTokensStayLive(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager()
	first, err := m.Issue(ctx, "u1")
	require.NoError(t, err)
	_, err = m.Issue(ctx, "u1")
	require.NoError(t, err)

	userID, err := m.Redeem(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestRedeem_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager()
	tok, err := m.Issue(ctx, "u1")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Redeem(ctx, tok); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

type capturingStore struct {
	*memory.VerificationStore
	last *domain.Verification
}

func (s *capturingStore) Put(ctx context.Context, v *domain.Verification) error {
	s.last = v
	return s.VerificationStore.Put(ctx, v)
}

func TestIssue_StoresDigestOnly(t *testing.T) {
	ctx := context.Background()
	store := &capturingStore{VerificationStore: memory.NewVerificationStore()}
	m := NewManager(store, time.Hour)
	tok, err := m.Issue(ctx, "u1")
	require.NoError(t, err)

	require.NotNil(t, store.last)
	assert.Equal(t, pkgtoken.Digest(tok), store.last.Key)
	assert.Empty(t, store.last.Code)

	_, err = m.Redeem(ctx, store.last.Key)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound, "the stored key is not itself a token")

	userID, err := m.Redeem(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}
