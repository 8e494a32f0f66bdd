// Package memory holds in-process stores for single-instance deployments and tests.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-user-service/internal/domain"
)

// VerificationStore keeps 2FA codes and reset tokens in a mutex-guarded map.
// Consume holds the lock across read-check-delete, so one caller wins per record.
type VerificationStore struct {
	mu    sync.Mutex
	items map[string]domain.Verification
}

func NewVerificationStore() *VerificationStore {
	return &VerificationStore{items: make(map[string]domain.Verification)}
}

func itemKey(verType, key string) string {
	return verType + ":" + key
}

func (s *VerificationStore) Put(_ context.Context, v *domain.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemKey(v.Type, v.Key)] = *v
	return nil
}

func (s *VerificationStore) Consume(_ context.Context, verType, key, secret string, now time.Time) (*domain.Verification, error) {
	k := itemKey(verType, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[k]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	err := v.Check(secret, now)
	switch {
	case errors.Is(err, domain.ErrCodeMismatch):
		if v.RecordFailure() {
			delete(s.items, k)
			return nil, domain.ErrTooManyAttempts
		}
		s.items[k] = v
		return nil, err
	case err != nil:
		delete(s.items, k)
		return nil, err
	}
	delete(s.items, k)
	return &v, nil
}

// Sweep removes every expired record and returns how many were dropped.
func (s *VerificationStore) Sweep(_ context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.items {
		if v.Expired(now) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// Len reports the number of stored records, expired or not.
func (s *VerificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *VerificationStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := s.Sweep(ctx, t); n > 0 {
				slog.Debug("swept expired verifications", "count", n)
			}
		}
	}
}
