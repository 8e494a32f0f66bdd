package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-user-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "vrf"
	// expirySlack keeps the native Redis TTL a little behind the logical expiry,
	// so reads observe expiry through ExpiresAt and delete the record themselves.
	expirySlack = time.Minute
	maxRetries  = 4
)

// VerificationStore keeps 2FA codes and reset tokens as JSON values.
// Consume runs inside WATCH/MULTI so concurrent consumers of one key cannot both win.
type VerificationStore struct {
	client *redis.Client
}

func NewVerificationStore(client *redis.Client) *VerificationStore {
	return &VerificationStore{client: client}
}

// Connect parses a redis:// URL and pings the server before returning the client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *VerificationStore) key(verType, key string) string {
	return keyPrefix + ":" + verType + ":" + key
}

func (s *VerificationStore) Put(ctx context.Context, v *domain.Verification) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	ttl := v.Lifetime() + expirySlack
	if err := s.client.Set(ctx, s.key(v.Type, v.Key), data, ttl).Err(); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}
	return nil
}

func (s *VerificationStore) Consume(ctx context.Context, verType, key, secret string, now time.Time) (*domain.Verification, error) {
	k := s.key(verType, key)

	for i := 0; i < maxRetries; i++ {
		var consumed *domain.Verification
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, k).Bytes()
			if err != nil {
				return err
			}
			var v domain.Verification
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("decode verification: %w", err)
			}

			checkErr := v.Check(secret, now)
			if errors.Is(checkErr, domain.ErrCodeMismatch) {
				return s.recordFailure(ctx, tx, k, &v)
			}
			// Both a valid and an expired record are deleted.
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, k)
				return nil
			})
			if err != nil {
				return err
			}
			if checkErr != nil {
				return checkErr
			}
			consumed = &v
			return nil
		}, k)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return nil, domain.ErrTokenNotFound
		case err != nil:
			return nil, err
		}
		return consumed, nil
	}
	// Every attempt lost to a concurrent writer; the record is gone or replaced.
	return nil, domain.ErrTokenNotFound
}

// recordFailure counts a wrong secret inside the caller's WATCH. The record
// keeps its native TTL; once exhausted it is deleted.
func (s *VerificationStore) recordFailure(ctx context.Context, tx *redis.Tx, k string, v *domain.Verification) error {
	exhausted := v.RecordFailure()
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if exhausted {
			pipe.Del(ctx, k)
		} else {
			pipe.Set(ctx, k, data, redis.KeepTTL)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if exhausted {
		return domain.ErrTooManyAttempts
	}
	return domain.ErrCodeMismatch
}
