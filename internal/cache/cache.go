// Package cache wraps the process-external TTL cache used by the Course
// Resolver for its per-name course lookups. It also backs the Preview
// Wakeup Job's give-up ledger. All of it is Redis-backed so it can
// outlive a single process, unlike the in-memory guards of
// internal/guard (which are deliberately per-process). The provider
// access token is not stored here; provider.Client caches it in memory.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is a small JSON-blob TTL cache over Redis.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStore creates a cache store.
func NewStore(client *redis.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger}
}

// Set marshals v as JSON and stores it under key with the given TTL.
func (s *Store) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}

// Get unmarshals the cached value into dst. Returns false if absent or expired.
func (s *Store) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate removes key.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// giveUpKey names the Redis set used as the dead-letter style ledger of
// recordings the Preview Wakeup Job gave up on: those whose artifact
// already had a thumbnail while its processing status was not ready.
const giveUpKey = "wakeup:giveup"

// MarkGivenUp records recordingID as abandoned by the Wakeup Job.
func (s *Store) MarkGivenUp(ctx context.Context, recordingID string) error {
	return s.client.SAdd(ctx, giveUpKey, recordingID).Err()
}

// IsGivenUp reports whether the Wakeup Job has already given up on recordingID.
func (s *Store) IsGivenUp(ctx context.Context, recordingID string) (bool, error) {
	return s.client.SIsMember(ctx, giveUpKey, recordingID).Result()
}
