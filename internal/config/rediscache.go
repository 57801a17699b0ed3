package config

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCachedStore wraps a Store with a shared L2 cache so multiple server
// processes serving the same corpus don't each cold-read the backing KV
// document on first request after a restart. The Resolver's own in-process
// map remains the L1 cache; Redis is the cross-process tier invalidated on
// every Put/Delete, same as §5's "Configuration cache is read-mostly; writes
// invalidate the affected corpus entry atomically."
type RedisCachedStore struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
}

func NewRedisCachedStore(inner Store, rdb *redis.Client) *RedisCachedStore {
	return &RedisCachedStore{inner: inner, rdb: rdb, ttl: 5 * time.Minute}
}

func redisKey(corpusID string) string { return "tribrid:config:" + corpusID }

func (s *RedisCachedStore) Get(ctx context.Context, corpusID string) (ScopedConfiguration, bool, error) {
	if raw, err := s.rdb.Get(ctx, redisKey(corpusID)).Bytes(); err == nil {
		var cfg ScopedConfiguration
		if jsonErr := json.Unmarshal(raw, &cfg); jsonErr == nil {
			return cfg, true, nil
		}
	}

	cfg, found, err := s.inner.Get(ctx, corpusID)
	if err != nil || !found {
		return cfg, found, err
	}
	if raw, mErr := json.Marshal(cfg); mErr == nil {
		_ = s.rdb.Set(ctx, redisKey(corpusID), raw, s.ttl).Err()
	}
	return cfg, true, nil
}

func (s *RedisCachedStore) Put(ctx context.Context, corpusID string, cfg ScopedConfiguration) error {
	if err := s.inner.Put(ctx, corpusID, cfg); err != nil {
		return err
	}
	return s.rdb.Del(ctx, redisKey(corpusID)).Err()
}

func (s *RedisCachedStore) Delete(ctx context.Context, corpusID string) error {
	if err := s.inner.Delete(ctx, corpusID); err != nil {
		return err
	}
	return s.rdb.Del(ctx, redisKey(corpusID)).Err()
}
