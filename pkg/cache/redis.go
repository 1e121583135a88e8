package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces query entries in a shared Redis instance.
const redisKeyPrefix = "piapi:query:"

// RedisStore is an opt-in Store backend for deployments that want query
// results to survive the process or be shared between workers. The default
// remains MemoryStore; behavior is identical apart from durability.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Get returns the cached entities for fingerprint, or ErrCacheMiss.
func (s *RedisStore) Get(ctx context.Context, fingerprint string) ([]json.RawMessage, error) {
	data, err := s.redis.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entities []json.RawMessage
	if err := json.Unmarshal(data, &entities); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("decode cached entities: %w", err)
	}

	cacheHits.WithLabelValues("redis").Inc()
	return entities, nil
}

// Put stores entities under fingerprint, replacing any previous entry.
// Entries are written without TTL, matching the no-expiry cache contract.
func (s *RedisStore) Put(ctx context.Context, fingerprint string, entities []json.RawMessage) error {
	data, err := json.Marshal(entities)
	if err != nil {
		cacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("encode cached entities: %w", err)
	}

	if err := s.redis.Set(ctx, redisKeyPrefix+fingerprint, data, 0).Err(); err != nil {
		cacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}
