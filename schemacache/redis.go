package schemacache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys.
	// Default: "structout:schema:"
	KeyPrefix string

	// TTL expires entries; zero keeps them until evicted.
	TTL time.Duration
}

// RedisStore shares entries between processes through Redis.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a store over an existing client.
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "structout:schema:"
	}
	return &RedisStore{client: config.Client, keyPrefix: config.KeyPrefix, ttl: config.TTL}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get key %s: %w", s.keyPrefix+key, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return e, true, nil
}

// Put stores e unless the key already exists, so concurrent writers agree
// on the first entry.
func (s *RedisStore) Put(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := s.client.SetNX(ctx, s.keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", s.keyPrefix+key, err)
	}
	return nil
}
