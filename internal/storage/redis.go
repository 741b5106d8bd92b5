package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lockagent:"

// RedisStore is the redis-backed KVStore implementation.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a redis-backed KVStore.
func NewRedisStore(client *redis.Client) KVStore {
	return &RedisStore{client: client}
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrKeyNotFound
		}
		return "", errors.Wrap(err, "failed to get key")
	}
	return value, nil
}

// Set stores value under key with no expiry. Collections live as long as the
// device owns them.
func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to set key")
	}
	return nil
}

// Remove deletes the key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "failed to remove key")
	}
	return nil
}
