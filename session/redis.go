package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gac"

// RedisStore keeps session artifacts as Redis string keys of the form
// prefix:scope:key, each with its own TTL.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// An empty prefix selects "gac".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(sc Context, name string) string {
	return s.prefix + ":" + sc.Scope + ":" + name
}

// Read may return an error wrapping [ErrStoreUnavailable] when Redis fails.
func (s *RedisStore) Read(ctx context.Context, sc Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = s.key(sc, k)
	}

	values, err := s.redis.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok || str == "" {
			continue
		}
		out[keys[i]] = str
	}
	return out, nil
}

// A non-positive MaxAge stores the value without expiry.
func (s *RedisStore) Write(ctx context.Context, sc Context, key, value string, opts WriteOptions) error {
	if key == "" {
		return ErrInvalidKey
	}
	ttl := opts.MaxAge
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, s.key(sc, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, sc Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := s.redis.Del(ctx, s.key(sc, key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
