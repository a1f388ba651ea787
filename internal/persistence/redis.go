package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisBackend = "redis"

// RedisStore persists the cache blob under a single Redis key. A SET of one
// key is atomic on the server, so readers get the all-old-or-all-new
// guarantee and concurrent saves serialize on the server side for free.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore verifies connectivity and resolves the storage key.
func NewRedisStore(ctx context.Context, client *redis.Client, key string) (*RedisStore, error) {
	if key == "" {
		return nil, &CreationError{Backend: redisBackend, Err: errors.New("key is required")}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &CreationError{Backend: redisBackend, Err: fmt.Errorf("redis ping failed: %w", err)}
	}
	return &RedisStore{client: client, key: key}, nil
}

// Load implements Persistence.
func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // First run.
		}
		return nil, &ReadError{Backend: redisBackend, Err: err}
	}
	return blob, nil
}

// Save implements Persistence. The blob never expires; it is replaced on
// the next successful acquisition.
func (s *RedisStore) Save(ctx context.Context, blob []byte) error {
	if err := s.client.Set(ctx, s.key, blob, 0).Err(); err != nil {
		return &WriteError{Backend: redisBackend, Err: err}
	}
	return nil
}
