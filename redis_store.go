package renovo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 5 * time.Second

// RedisStore keeps the credential pair in a Redis hash so several processes
// can share one session. There is no cross-process refresh lock; last writer
// wins, which is safe because every stored pair is valid on its own.
type RedisStore struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisStore creates a store writing to the given hash key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key, timeout: defaultRedisTimeout}
}

func (s *RedisStore) Load() (string, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return "", "", fmt.Errorf("read redis tokens: %w", err)
	}
	return fields["access"], fields["refresh"], nil
}

func (s *RedisStore) Save(access, refresh string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.HSet(ctx, s.key, "access", access, "refresh", refresh).Err(); err != nil {
		return fmt.Errorf("write redis tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear redis tokens: %w", err)
	}
	return nil
}
