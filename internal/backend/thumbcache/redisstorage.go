package thumbcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps entries as redis strings under <prefix><namespace>:<index>.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage connects to addr and verifies the connection. A zero ttl
// keeps entries until they are cleared.
func NewRedisStorage(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisStorage) key(key Key) string {
	return s.prefix + key.Namespace + ":" + key.Name()
}

func (s *RedisStorage) Read(ctx context.Context, key Key) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry %s: %w", s.key(key), err)
	}
	return data, true, nil
}

func (s *RedisStorage) Write(ctx context.Context, key Key, data []byte) error {
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	return nil
}

func (s *RedisStorage) Clear(ctx context.Context, namespace string) error {
	iter := s.client.Scan(ctx, 0, s.prefix+namespace+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cache namespace %s: %w", namespace, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clearing cache namespace %s: %w", namespace, err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
