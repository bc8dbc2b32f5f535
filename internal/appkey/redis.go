package appkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisAPI is the part of *redis.Client the store needs.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore shares app keys between machines through Redis.
type RedisStore struct {
	api    redisAPI
	prefix string
}

func NewRedisStore(api redisAPI, prefix string) (*RedisStore, error) {
	if api == nil {
		return nil, errors.New("appkey: redis client must not be nil")
	}
	if prefix == "" {
		prefix = "appkey"
	}
	return &RedisStore{api: api, prefix: prefix}, nil
}

func (s *RedisStore) key(k Key) string {
	return s.prefix + ":" + k.String()
}

func (s *RedisStore) Read(ctx context.Context, k Key) ([]byte, error) {
	data, err := s.api.Get(ctx, s.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appkey: redis get %s: %w", k, err)
	}
	return data, nil
}

func (s *RedisStore) Write(ctx context.Context, k Key, data []byte) error {
	if len(data) > MaxSize {
		return fmt.Errorf("appkey: value for %s is %d bytes, max %d", k, len(data), MaxSize)
	}
	if err := s.api.Set(ctx, s.key(k), data, 0).Err(); err != nil {
		return fmt.Errorf("appkey: redis set %s: %w", k, err)
	}
	return nil
}
