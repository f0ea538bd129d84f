package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisStore caches results in Redis with a local TinyLFU front. The
// generation counter is process-local: a restart or PurgeAll starts a
// fresh key prefix and old entries expire via TTL.
type RedisStore struct {
	data *cache.Cache
	ttl  time.Duration
	gen  atomic.Uint64
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis at redisURL and verifies the
// connection before returning.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisStore{data: data, ttl: ttl}, nil
}

func (s *RedisStore) key(name, key string) string {
	return fmt.Sprintf("comply/%d/%s/%s", s.gen.Load(), name, key)
}

func (s *RedisStore) Get(ctx context.Context, name, key string) (string, error) {
	var val string
	err := s.data.Get(ctx, s.key(name, key), &val)
	if err == cache.ErrCacheMiss {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, name, key, val string) error {
	return s.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.key(name, key),
		Value: val,
		TTL:   s.ttl,
	})
}

func (s *RedisStore) Purge(ctx context.Context, name, key string) error {
	err := s.data.Delete(ctx, s.key(name, key))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}

func (s *RedisStore) PurgeAll(ctx context.Context) error {
	s.gen.Add(1)
	return nil
}
