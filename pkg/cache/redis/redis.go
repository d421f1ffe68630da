package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/agentick/dashboard/pkg/cache"
)

// Config holds the redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Cache is the redis-backed cache.Cache implementation. Values are stored
// as-is; callers serialize to strings before Set.
type Cache struct {
	cli *goredis.Client
}

var _ cache.Cache = (*Cache)(nil)

// NewCache connects to redis and verifies the connection with a ping.
func NewCache(ctx context.Context, cfg *Config) (*Cache, error) {
	cli := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{cli: cli}, nil
}

// NewCacheWithClient wraps an existing client, used by tests with miniredis.
func NewCacheWithClient(cli *goredis.Client) *Cache {
	return &Cache{cli: cli}
}

func (r *Cache) Get(ctx context.Context, key string) (interface{}, error) {
	val, err := r.cli.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cache.ErrKeyNotFound
		}
		return nil, err
	}
	return val, nil
}

func (r *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration == cache.NoExpiration {
		expiration = 0
	}
	return r.cli.Set(ctx, key, value, expiration).Err()
}

func (r *Cache) Delete(ctx context.Context, key string) error {
	return r.cli.Del(ctx, key).Err()
}

func (r *Cache) GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error) {
	results := make(map[string]interface{})
	var cursor uint64
	for {
		keys, next, err := r.cli.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			val, err := r.cli.Get(ctx, key).Result()
			if err != nil {
				if errors.Is(err, goredis.Nil) {
					continue // expired between scan and get
				}
				return nil, err
			}
			results[key] = val
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return results, nil
}

func (r *Cache) Clear(ctx context.Context) error {
	return r.cli.FlushDB(ctx).Err()
}
