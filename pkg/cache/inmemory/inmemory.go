package inmemory

import (
	"context"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentick/dashboard/pkg/cache"
)

// Config holds expiration tuning in seconds.
type Config struct {
	// DefaultExpiration applies to Set calls that pass 0; <=0 means no expiry.
	DefaultExpiration int
	// CleanupInterval is how often expired entries are purged; <=0 disables the janitor.
	CleanupInterval int
}

// Cache is the in-process cache.Cache implementation backed by go-cache.
type Cache struct {
	c *gocache.Cache
}

var _ cache.Cache = (*Cache)(nil)

// NewCache builds an in-memory cache from the config.
func NewCache(cfg *Config) (*Cache, error) {
	defaultExpiration := gocache.NoExpiration
	if cfg != nil && cfg.DefaultExpiration > 0 {
		defaultExpiration = time.Duration(cfg.DefaultExpiration) * time.Second
	}
	cleanupInterval := time.Duration(0)
	if cfg != nil && cfg.CleanupInterval > 0 {
		cleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	return &Cache{c: gocache.New(defaultExpiration, cleanupInterval)}, nil
}

func (m *Cache) Get(_ context.Context, key string) (interface{}, error) {
	val, found := m.c.Get(key)
	if !found {
		return nil, cache.ErrKeyNotFound
	}
	return val, nil
}

func (m *Cache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration == cache.NoExpiration {
		expiration = gocache.NoExpiration
	}
	m.c.Set(key, value, expiration)
	return nil
}

func (m *Cache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *Cache) GetByPattern(_ context.Context, pattern string) (map[string]interface{}, error) {
	results := make(map[string]interface{})
	for key, item := range m.c.Items() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if matched {
			results[key] = item.Object
		}
	}
	return results, nil
}

func (m *Cache) Clear(_ context.Context) error {
	m.c.Flush()
	return nil
}
