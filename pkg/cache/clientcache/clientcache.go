package clientcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/agentick/dashboard/pkg/cache"
	"github.com/agentick/dashboard/pkg/types"
)

const keyPrefix = "client:"

// DefaultTTL is the fixed validity window for cached client records.
const DefaultTTL = 5 * time.Minute

// ClientCache holds last-known client records keyed by id, with a single
// shared timestamp governing validity for ALL entries: any Set or SetAll
// refreshes it, so one fetch silently extends freshness for every cached
// record, and once now-timestamp > ttl every lookup misses wholesale.
// There is no size bound and no per-entry eviction; this is sized for small
// client counts and is explicitly not a general-purpose cache.
type ClientCache struct {
	backing cache.Cache
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	timestamp time.Time // zero until the first Set/SetAll
}

// Option customizes a ClientCache.
type Option func(*ClientCache)

// WithTTL overrides the validity window.
func WithTTL(ttl time.Duration) Option {
	return func(c *ClientCache) { c.ttl = ttl }
}

// WithClock injects the time source, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(c *ClientCache) { c.now = now }
}

// New wraps a generic cache with the shared-timestamp freshness policy.
func New(backing cache.Cache, opts ...Option) *ClientCache {
	c := &ClientCache{
		backing: backing,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached record for id, or (nil, false) on a miss or when
// the shared timestamp has gone stale.
func (c *ClientCache) Get(ctx context.Context, id string) (*types.Client, bool) {
	if !c.fresh() {
		return nil, false
	}
	val, err := c.backing.Get(ctx, keyPrefix+id)
	if err != nil {
		return nil, false
	}
	client, err := decode(val)
	if err != nil {
		return nil, false
	}
	return client, true
}

// GetAll returns every cached record while the shared timestamp is fresh.
// The second return is false once stale, forcing a store fetch.
func (c *ClientCache) GetAll(ctx context.Context) ([]*types.Client, bool) {
	if !c.fresh() {
		return nil, false
	}
	entries, err := c.backing.GetByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return nil, false
	}
	clients := make([]*types.Client, 0, len(entries))
	for key, val := range entries {
		client, err := decode(val)
		if err != nil || client.ID != strings.TrimPrefix(key, keyPrefix) {
			continue
		}
		clients = append(clients, client)
	}
	return clients, true
}

// Set stores one record and refreshes the shared timestamp, new or not.
// Last write wins; there is no version check.
func (c *ClientCache) Set(ctx context.Context, client *types.Client) error {
	data, err := json.Marshal(client)
	if err != nil {
		return err
	}
	if err := c.backing.Set(ctx, keyPrefix+client.ID, string(data), cache.NoExpiration); err != nil {
		return err
	}
	c.touch()
	return nil
}

// SetAll stores records in bulk and refreshes the shared timestamp once.
func (c *ClientCache) SetAll(ctx context.Context, clients []*types.Client) error {
	for _, client := range clients {
		data, err := json.Marshal(client)
		if err != nil {
			return err
		}
		if err := c.backing.Set(ctx, keyPrefix+client.ID, string(data), cache.NoExpiration); err != nil {
			return err
		}
	}
	c.touch()
	return nil
}

// Remove evicts one record. The shared timestamp is left alone.
func (c *ClientCache) Remove(ctx context.Context, id string) error {
	return c.backing.Delete(ctx, keyPrefix+id)
}

// Clear drops everything and resets the shared timestamp, so the next read
// must hit the store.
func (c *ClientCache) Clear(ctx context.Context) error {
	if err := c.backing.Clear(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.timestamp = time.Time{}
	c.mu.Unlock()
	return nil
}

func (c *ClientCache) fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timestamp.IsZero() {
		return false
	}
	return c.now().Sub(c.timestamp) <= c.ttl
}

func (c *ClientCache) touch() {
	c.mu.Lock()
	c.timestamp = c.now()
	c.mu.Unlock()
}

func decode(val interface{}) (*types.Client, error) {
	raw, ok := val.(string)
	if !ok {
		return nil, types.Err(types.ErrStore, nil, "unexpected cache value type %T", val)
	}
	var client types.Client
	if err := json.Unmarshal([]byte(raw), &client); err != nil {
		return nil, err
	}
	return &client, nil
}
