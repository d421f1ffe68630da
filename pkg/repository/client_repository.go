package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentick/dashboard/pkg/cache/clientcache"
	"github.com/agentick/dashboard/pkg/logger"
	"github.com/agentick/dashboard/pkg/store"
	"github.com/agentick/dashboard/pkg/types"
)

// DefaultClientName seeds an empty collection on first boot.
const DefaultClientName = "Client 1"

// ChangeNotifier receives successful-write notifications (webhooks etc).
// Implementations must not block and must swallow their own failures.
type ChangeNotifier interface {
	Notify(ctx context.Context, kind, id string, client *types.Client)
}

// ClientRepository orchestrates validation, the client cache and the store
// gateway. Every failure is rewrapped into the ErrValidation / ErrNotFound /
// ErrStore taxonomy; nothing here retries - callers decide that.
type ClientRepository struct {
	gateway  store.Gateway
	cache    *clientcache.ClientCache
	notifier ChangeNotifier
	now      func() time.Time
}

// Option customizes the repository.
type Option func(*ClientRepository)

// WithNotifier attaches a fire-and-forget change notifier.
func WithNotifier(n ChangeNotifier) Option {
	return func(r *ClientRepository) { r.notifier = n }
}

// WithClock injects the time source used to stamp cached copies.
func WithClock(now func() time.Time) Option {
	return func(r *ClientRepository) { r.now = now }
}

// New wires a repository over its gateway and cache.
func New(gateway store.Gateway, cache *clientcache.ClientCache, opts ...Option) *ClientRepository {
	r := &ClientRepository{gateway: gateway, cache: cache, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns all clients, serving from the cache unless forceRefresh is
// set or the cache has gone stale. A store fetch repopulates the cache
// wholesale.
func (r *ClientRepository) List(ctx context.Context, forceRefresh bool) ([]*types.Client, error) {
	log := logger.Logger(ctx)

	if !forceRefresh {
		if cached, ok := r.cache.GetAll(ctx); ok {
			log.WithField("count", len(cached)).Debug("serving client list from cache")
			return cached, nil
		}
	}

	clients, err := r.gateway.GetDocs(ctx)
	if err != nil {
		return nil, types.Err(types.ErrStore, err, "failed to get clients")
	}
	if err := r.cache.SetAll(ctx, clients); err != nil {
		log.WithError(err).Warn("failed to repopulate client cache")
	}
	return clients, nil
}

// Get returns one client by id with the same freshness policy as List.
func (r *ClientRepository) Get(ctx context.Context, id string, forceRefresh bool) (*types.Client, error) {
	if id == "" {
		return nil, types.Err(types.ErrValidation, nil, "client id is required")
	}

	if !forceRefresh {
		if cached, ok := r.cache.Get(ctx, id); ok {
			return cached, nil
		}
	}

	client, err := r.gateway.GetDoc(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return nil, types.Err(types.ErrStore, err, "failed to get client %s", id)
	}
	if err := r.cache.Set(ctx, client); err != nil {
		logger.Logger(ctx).WithError(err).Warn("failed to cache client")
	}
	return client, nil
}

// Add creates a client with randomized placeholder metrics and default
// preferences. The store assigns the id and timestamps; the cache is seeded
// with the result. Duplicate names are NOT rejected here - that check lives
// in the registry layer only.
func (r *ClientRepository) Add(ctx context.Context, name string) (*types.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.Err(types.ErrValidation, nil, "client name is required")
	}

	prefs := types.DefaultPreferences()
	candidate := &types.Client{
		Name:          name,
		Metrics:       types.RandomMetrics(),
		UIPreferences: &prefs,
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	client, err := r.gateway.AddDoc(ctx, candidate)
	if err != nil {
		return nil, types.Err(types.ErrStore, err, "failed to add client %q", name)
	}
	if err := r.cache.Set(ctx, client); err != nil {
		logger.Logger(ctx).WithError(err).Warn("failed to cache new client")
	}

	logger.Logger(ctx).WithFields(logrus.Fields{
		"id":   client.ID,
		"name": client.Name,
	}).Info("client added")
	r.notify(ctx, store.ChangePut, client.ID, client)
	return client, nil
}

// Remove deletes a client, failing with ErrNotFound when the store has no
// such document. The cache entry is evicted on success.
func (r *ClientRepository) Remove(ctx context.Context, id string) error {
	if id == "" {
		return types.Err(types.ErrValidation, nil, "client id is required")
	}

	if err := r.gateway.DeleteDoc(ctx, id); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return err
		}
		return types.Err(types.ErrStore, err, "failed to remove client %s", id)
	}
	if err := r.cache.Remove(ctx, id); err != nil {
		logger.Logger(ctx).WithError(err).Warn("failed to evict removed client from cache")
	}

	logger.Logger(ctx).WithField("id", id).Info("client removed")
	r.notify(ctx, store.ChangeDelete, id, nil)
	return nil
}

// UpdatePreferences overwrites a client's uiPreferences after validating the
// payload. The cached copy is patched in place when present; a cache miss is
// left alone rather than forcing a refetch.
func (r *ClientRepository) UpdatePreferences(ctx context.Context, id string, prefs types.UIPreferences) error {
	if id == "" {
		return types.Err(types.ErrValidation, nil, "client id is required")
	}
	if err := prefs.Validate(); err != nil {
		return err
	}

	updated, err := r.gateway.UpdateDoc(ctx, id, store.DocPatch{UIPreferences: &prefs})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return err
		}
		return types.Err(types.ErrStore, err, "failed to update preferences for client %s", id)
	}

	r.patchCache(ctx, id, func(cached *types.Client) {
		p := prefs
		cached.UIPreferences = &p
		cached.UpdatedAt = r.now().UTC()
	})
	r.notify(ctx, store.ChangePut, id, updated)
	return nil
}

// UpdateMetrics overwrites a client's metrics, requiring the full five-key
// set, with the same cache-patching behavior as UpdatePreferences.
func (r *ClientRepository) UpdateMetrics(ctx context.Context, id string, metrics types.Metrics) error {
	if id == "" {
		return types.Err(types.ErrValidation, nil, "client id is required")
	}
	if metrics == nil {
		return types.Err(types.ErrValidation, nil, "metrics payload is required")
	}
	candidate := &types.Client{Metrics: metrics}
	if err := candidate.Validate(); err != nil {
		return err
	}

	updated, err := r.gateway.UpdateDoc(ctx, id, store.DocPatch{Metrics: metrics})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return err
		}
		return types.Err(types.ErrStore, err, "failed to update metrics for client %s", id)
	}

	r.patchCache(ctx, id, func(cached *types.Client) {
		cached.Metrics = metrics
		cached.UpdatedAt = r.now().UTC()
	})
	r.notify(ctx, store.ChangePut, id, updated)
	return nil
}

// Refresh force-fetches one client, bypassing the cache read but still
// repopulating it.
func (r *ClientRepository) Refresh(ctx context.Context, id string) (*types.Client, error) {
	return r.Get(ctx, id, true)
}

// RefreshAll force-fetches the whole collection.
func (r *ClientRepository) RefreshAll(ctx context.Context) ([]*types.Client, error) {
	return r.List(ctx, true)
}

// ClearCache drops every cached record and resets the shared timestamp.
func (r *ClientRepository) ClearCache(ctx context.Context) error {
	return r.cache.Clear(ctx)
}

// Subscribe registers a change listener for one client. Each remote change
// updates the cache and invokes onChange with the new record, or nil when
// the client was deleted. The returned handle MUST be called on teardown.
func (r *ClientRepository) Subscribe(ctx context.Context, id string, onChange func(*types.Client)) (store.Unsubscribe, error) {
	if id == "" {
		return nil, types.Err(types.ErrValidation, nil, "client id is required")
	}
	if onChange == nil {
		return nil, types.Err(types.ErrValidation, nil, "onChange callback is required")
	}

	unsub, err := r.gateway.Subscribe(ctx, id, func(client *types.Client) {
		if client == nil {
			if err := r.cache.Remove(context.Background(), id); err != nil {
				logrus.WithError(err).WithField("id", id).Warn("failed to evict deleted client from cache")
			}
			onChange(nil)
			return
		}
		if err := r.cache.Set(context.Background(), client); err != nil {
			logrus.WithError(err).WithField("id", id).Warn("failed to cache subscribed client update")
		}
		onChange(client)
	})
	if err != nil {
		return nil, types.Err(types.ErrStore, err, "failed to subscribe to client %s", id)
	}
	return unsub, nil
}

// BatchUpdate applies all patches as one atomic store transaction, then
// clears the entire cache: batch writes can touch fields the cache does not
// track, so wholesale invalidation beats guessing.
func (r *ClientRepository) BatchUpdate(ctx context.Context, updates []store.DocUpdate) error {
	if len(updates) == 0 {
		return types.Err(types.ErrValidation, nil, "updates must be a non-empty list")
	}
	for _, u := range updates {
		if u.ID == "" {
			return types.Err(types.ErrValidation, nil, "each update must carry an id")
		}
		if u.Data.Name == nil && u.Data.Metrics == nil && u.Data.UIPreferences == nil {
			return types.Err(types.ErrValidation, nil, "update for %s carries no data", u.ID)
		}
		if u.Data.UIPreferences != nil {
			if err := u.Data.UIPreferences.Validate(); err != nil {
				return err
			}
		}
		if u.Data.Metrics != nil {
			if err := (&types.Client{Metrics: u.Data.Metrics}).Validate(); err != nil {
				return err
			}
		}
	}

	if err := r.gateway.BatchUpdate(ctx, updates); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return err
		}
		return types.Err(types.ErrStore, err, "failed to batch update clients")
	}
	if err := r.cache.Clear(ctx); err != nil {
		logger.Logger(ctx).WithError(err).Warn("failed to clear cache after batch update")
	}
	logger.Logger(ctx).WithField("count", len(updates)).Info("batch update committed")
	return nil
}

// EnsureDefaultClient creates a starter client when the collection is empty.
// Failures are logged, never propagated - a broken seed must not stop boot.
func (r *ClientRepository) EnsureDefaultClient(ctx context.Context) {
	clients, err := r.List(ctx, false)
	if err != nil {
		logger.Logger(ctx).WithError(err).Warn("failed to check for existing clients")
		return
	}
	if len(clients) > 0 {
		return
	}
	if _, err := r.Add(ctx, DefaultClientName); err != nil {
		logger.Logger(ctx).WithError(err).Warn("failed to create default client")
	}
}

func (r *ClientRepository) patchCache(ctx context.Context, id string, patch func(*types.Client)) {
	cached, ok := r.cache.Get(ctx, id)
	if !ok {
		return
	}
	patch(cached)
	if err := r.cache.Set(ctx, cached); err != nil {
		logger.Logger(ctx).WithError(err).Warn("failed to patch cached client")
	}
}

func (r *ClientRepository) notify(ctx context.Context, kind, id string, client *types.Client) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, kind, id, client)
}
