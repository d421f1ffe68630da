package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentick/dashboard/pkg/cache/clientcache"
	"github.com/agentick/dashboard/pkg/cache/inmemory"
	"github.com/agentick/dashboard/pkg/store"
	"github.com/agentick/dashboard/pkg/store/feed"
	"github.com/agentick/dashboard/pkg/store/memory"
	"github.com/agentick/dashboard/pkg/types"
)

// countingGateway wraps the memory gateway to observe store traffic.
type countingGateway struct {
	store.Gateway
	getDocsCalls atomic.Int64
}

func (c *countingGateway) GetDocs(ctx context.Context) ([]*types.Client, error) {
	c.getDocsCalls.Add(1)
	return c.Gateway.GetDocs(ctx)
}

// recordingNotifier captures change notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, kind, id string, _ *types.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+id)
}

func (r *recordingNotifier) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestRepo(t *testing.T, opts ...Option) (*ClientRepository, *countingGateway) {
	t.Helper()
	backing, err := inmemory.NewCache(&inmemory.Config{})
	require.NoError(t, err)
	gw := &countingGateway{Gateway: memory.New(feed.NewLocalFeed())}
	return New(gw, clientcache.New(backing), opts...), gw
}

func TestAddTrimsNameAndSeedsCache(t *testing.T) {
	ctx := context.Background()
	repo, gw := newTestRepo(t)

	client, err := repo.Add(ctx, "  Acme  ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", client.Name)
	assert.NotEmpty(t, client.ID)
	require.NotNil(t, client.UIPreferences)
	assert.Equal(t, types.DefaultPreferences(), *client.UIPreferences)
	require.NoError(t, client.Validate())

	// the new record is served from cache, no store round-trip
	before := gw.getDocsCalls.Load()
	got, err := repo.Get(ctx, client.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, before, gw.getDocsCalls.Load())
}

func TestAddRejectsEmptyName(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Add(context.Background(), "   ")
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestAddAllowsDuplicateNames(t *testing.T) {
	// duplicate rejection lives in the registry layer, not here
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)
	_, err = repo.Add(ctx, "Acme")
	assert.NoError(t, err)
}

func TestListServesFromCache(t *testing.T) {
	ctx := context.Background()
	repo, gw := newTestRepo(t)

	_, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)

	first, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, first, 1)
	calls := gw.getDocsCalls.Load()

	second, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, calls, gw.getDocsCalls.Load(), "second list must come from cache")

	_, err = repo.List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, calls+1, gw.getDocsCalls.Load(), "forceRefresh must hit the store")
}

func TestRemoveMissingClient(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.Remove(context.Background(), "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestRemoveEvictsFromCache(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	client, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, client.ID))

	_, err = repo.Get(ctx, client.ID, false)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestUpdatePreferences(t *testing.T) {
	ctx := context.Background()
	repo, gw := newTestRepo(t)

	client, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)

	prefs := types.UIPreferences{
		Layout:     types.LayoutCompact,
		ColorTheme: types.ThemeBlue,
		Padding:    types.SizeLarge,
		FontSize:   types.SizeSmall,
	}
	require.NoError(t, repo.UpdatePreferences(ctx, client.ID, prefs))

	// cached copy was patched in place, not refetched
	before := gw.getDocsCalls.Load()
	got, err := repo.Get(ctx, client.ID, false)
	require.NoError(t, err)
	require.NotNil(t, got.UIPreferences)
	assert.Equal(t, prefs, *got.UIPreferences)
	assert.Equal(t, before, gw.getDocsCalls.Load())
}

func TestUpdatePreferencesValidation(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	client, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)

	err = repo.UpdatePreferences(ctx, client.ID, types.UIPreferences{ColorTheme: "neon"})
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestUpdateMetricsRequiresFullSet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	client, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)

	partial := types.Metrics{
		types.MetricRevenue: {Current: types.Num(1000)},
	}
	err = repo.UpdateMetrics(ctx, client.ID, partial)
	assert.True(t, errors.Is(err, types.ErrValidation))

	require.NoError(t, repo.UpdateMetrics(ctx, client.ID, types.RandomMetrics()))
}

func TestBatchUpdateClearsCache(t *testing.T) {
	ctx := context.Background()
	repo, gw := newTestRepo(t)

	a, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)
	b, err := repo.Add(ctx, "Globex")
	require.NoError(t, err)

	nameA, nameB := "Acme Corp", "Globex Inc"
	require.NoError(t, repo.BatchUpdate(ctx, []store.DocUpdate{
		{ID: a.ID, Data: store.DocPatch{Name: &nameA}},
		{ID: b.ID, Data: store.DocPatch{Name: &nameB}},
	}))

	// cache was invalidated wholesale: the next list is a store fetch
	calls := gw.getDocsCalls.Load()
	clients, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, calls+1, gw.getDocsCalls.Load())

	names := map[string]bool{}
	for _, c := range clients {
		names[c.Name] = true
	}
	assert.True(t, names["Acme Corp"])
	assert.True(t, names["Globex Inc"])
}

func TestBatchUpdateValidation(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	err := repo.BatchUpdate(ctx, nil)
	assert.True(t, errors.Is(err, types.ErrValidation))

	err = repo.BatchUpdate(ctx, []store.DocUpdate{{ID: ""}})
	assert.True(t, errors.Is(err, types.ErrValidation))

	err = repo.BatchUpdate(ctx, []store.DocUpdate{{ID: "c1"}})
	assert.True(t, errors.Is(err, types.ErrValidation), "empty patch must be rejected")
}

func TestSubscribeUpdatesCache(t *testing.T) {
	ctx := context.Background()
	repo, gw := newTestRepo(t)

	client, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)

	changes := make(chan *types.Client, 2)
	unsub, err := repo.Subscribe(ctx, client.ID, func(c *types.Client) {
		changes <- c
	})
	require.NoError(t, err)
	defer unsub()

	newName := "Renamed"
	_, err = gw.UpdateDoc(ctx, client.ID, store.DocPatch{Name: &newName})
	require.NoError(t, err)

	select {
	case c := <-changes:
		require.NotNil(t, c)
		assert.Equal(t, "Renamed", c.Name)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	// the cache was updated by the subscription before the callback
	got, err := repo.Get(ctx, client.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestNotifierReceivesChanges(t *testing.T) {
	ctx := context.Background()
	rec := &recordingNotifier{}
	repo, _ := newTestRepo(t, WithNotifier(rec))

	client, err := repo.Add(ctx, "Acme")
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, client.ID))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "put:"+client.ID, events[0])
	assert.Equal(t, "delete:"+client.ID, events[1])
}

func TestEnsureDefaultClient(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	repo.EnsureDefaultClient(ctx)

	clients, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, DefaultClientName, clients[0].Name)

	// idempotent: a second call must not add another
	repo.EnsureDefaultClient(ctx)
	clients, err = repo.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}
