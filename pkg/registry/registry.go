package registry

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/agentick/dashboard/pkg/logger"
	"github.com/agentick/dashboard/pkg/repository"
	"github.com/agentick/dashboard/pkg/store"
	"github.com/agentick/dashboard/pkg/types"
)

// Name rules enforced at this layer. The repository's Add deliberately does
// not re-check these; the registry is the single place the duplicate scan
// happens, which is a known layering wart (a store-side uniqueness
// constraint would close the race under concurrent adds).
const (
	MinNameLength = 3
	MaxNameLength = 50
)

// Snapshot is an immutable view of registry state handed to observers and
// HTTP handlers. Clients are deep copies; mutating them changes nothing.
type Snapshot struct {
	Clients    []*types.Client
	Selected   *types.Client
	Loading    bool
	Refreshing bool
	Err        string
}

// ClientRegistry holds the in-memory client list, the current selection and
// the loading/error flags the dashboard renders from. All persistence is
// delegated to the repository; local state is reconciled after every call.
// Selection is kept as an id and resolved against the current list, so it
// survives list replacement as long as the id still exists.
type ClientRegistry struct {
	repo *repository.ClientRepository
	now  func() time.Time

	mu         sync.Mutex
	clients    []*types.Client
	selectedID string
	loading    bool
	refreshing bool
	errMsg     string

	obsMu     sync.Mutex
	nextObsID int
	observers map[int]func(Snapshot)
}

// New builds a registry over the repository.
func New(repo *repository.ClientRepository) *ClientRegistry {
	return &ClientRegistry{
		repo:      repo,
		now:       time.Now,
		observers: make(map[int]func(Snapshot)),
	}
}

// Subscribe registers an observer invoked (outside the registry lock) after
// every state change. The returned function unsubscribes it.
func (r *ClientRegistry) Subscribe(fn func(Snapshot)) func() {
	r.obsMu.Lock()
	id := r.nextObsID
	r.nextObsID++
	r.observers[id] = fn
	r.obsMu.Unlock()

	return func() {
		r.obsMu.Lock()
		delete(r.observers, id)
		r.obsMu.Unlock()
	}
}

// State returns the current snapshot.
func (r *ClientRegistry) State() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Load populates the list from the repository (cache-friendly read) and
// selects the first client when nothing is selected yet.
func (r *ClientRegistry) Load(ctx context.Context) error {
	r.setLoading(true)
	defer r.setLoading(false)

	clients, err := r.repo.List(ctx, false)
	if err != nil {
		r.setError("Failed to load clients: " + err.Error())
		return err
	}

	r.mu.Lock()
	r.clients = clients
	if r.selectedID == "" && len(clients) > 0 {
		r.selectedID = clients[0].ID
	}
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
	return nil
}

// RefreshAll force-fetches every client from the store. The selection is
// kept when its id survives the refresh.
func (r *ClientRegistry) RefreshAll(ctx context.Context) error {
	r.setRefreshing(true)
	defer r.setRefreshing(false)

	clients, err := r.repo.RefreshAll(ctx)
	if err != nil {
		r.setError("Failed to refresh clients: " + err.Error())
		return err
	}

	r.mu.Lock()
	r.clients = clients
	if r.selectedID != "" && r.findLocked(r.selectedID) == nil {
		r.selectedID = ""
	}
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
	return nil
}

// RefreshSelected force-fetches only the selected client. No-op without a
// selection.
func (r *ClientRegistry) RefreshSelected(ctx context.Context) error {
	r.mu.Lock()
	id := r.selectedID
	r.mu.Unlock()
	if id == "" {
		return nil
	}

	r.setRefreshing(true)
	defer r.setRefreshing(false)

	client, err := r.repo.Refresh(ctx, id)
	if err != nil {
		r.setError("Failed to refresh client: " + err.Error())
		return err
	}

	r.mu.Lock()
	for i, c := range r.clients {
		if c.ID == client.ID {
			r.clients[i] = client
		}
	}
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
	return nil
}

// AddClient validates the name here - trimmed length 3-50 and no
// case-insensitive duplicate against the in-memory list - then delegates to
// the repository. The first client added becomes the selection.
func (r *ClientRegistry) AddClient(ctx context.Context, name string) (*types.Client, error) {
	trimmed := strings.TrimSpace(name)
	if n := utf8.RuneCountInString(trimmed); n < MinNameLength || n > MaxNameLength {
		err := types.Err(types.ErrValidation, nil,
			"client name must be between %d and %d characters", MinNameLength, MaxNameLength)
		r.setError(err.Error())
		return nil, err
	}

	r.mu.Lock()
	for _, c := range r.clients {
		if strings.EqualFold(c.Name, trimmed) {
			r.mu.Unlock()
			err := types.Err(types.ErrValidation, nil, "a client named %q already exists", trimmed)
			r.setError(err.Error())
			return nil, err
		}
	}
	r.mu.Unlock()

	r.setLoading(true)
	defer r.setLoading(false)

	client, err := r.repo.Add(ctx, trimmed)
	if err != nil {
		r.setError("Failed to add client: " + err.Error())
		return nil, err
	}

	r.mu.Lock()
	r.clients = append(r.clients, client)
	if len(r.clients) == 1 {
		r.selectedID = client.ID
	}
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
	return client.Clone(), nil
}

// RemoveClient deletes through the repository, filters the local list, and
// reselects: the first remaining client when the selection was removed, or
// nothing when it was the last one. A failed remove leaves state untouched.
func (r *ClientRegistry) RemoveClient(ctx context.Context, id string) error {
	if id == "" {
		err := types.Err(types.ErrValidation, nil, "client id is required")
		r.setError(err.Error())
		return err
	}

	r.setLoading(true)
	defer r.setLoading(false)

	if err := r.repo.Remove(ctx, id); err != nil {
		r.setError("Failed to remove client: " + err.Error())
		return err
	}

	r.mu.Lock()
	remaining := r.clients[:0]
	for _, c := range r.clients {
		if c.ID != id {
			remaining = append(remaining, c)
		}
	}
	r.clients = remaining
	if r.selectedID == id {
		if len(remaining) > 0 {
			r.selectedID = remaining[0].ID
		} else {
			r.selectedID = ""
		}
	}
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
	return nil
}

// UpdateClientPreferences persists through the repository, then patches the
// local copy for immediate feedback.
func (r *ClientRegistry) UpdateClientPreferences(ctx context.Context, id string, prefs types.UIPreferences) error {
	if id == "" {
		err := types.Err(types.ErrValidation, nil, "client id is required")
		r.setError(err.Error())
		return err
	}

	if err := r.repo.UpdatePreferences(ctx, id, prefs); err != nil {
		r.setError("Failed to update preferences: " + err.Error())
		return err
	}

	r.mu.Lock()
	for _, c := range r.clients {
		if c.ID == id {
			p := prefs
			c.UIPreferences = &p
			c.UpdatedAt = r.now().UTC()
		}
	}
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
	return nil
}

// UpdateClientMetrics is the metrics twin of UpdateClientPreferences.
func (r *ClientRegistry) UpdateClientMetrics(ctx context.Context, id string, metrics types.Metrics) error {
	if id == "" {
		err := types.Err(types.ErrValidation, nil, "client id is required")
		r.setError(err.Error())
		return err
	}

	if err := r.repo.UpdateMetrics(ctx, id, metrics); err != nil {
		r.setError("Failed to update metrics: " + err.Error())
		return err
	}

	r.mu.Lock()
	for _, c := range r.clients {
		if c.ID == id {
			c.Metrics = metrics
			c.UpdatedAt = r.now().UTC()
		}
	}
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
	return nil
}

// BatchUpdate forwards to the repository, then force-refreshes the local
// list: the batch just invalidated the cache wholesale, so the store is the
// only honest source for what the documents look like now.
func (r *ClientRegistry) BatchUpdate(ctx context.Context, updates []store.DocUpdate) error {
	if err := r.repo.BatchUpdate(ctx, updates); err != nil {
		r.setError("Failed to batch update clients: " + err.Error())
		return err
	}
	return r.RefreshAll(ctx)
}

// SelectClient switches the selection by id lookup into the current list.
func (r *ClientRegistry) SelectClient(id string) error {
	if id == "" {
		err := types.Err(types.ErrValidation, nil, "client id is required")
		r.setError(err.Error())
		return err
	}

	r.mu.Lock()
	if r.findLocked(id) == nil {
		r.mu.Unlock()
		err := types.Err(types.ErrNotFound, nil, "client with id %s not found", id)
		r.setError(err.Error())
		return err
	}
	r.selectedID = id
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
	return nil
}

// ClearError clears the single visible error message.
func (r *ClientRegistry) ClearError() {
	r.mu.Lock()
	r.errMsg = ""
	r.mu.Unlock()
	r.notifyObservers()
}

func (r *ClientRegistry) findLocked(id string) *types.Client {
	for _, c := range r.clients {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *ClientRegistry) snapshotLocked() Snapshot {
	clients := make([]*types.Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c.Clone())
	}
	return Snapshot{
		Clients:    clients,
		Selected:   r.findLocked(r.selectedID).Clone(),
		Loading:    r.loading,
		Refreshing: r.refreshing,
		Err:        r.errMsg,
	}
}

func (r *ClientRegistry) setLoading(v bool) {
	r.mu.Lock()
	r.loading = v
	r.mu.Unlock()
	r.notifyObservers()
}

func (r *ClientRegistry) setRefreshing(v bool) {
	r.mu.Lock()
	r.refreshing = v
	r.mu.Unlock()
	r.notifyObservers()
}

func (r *ClientRegistry) setError(msg string) {
	r.mu.Lock()
	r.errMsg = msg
	r.mu.Unlock()
	logger.Logger(context.Background()).Warn(msg)
	r.notifyObservers()
}

func (r *ClientRegistry) notifyObservers() {
	snap := r.State()

	r.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(r.observers))
	for _, fn := range r.observers {
		fns = append(fns, fn)
	}
	r.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
