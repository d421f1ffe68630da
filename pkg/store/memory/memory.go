package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentick/dashboard/pkg/store"
	"github.com/agentick/dashboard/pkg/types"
)

// Gateway is an in-memory store.Gateway for tests and local development.
// It mimics the document store's contract: store-assigned ids, server
// timestamps, atomic batch application and change-feed publication.
type Gateway struct {
	feed store.ChangeFeed
	now  func() time.Time

	mu   sync.RWMutex
	docs map[string]*types.Client
}

var _ store.Gateway = (*Gateway)(nil)

// Option customizes the gateway.
type Option func(*Gateway)

// WithClock injects the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New builds an empty gateway. feed may be nil when no subscriber exists
// (most unit tests); Subscribe then fails.
func New(feed store.ChangeFeed, opts ...Option) *Gateway {
	g := &Gateway{
		feed: feed,
		now:  time.Now,
		docs: make(map[string]*types.Client),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) GetDoc(_ context.Context, id string) (*types.Client, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	doc, ok := g.docs[id]
	if !ok {
		return nil, types.Err(types.ErrNotFound, nil, "no document with id %s", id)
	}
	return doc.Clone(), nil
}

func (g *Gateway) GetDocs(_ context.Context) ([]*types.Client, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*types.Client, 0, len(g.docs))
	for _, doc := range g.docs {
		out = append(out, doc.Clone())
	}
	return out, nil
}

func (g *Gateway) AddDoc(ctx context.Context, client *types.Client) (*types.Client, error) {
	doc := client.Clone()
	doc.ID = uuid.NewString()
	now := g.now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	g.mu.Lock()
	g.docs[doc.ID] = doc
	g.mu.Unlock()

	g.publish(ctx, store.ChangeEvent{Kind: store.ChangePut, ID: doc.ID, Client: doc.Clone()})
	return doc.Clone(), nil
}

func (g *Gateway) UpdateDoc(ctx context.Context, id string, patch store.DocPatch) (*types.Client, error) {
	g.mu.Lock()
	doc, ok := g.docs[id]
	if !ok {
		g.mu.Unlock()
		return nil, types.Err(types.ErrNotFound, nil, "no document with id %s", id)
	}
	applyPatch(doc, patch)
	doc.UpdatedAt = g.now().UTC()
	updated := doc.Clone()
	g.mu.Unlock()

	g.publish(ctx, store.ChangeEvent{Kind: store.ChangePut, ID: id, Client: updated.Clone()})
	return updated, nil
}

func (g *Gateway) DeleteDoc(ctx context.Context, id string) error {
	g.mu.Lock()
	if _, ok := g.docs[id]; !ok {
		g.mu.Unlock()
		return types.Err(types.ErrNotFound, nil, "no document with id %s", id)
	}
	delete(g.docs, id)
	g.mu.Unlock()

	g.publish(ctx, store.ChangeEvent{Kind: store.ChangeDelete, ID: id})
	return nil
}

// BatchUpdate validates every target first, then applies all patches under
// one lock hold, so the batch is all-or-nothing like the real transaction.
func (g *Gateway) BatchUpdate(ctx context.Context, updates []store.DocUpdate) error {
	g.mu.Lock()
	for _, u := range updates {
		if _, ok := g.docs[u.ID]; !ok {
			g.mu.Unlock()
			return types.Err(types.ErrNotFound, nil, "no document with id %s", u.ID)
		}
	}
	now := g.now().UTC()
	changed := make([]*types.Client, 0, len(updates))
	for _, u := range updates {
		doc := g.docs[u.ID]
		applyPatch(doc, u.Data)
		doc.UpdatedAt = now
		changed = append(changed, doc.Clone())
	}
	g.mu.Unlock()

	for _, doc := range changed {
		g.publish(ctx, store.ChangeEvent{Kind: store.ChangePut, ID: doc.ID, Client: doc})
	}
	return nil
}

func (g *Gateway) Subscribe(ctx context.Context, id string, onChange store.ChangeFunc) (store.Unsubscribe, error) {
	if g.feed == nil {
		return nil, types.Err(types.ErrStore, nil, "gateway has no change feed configured")
	}
	return g.feed.Subscribe(ctx, id, func(ev store.ChangeEvent) {
		onChange(ev.Client)
	})
}

// Len reports the number of stored documents, for tests.
func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.docs)
}

func (g *Gateway) publish(ctx context.Context, ev store.ChangeEvent) {
	if g.feed == nil {
		return
	}
	_ = g.feed.Publish(ctx, ev)
}

func applyPatch(doc *types.Client, patch store.DocPatch) {
	if patch.Name != nil {
		doc.Name = *patch.Name
	}
	if patch.Metrics != nil {
		doc.Metrics = patch.Metrics
	}
	if patch.UIPreferences != nil {
		prefs := *patch.UIPreferences
		doc.UIPreferences = &prefs
	}
}
