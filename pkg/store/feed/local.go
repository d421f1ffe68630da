package feed

import (
	"context"
	"sync"

	"github.com/agentick/dashboard/pkg/store"
)

// LocalFeed is an in-process ChangeFeed for tests and single-instance local
// mode. Delivery is still asynchronous (one goroutine per event per
// subscriber) to keep the same arrival semantics as the redis feed.
type LocalFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(store.ChangeEvent)
}

var _ store.ChangeFeed = (*LocalFeed)(nil)

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[int]func(store.ChangeEvent))}
}

func (f *LocalFeed) Publish(_ context.Context, ev store.ChangeEvent) error {
	f.mu.Lock()
	fns := make([]func(store.ChangeEvent), 0, len(f.subs[ev.ID]))
	for _, fn := range f.subs[ev.ID] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		go fn(ev)
	}
	return nil
}

func (f *LocalFeed) Subscribe(_ context.Context, id string, fn func(store.ChangeEvent)) (store.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[id] == nil {
		f.subs[id] = make(map[int]func(store.ChangeEvent))
	}
	subID := f.nextID
	f.nextID++
	f.subs[id][subID] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[id], subID)
	}, nil
}
