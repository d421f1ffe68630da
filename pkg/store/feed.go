package store

import (
	"context"

	"github.com/agentick/dashboard/pkg/types"
)

// Change kinds carried on the feed.
const (
	ChangePut    = "put"
	ChangeDelete = "delete"
)

// ChangeEvent is one document mutation broadcast on the change feed.
type ChangeEvent struct {
	Kind   string        `json:"kind"`
	ID     string        `json:"id"`
	Client *types.Client `json:"client,omitempty"` // full document on put, nil on delete
}

// ChangeFeed fans document mutations out to subscribers. Adapters publish
// after every successful write; Gateway.Subscribe rides a subscription.
type ChangeFeed interface {
	// Publish broadcasts an event to current subscribers of its id.
	Publish(ctx context.Context, ev ChangeEvent) error

	// Subscribe delivers future events for one document id until the
	// returned Unsubscribe is called. Delivery is asynchronous and
	// unordered relative to concurrent fetches.
	Subscribe(ctx context.Context, id string, fn func(ChangeEvent)) (Unsubscribe, error)
}
