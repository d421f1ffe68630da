package store

import (
	"context"

	"github.com/agentick/dashboard/pkg/types"
)

// DocPatch is a partial document write. Nil fields are left untouched in the
// stored document. The adapter stamps updatedAt server-side on every patch.
type DocPatch struct {
	Name          *string
	Metrics       types.Metrics
	UIPreferences *types.UIPreferences
}

// DocUpdate pairs a document id with the patch to apply to it.
type DocUpdate struct {
	ID   string
	Data DocPatch
}

// Unsubscribe tears down a change listener. It MUST be called on teardown or
// the listener (and its transport resources) leak.
type Unsubscribe func()

// ChangeFunc receives the new document on each remote change, or nil when
// the document was deleted. It runs on the feed's delivery goroutine, at an
// arbitrary later point, with no ordering guarantee relative to in-flight
// manual fetches.
type ChangeFunc func(*types.Client)

// Gateway is the document-store surface the repository consumes: CRUD over
// the clients collection, an atomic batch write, and per-document change
// subscriptions.
type Gateway interface {
	// GetDoc returns the document with the given id, or types.ErrNotFound.
	GetDoc(ctx context.Context, id string) (*types.Client, error)

	// GetDocs returns every document in the collection.
	GetDocs(ctx context.Context) ([]*types.Client, error)

	// AddDoc writes a new document. The store assigns the id and both
	// timestamps; the returned record carries them.
	AddDoc(ctx context.Context, client *types.Client) (*types.Client, error)

	// UpdateDoc applies a partial patch plus a server-assigned updatedAt.
	// Returns types.ErrNotFound if the document does not exist.
	UpdateDoc(ctx context.Context, id string, patch DocPatch) (*types.Client, error)

	// DeleteDoc removes the document. Returns types.ErrNotFound if absent.
	DeleteDoc(ctx context.Context, id string) error

	// BatchUpdate applies every patch as a single atomic transaction:
	// either all documents are updated or none are.
	BatchUpdate(ctx context.Context, updates []DocUpdate) error

	// Subscribe registers a change listener for one document.
	Subscribe(ctx context.Context, id string, onChange ChangeFunc) (Unsubscribe, error)
}
