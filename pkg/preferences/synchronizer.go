package preferences

import (
	"context"
	"sync"
	"time"

	"github.com/agentick/dashboard/pkg/registry"
	"github.com/agentick/dashboard/pkg/types"
)

// CommitPolicy decides what happens to the locally merged preferences when
// persistence fails.
type CommitPolicy string

const (
	// CommitOptimistic keeps the local merge on a failed persist. Local
	// and remote then diverge until a manual refresh - the historical
	// behavior, kept as the default.
	CommitOptimistic CommitPolicy = "optimistic"

	// CommitPessimistic rolls the local preferences back to their
	// previous value when the persist fails.
	CommitPessimistic CommitPolicy = "pessimistic"
)

// Synchronizer mirrors the selected client's uiPreferences into the active
// display preferences, and pushes partial edits back through the registry.
// With no client selected it serves the hard-coded defaults.
type Synchronizer struct {
	reg    *registry.ClientRegistry
	policy CommitPolicy

	mu           sync.Mutex
	prefs        types.UIPreferences
	selectedID   string
	lastSeenUpAt time.Time
	editMode     bool

	unsub func()
}

// Option customizes the synchronizer.
type Option func(*Synchronizer)

// WithCommitPolicy overrides the default optimistic commit behavior.
func WithCommitPolicy(p CommitPolicy) Option {
	return func(s *Synchronizer) { s.policy = p }
}

// New builds a synchronizer and subscribes it to registry changes. Call
// Close on teardown to drop the subscription.
func New(reg *registry.ClientRegistry, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		reg:    reg,
		policy: CommitOptimistic,
		prefs:  types.DefaultPreferences(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsub = reg.Subscribe(s.onRegistryChange)
	s.onRegistryChange(reg.State())
	return s
}

// onRegistryChange tracks the selection. Preferences are (re)copied only
// when the selected client's identity or updatedAt moves, so an error-only
// registry notification cannot clobber an optimistic local merge.
func (s *Synchronizer) onRegistryChange(snap registry.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Selected == nil {
		if s.selectedID != "" {
			s.selectedID = ""
			s.lastSeenUpAt = time.Time{}
			s.prefs = types.DefaultPreferences()
		}
		return
	}

	if snap.Selected.ID != s.selectedID || !snap.Selected.UpdatedAt.Equal(s.lastSeenUpAt) {
		s.selectedID = snap.Selected.ID
		s.lastSeenUpAt = snap.Selected.UpdatedAt
		s.prefs = snap.Selected.Preferences()
	}
}

// Preferences returns the active display preferences.
func (s *Synchronizer) Preferences() types.UIPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SelectedClientID returns the id the synchronizer currently mirrors, empty
// when no client is selected.
func (s *Synchronizer) SelectedClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// UpdatePreferences shallow-merges the patch into the active preferences,
// applies the merge locally right away, and persists the full merged set
// through the registry when a client is selected. Under the optimistic
// policy a failed persist leaves the local merge in place; under the
// pessimistic policy it is rolled back.
func (s *Synchronizer) UpdatePreferences(ctx context.Context, patch types.PreferencePatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.prefs
	merged := s.prefs.Merge(patch)
	s.prefs = merged
	selectedID := s.selectedID
	s.mu.Unlock()

	if selectedID == "" {
		return nil
	}

	if err := s.reg.UpdateClientPreferences(ctx, selectedID, merged); err != nil {
		if s.policy == CommitPessimistic {
			s.mu.Lock()
			// Only roll back if nothing else moved the state meanwhile.
			if s.prefs == merged {
				s.prefs = previous
			}
			s.mu.Unlock()
		}
		return err
	}
	return nil
}

// EditMode reports whether the settings panel is open.
func (s *Synchronizer) EditMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editMode
}

// ToggleEditMode flips the settings panel state and returns the new value.
func (s *Synchronizer) ToggleEditMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMode = !s.editMode
	return s.editMode
}

// Close drops the registry subscription.
func (s *Synchronizer) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}
