package draft

import (
	"sync"

	"github.com/goliatone/go-blocksync/internal/reconcile"
)

// Store holds the in-session draft of one block together with the two
// baselines used to classify it. Every mutation recomputes the dirty flag.
type Store struct {
	mu        sync.RWMutex
	policy    reconcile.Policy
	draft     map[string]any
	lastSaved map[string]any
	server    map[string]any
	dirty     bool
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy overrides the merge policy applied by Update.
func WithPolicy(policy reconcile.Policy) Option {
	return func(s *Store) {
		s.policy = policy
	}
}

// NewStore seeds a store from the block content observed on the server. The
// draft, the last saved baseline and the server baseline all start equal, so
// a new store is clean.
func NewStore(initial map[string]any, opts ...Option) *Store {
	s := &Store{
		policy: reconcile.DefaultPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.draft = cloneOrEmpty(initial)
	s.lastSaved = cloneOrEmpty(initial)
	s.server = cloneOrEmpty(initial)
	return s
}

// Read returns a copy of the current draft.
func (s *Store) Read() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reconcile.CloneRecord(s.draft)
}

// Update merges partial into the draft and returns the new draft and its dirty
// flag. The returned map is a copy the caller owns, so it can be handed to a
// save without re-reading the store.
func (s *Store) Update(partial map[string]any) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft = reconcile.MergeRecord(s.draft, partial, s.policy)
	s.recompute()
	return reconcile.CloneRecord(s.draft), s.dirty
}

// Replace swaps the whole draft, used when adopting a save result or reverting.
func (s *Store) Replace(content map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft = cloneOrEmpty(content)
	s.recompute()
	return s.dirty
}

// SetLastSaved records content confirmed persisted by a successful save.
func (s *Store) SetLastSaved(content map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSaved = cloneOrEmpty(content)
	s.recompute()
	return s.dirty
}

// SetServer records content observed on the block from outside the session.
func (s *Store) SetServer(content map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server = cloneOrEmpty(content)
	s.recompute()
	return s.dirty
}

// LastSaved returns a copy of the last saved baseline.
func (s *Store) LastSaved() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reconcile.CloneRecord(s.lastSaved)
}

// Server returns a copy of the server baseline.
func (s *Store) Server() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reconcile.CloneRecord(s.server)
}

// Dirty reports whether the draft differs from both baselines.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Matches reports whether the draft equals content.
func (s *Store) Matches(content map[string]any) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reconcile.Equal(s.draft, content)
}

func (s *Store) recompute() {
	s.dirty = reconcile.IsDirty(s.draft, s.lastSaved, s.server)
}

func cloneOrEmpty(content map[string]any) map[string]any {
	if content == nil {
		return map[string]any{}
	}
	return reconcile.CloneRecord(content)
}
