package editor

import (
	"errors"
	"sort"
	"sync"

	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
)

// Registry keeps one Session per block of a page.
type Registry struct {
	client   interfaces.SyncClient
	opts     []Option
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry returns a registry whose sessions share client and opts.
func NewRegistry(client interfaces.SyncClient, opts ...Option) (*Registry, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	return &Registry{
		client:   client,
		opts:     opts,
		sessions: make(map[uuid.UUID]*Session),
	}, nil
}

// Open returns the session of block, creating it from the block content when
// none is open.
func (r *Registry) Open(block *interfaces.Block, extra ...Option) (*Session, error) {
	if block == nil {
		return nil, ErrBlockIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[block.ID]; ok {
		return existing, nil
	}
	opts := append(append([]Option{}, r.opts...), extra...)
	if block.PageID != uuid.Nil {
		opts = append(opts, WithPageID(block.PageID.String()))
	}
	session, err := NewSession(r.client, block.ID, block.Content, opts...)
	if err != nil {
		return nil, err
	}
	r.sessions[block.ID] = session
	return session, nil
}

// Get returns the open session of blockID.
func (r *Registry) Get(blockID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[blockID]
	return session, ok
}

// Sessions returns the open sessions ordered by block id.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].blockID.String() < out[j].blockID.String()
	})
	return out
}

// ApplyPage feeds the content of every block of page into the server
// baseline of its open session and returns how many sessions were updated.
func (r *Registry) ApplyPage(page *interfaces.Page) int {
	if page == nil {
		return 0
	}
	updated := 0
	for _, block := range page.Blocks {
		if block == nil {
			continue
		}
		session, ok := r.Get(block.ID)
		if !ok {
			continue
		}
		session.SetServerBaseline(block.Content)
		updated++
	}
	return updated
}

// Close closes and forgets the session of blockID.
func (r *Registry) Close(blockID uuid.UUID) error {
	r.mu.Lock()
	session, ok := r.sessions[blockID]
	delete(r.sessions, blockID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return session.Close()
}

// CloseAll closes every session, flushing dirty drafts.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	var errs []error
	for _, session := range sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
