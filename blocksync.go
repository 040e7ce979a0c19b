// Package blocksync keeps the content of editable blocks in sync with a
// backend: drafts are merged field by field, saved after a quiet period or on
// demand, and flushed when an editing session closes.
package blocksync

import (
	"context"
	"net/http"

	"github.com/goliatone/go-blocksync/internal/blocks"
	"github.com/goliatone/go-blocksync/internal/di"
	"github.com/goliatone/go-blocksync/internal/editor"
	"github.com/goliatone/go-blocksync/internal/reconcile"
	"github.com/goliatone/go-blocksync/internal/refresh"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

// Block exports the block DTO exchanged with the backend.
type Block = interfaces.Block

// Page exports the page DTO returned by a page fetch.
type Page = interfaces.Page

// SyncClient exports the network boundary used by editing sessions.
type SyncClient = interfaces.SyncClient

// Session exports an editing session of one block.
type Session = editor.Session

// SessionSnapshot exports the diagnostics returned by Session.Snapshot.
type SessionSnapshot = editor.Snapshot

// SessionRegistry exports the registry of editing sessions.
type SessionRegistry = editor.Registry

// Policy exports the field merge policy.
type Policy = reconcile.Policy

// BlockService exports the backend block service contract.
type BlockService = blocks.Service

// Refresher exports the server-baseline refresher.
type Refresher = refresh.Refresher

// Option configures the container behind a Module.
type Option = di.Option

var (
	WithLoggerProvider     = di.WithLoggerProvider
	WithBunDB              = di.WithBunDB
	WithCache              = di.WithCache
	WithBlockService       = di.WithBlockService
	WithSyncClient         = di.WithSyncClient
	WithDefinitionRegistry = di.WithDefinitionRegistry
)

// Merge folds update into baseline following policy.
func Merge(baseline, update map[string]any, policy Policy) map[string]any {
	return reconcile.MergeRecord(baseline, update, policy)
}

// Equal reports whether two content values are structurally equal.
func Equal(a, b any) bool {
	return reconcile.Equal(a, b)
}

// DefaultPolicy returns the field policy shipped with the engine.
func DefaultPolicy() Policy {
	return reconcile.DefaultPolicy()
}

// Module is the top level runtime facade.
type Module struct {
	container *di.Container
}

// New constructs a Module from cfg.
func New(cfg Config, opts ...Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Blocks returns the backend block service.
func (m *Module) Blocks() BlockService {
	return m.container.BlockService()
}

// Handler returns the HTTP handler of the reference backend.
func (m *Module) Handler() (http.Handler, error) {
	return m.container.API().Handler()
}

// Sessions returns the registry of editing sessions.
func (m *Module) Sessions() (*SessionRegistry, error) {
	return m.container.EditorRegistry()
}

// Open starts, or returns, the editing session of block.
func (m *Module) Open(block *Block) (*Session, error) {
	registry, err := m.container.EditorRegistry()
	if err != nil {
		return nil, err
	}
	return registry.Open(block)
}

// Refresher returns the server-baseline refresher.
func (m *Module) Refresher() (*Refresher, error) {
	return m.container.Refresher()
}

// Close closes every session, drains pending flushes and releases storage.
func (m *Module) Close(ctx context.Context) error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close(ctx)
}
