package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-blocksync/internal/reconcile"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
)

// SaveCall records one Save invocation.
type SaveCall struct {
	BlockID   uuid.UUID
	Content   map[string]any
	AttemptID string
}

// FakeSyncClient is an in-memory interfaces.SyncClient. By default Save echoes
// the content it receives; FailNext queues errors and SaveFunc replaces the
// behaviour entirely.
type FakeSyncClient struct {
	mu       sync.Mutex
	saves    []SaveCall
	reorders [][]interfaces.BlockPosition
	pages    map[uuid.UUID]*interfaces.Page
	failures []error

	// SaveFunc, when set, produces the Save result. It runs outside the
	// client lock so it may block.
	SaveFunc func(ctx context.Context, call SaveCall) (*interfaces.Block, error)
}

var _ interfaces.SyncClient = (*FakeSyncClient)(nil)

func NewFakeSyncClient() *FakeSyncClient {
	return &FakeSyncClient{pages: map[uuid.UUID]*interfaces.Page{}}
}

// FailNext makes the next len(errs) saves fail with errs, in order.
func (f *FakeSyncClient) FailNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

func (f *FakeSyncClient) Save(ctx context.Context, blockID uuid.UUID, content map[string]any) (*interfaces.Block, error) {
	call := SaveCall{
		BlockID:   blockID,
		Content:   reconcile.CloneRecord(content),
		AttemptID: interfaces.AttemptIDFromContext(ctx),
	}

	f.mu.Lock()
	f.saves = append(f.saves, call)
	var failure error
	if len(f.failures) > 0 {
		failure = f.failures[0]
		f.failures = f.failures[1:]
	}
	fn := f.SaveFunc
	f.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	if fn != nil {
		return fn(ctx, call)
	}
	return &interfaces.Block{ID: blockID, Content: reconcile.CloneRecord(content)}, nil
}

func (f *FakeSyncClient) Reorder(_ context.Context, positions []interfaces.BlockPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reorders = append(f.reorders, append([]interfaces.BlockPosition(nil), positions...))
	return nil
}

func (f *FakeSyncClient) FetchPage(_ context.Context, pageID uuid.UUID) (*interfaces.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[pageID]
	if !ok {
		return &interfaces.Page{ID: pageID}, nil
	}
	out := &interfaces.Page{ID: page.ID, Blocks: make([]*interfaces.Block, 0, len(page.Blocks))}
	for _, block := range page.Blocks {
		copied := *block
		copied.Content = reconcile.CloneRecord(block.Content)
		out.Blocks = append(out.Blocks, &copied)
	}
	return out, nil
}

// SetPage stores the page returned by FetchPage.
func (f *FakeSyncClient) SetPage(page *interfaces.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[page.ID] = page
}

// Saves returns the recorded Save calls.
func (f *FakeSyncClient) Saves() []SaveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SaveCall(nil), f.saves...)
}

// SaveCount returns how many Save calls reached the client.
func (f *FakeSyncClient) SaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// Reorders returns the recorded Reorder calls.
func (f *FakeSyncClient) Reorders() [][]interfaces.BlockPosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]interfaces.BlockPosition(nil), f.reorders...)
}
