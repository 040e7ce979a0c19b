// Package refresh keeps the server baseline of open editing sessions current,
// either on a cron schedule or by following the live page event stream.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const defaultFetchTimeout = 10 * time.Second

var (
	ErrFetcherRequired = errors.New("refresh: page fetcher is required")
	ErrSinkRequired    = errors.New("refresh: baseline sink is required")
	ErrScheduleInvalid = errors.New("refresh: invalid cron schedule")
)

// PageFetcher loads a page with the server content of its blocks.
// interfaces.SyncClient satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageID uuid.UUID) (*interfaces.Page, error)
}

// BaselineSink receives fetched pages. *editor.Registry satisfies it.
type BaselineSink interface {
	ApplyPage(page *interfaces.Page) int
}

// EventSource streams page events until ctx is done.
type EventSource interface {
	Subscribe(ctx context.Context, pageID uuid.UUID, handler func(interfaces.BlockEvent)) error
}

// EventSourceFunc adapts a function into an EventSource.
type EventSourceFunc func(ctx context.Context, pageID uuid.UUID, handler func(interfaces.BlockEvent)) error

// Subscribe implements EventSource.
func (f EventSourceFunc) Subscribe(ctx context.Context, pageID uuid.UUID, handler func(interfaces.BlockEvent)) error {
	return f(ctx, pageID, handler)
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the refresher logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Refresher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFetchTimeout bounds each scheduled page fetch.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(r *Refresher) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithContext sets the parent context of scheduled refreshes.
func WithContext(ctx context.Context) Option {
	return func(r *Refresher) {
		if ctx != nil {
			r.ctx = ctx
		}
	}
}

// Refresher fetches pages and feeds their block content into open sessions.
type Refresher struct {
	fetcher PageFetcher
	sink    BaselineSink
	logger  interfaces.Logger
	timeout time.Duration
	ctx     context.Context

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[uuid.UUID]cron.EntryID
}

func New(fetcher PageFetcher, sink BaselineSink, opts ...Option) (*Refresher, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}
	r := &Refresher{
		fetcher: fetcher,
		sink:    sink,
		logger:  logging.NoOp(),
		timeout: defaultFetchTimeout,
		ctx:     context.Background(),
		cron:    cron.New(),
		entries: make(map[uuid.UUID]cron.EntryID),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Refresh fetches the page once and returns how many sessions received a new
// server baseline.
func (r *Refresher) Refresh(ctx context.Context, pageID uuid.UUID) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	page, err := r.fetcher.FetchPage(ctx, pageID)
	if err != nil {
		r.logger.Warn("refresh.page.failed", "page_id", pageID, "error", err)
		return 0, err
	}
	updated := r.sink.ApplyPage(page)
	r.logger.Debug("refresh.page.applied", "page_id", pageID, "sessions", updated)
	return updated, nil
}

// Schedule refreshes pageID on the standard cron spec. Scheduling a page
// again replaces its previous entry.
func (r *Refresher) Schedule(spec string, pageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()
		_, _ = r.Refresh(ctx, pageID)
	})
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrScheduleInvalid, spec, err)
	}
	if previous, ok := r.entries[pageID]; ok {
		r.cron.Remove(previous)
	}
	r.entries[pageID] = id
	r.logger.Info("refresh.page.scheduled", "page_id", pageID, "schedule", spec)
	return nil
}

// Unschedule removes the cron entry of pageID.
func (r *Refresher) Unschedule(pageID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.entries[pageID]; ok {
		r.cron.Remove(id)
		delete(r.entries, pageID)
	}
}

// Scheduled returns how many pages have a cron entry.
func (r *Refresher) Scheduled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Start runs the cron scheduler in its own goroutine.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the scheduler and waits for running refreshes.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// Follow applies page events to open sessions until ctx is done. Saved
// blocks carry their content and are applied directly; a reorder triggers a
// full page refresh.
func (r *Refresher) Follow(ctx context.Context, source EventSource, pageID uuid.UUID) error {
	if source == nil {
		return errors.New("refresh: event source is required")
	}
	return source.Subscribe(ctx, pageID, func(event interfaces.BlockEvent) {
		r.handleEvent(ctx, pageID, event)
	})
}

func (r *Refresher) handleEvent(ctx context.Context, pageID uuid.UUID, event interfaces.BlockEvent) {
	switch event.Type {
	case interfaces.EventBlockSaved:
		if event.Block == nil {
			return
		}
		updated := r.sink.ApplyPage(&interfaces.Page{ID: pageID, Blocks: []*interfaces.Block{event.Block}})
		r.logger.Debug("refresh.event.applied",
			"page_id", pageID,
			"block_id", event.Block.ID,
			"attempt_id", event.AttemptID,
			"sessions", updated,
		)
	case interfaces.EventBlocksReordered:
		_, _ = r.Refresh(ctx, pageID)
	default:
		r.logger.Debug("refresh.event.ignored", "type", event.Type)
	}
}
