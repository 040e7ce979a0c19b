package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Block is the client-side copy of one addressable unit of block content.
// Content is an opaque nested record; the engine never interprets its shape.
type Block struct {
	ID        uuid.UUID      `json:"id"`
	PageID    uuid.UUID      `json:"page_id,omitempty"`
	Type      string         `json:"type,omitempty"`
	Position  int            `json:"position"`
	Content   map[string]any `json:"content"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// Page groups the blocks returned by a page fetch. Each block's content is the
// server baseline observed by editing sessions.
type Page struct {
	ID     uuid.UUID `json:"id"`
	Blocks []*Block  `json:"blocks"`
}

// BlockPosition is one entry of a reorder request.
type BlockPosition struct {
	ID       uuid.UUID `json:"id"`
	Position int       `json:"position"`
}

// SyncClient is the network boundary used by editing sessions.
//
// Save must be idempotent at the content level: sending the same content twice
// is harmless. Implementations are not required to dedupe concurrent calls for
// the same block, editing sessions guarantee single-flight per block.
type SyncClient interface {
	// Save persists the content of a block. The returned block carries the
	// content echoed by the backend; Content may be nil when the backend did
	// not echo it.
	Save(ctx context.Context, blockID uuid.UUID, content map[string]any) (*Block, error)
	// Reorder updates block positions using the same transport as Save.
	Reorder(ctx context.Context, positions []BlockPosition) error
	// FetchPage returns the page and the server baseline of every block on it.
	FetchPage(ctx context.Context, pageID uuid.UUID) (*Page, error)
}

// FlushRequest is the payload of a teardown flush.
type FlushRequest struct {
	BlockID uuid.UUID
	Content map[string]any
}

// Flusher sends a final best-effort save on behalf of an editing session that
// is being torn down. Implementations must not depend on the lifetime of the
// session that submitted the request.
type Flusher interface {
	Flush(req FlushRequest)
}

// FlusherFunc adapts a function into a Flusher.
type FlusherFunc func(req FlushRequest)

// Flush implements Flusher.
func (f FlusherFunc) Flush(req FlushRequest) {
	if f != nil {
		f(req)
	}
}

type attemptKey struct{}

// ContextWithAttemptID tags ctx with the identifier of one save attempt. Sync
// clients forward it to the backend so both sides log the same attempt.
func ContextWithAttemptID(ctx context.Context, id string) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, attemptKey{}, id)
}

// AttemptIDFromContext returns the save attempt identifier carried by ctx.
func AttemptIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(attemptKey{}).(string)
	return id
}

// EventBlockSaved is published after the backend persisted block content.
const EventBlockSaved = "block.saved"

// EventBlocksReordered is published after block positions changed.
const EventBlocksReordered = "blocks.reordered"

// BlockEvent is one message of a page event stream.
type BlockEvent struct {
	Type       string    `json:"type"`
	PageID     uuid.UUID `json:"page_id"`
	Block      *Block    `json:"block,omitempty"`
	AttemptID  string    `json:"attempt_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
