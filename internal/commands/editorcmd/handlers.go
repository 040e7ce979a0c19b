package editorcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-blocksync/internal/commands"
	"github.com/goliatone/go-blocksync/internal/editor"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
)

// ErrSessionNotOpen is returned when a command targets a block without an
// open editing session.
var ErrSessionNotOpen = errors.New("editor command: no open session for block")

// Sessions resolves open editing sessions. *editor.Registry satisfies it.
type Sessions interface {
	Get(blockID uuid.UUID) (*editor.Session, bool)
}

// PageRefresher feeds fresh server baselines into open sessions.
type PageRefresher interface {
	Refresh(ctx context.Context, pageID uuid.UUID) (int, error)
}

func lookup(sessions Sessions, blockID uuid.UUID) (*editor.Session, error) {
	session, ok := sessions.Get(blockID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotOpen, blockID)
	}
	return session, nil
}

// SaveBlockHandler runs the manual save path of a session. A save suppressed
// because another one is in flight is not an error.
type SaveBlockHandler struct {
	inner *commands.Handler[SaveBlockCommand]
}

func NewSaveBlockHandler(sessions Sessions, logger interfaces.Logger, opts ...commands.HandlerOption[SaveBlockCommand]) *SaveBlockHandler {
	exec := func(ctx context.Context, msg SaveBlockCommand) error {
		session, err := lookup(sessions, msg.BlockID)
		if err != nil {
			return err
		}
		_, err = session.Save(ctx)
		return err
	}
	handlerOpts := []commands.HandlerOption[SaveBlockCommand]{
		commands.WithLogger[SaveBlockCommand](logger),
		commands.WithOperation[SaveBlockCommand]("block.save"),
	}
	return &SaveBlockHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[SaveBlockCommand].Execute.
func (h *SaveBlockHandler) Execute(ctx context.Context, msg SaveBlockCommand) error {
	return h.inner.Execute(ctx, msg)
}

// UpdateBlockHandler merges a partial mutation into a session draft.
type UpdateBlockHandler struct {
	inner *commands.Handler[UpdateBlockCommand]
}

func NewUpdateBlockHandler(sessions Sessions, logger interfaces.Logger, opts ...commands.HandlerOption[UpdateBlockCommand]) *UpdateBlockHandler {
	exec := func(_ context.Context, msg UpdateBlockCommand) error {
		session, err := lookup(sessions, msg.BlockID)
		if err != nil {
			return err
		}
		_, err = session.Update(msg.Content)
		return err
	}
	handlerOpts := []commands.HandlerOption[UpdateBlockCommand]{
		commands.WithLogger[UpdateBlockCommand](logger),
		commands.WithOperation[UpdateBlockCommand]("block.update"),
	}
	return &UpdateBlockHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[UpdateBlockCommand].Execute.
func (h *UpdateBlockHandler) Execute(ctx context.Context, msg UpdateBlockCommand) error {
	return h.inner.Execute(ctx, msg)
}

// RevertBlockHandler discards a session draft.
type RevertBlockHandler struct {
	inner *commands.Handler[RevertBlockCommand]
}

func NewRevertBlockHandler(sessions Sessions, logger interfaces.Logger, opts ...commands.HandlerOption[RevertBlockCommand]) *RevertBlockHandler {
	exec := func(_ context.Context, msg RevertBlockCommand) error {
		session, err := lookup(sessions, msg.BlockID)
		if err != nil {
			return err
		}
		_, err = session.Revert()
		return err
	}
	handlerOpts := []commands.HandlerOption[RevertBlockCommand]{
		commands.WithLogger[RevertBlockCommand](logger),
		commands.WithOperation[RevertBlockCommand]("block.revert"),
	}
	return &RevertBlockHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[RevertBlockCommand].Execute.
func (h *RevertBlockHandler) Execute(ctx context.Context, msg RevertBlockCommand) error {
	return h.inner.Execute(ctx, msg)
}

// ReorderBlocksHandler sends a reorder through the sync client.
type ReorderBlocksHandler struct {
	inner *commands.Handler[ReorderBlocksCommand]
}

func NewReorderBlocksHandler(client interfaces.SyncClient, logger interfaces.Logger, opts ...commands.HandlerOption[ReorderBlocksCommand]) *ReorderBlocksHandler {
	exec := func(ctx context.Context, msg ReorderBlocksCommand) error {
		positions := make([]interfaces.BlockPosition, 0, len(msg.Positions))
		for _, entry := range msg.Positions {
			positions = append(positions, interfaces.BlockPosition{ID: entry.BlockID, Position: entry.Position})
		}
		return client.Reorder(ctx, positions)
	}
	handlerOpts := []commands.HandlerOption[ReorderBlocksCommand]{
		commands.WithLogger[ReorderBlocksCommand](logger),
		commands.WithOperation[ReorderBlocksCommand]("blocks.reorder"),
	}
	return &ReorderBlocksHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[ReorderBlocksCommand].Execute.
func (h *ReorderBlocksHandler) Execute(ctx context.Context, msg ReorderBlocksCommand) error {
	return h.inner.Execute(ctx, msg)
}

// RefreshPageHandler refreshes the server baselines of a page.
type RefreshPageHandler struct {
	inner *commands.Handler[RefreshPageCommand]
}

func NewRefreshPageHandler(refresher PageRefresher, logger interfaces.Logger, opts ...commands.HandlerOption[RefreshPageCommand]) *RefreshPageHandler {
	exec := func(ctx context.Context, msg RefreshPageCommand) error {
		_, err := refresher.Refresh(ctx, msg.PageID)
		return err
	}
	handlerOpts := []commands.HandlerOption[RefreshPageCommand]{
		commands.WithLogger[RefreshPageCommand](logger),
		commands.WithOperation[RefreshPageCommand]("page.refresh"),
	}
	return &RefreshPageHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[RefreshPageCommand].Execute.
func (h *RefreshPageHandler) Execute(ctx context.Context, msg RefreshPageCommand) error {
	return h.inner.Execute(ctx, msg)
}
