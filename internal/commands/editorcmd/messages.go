package editorcmd

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	saveBlockMessageType     = "blocksync.block.save"
	updateBlockMessageType   = "blocksync.block.update"
	revertBlockMessageType   = "blocksync.block.revert"
	reorderBlocksMessageType = "blocksync.blocks.reorder"
	refreshPageMessageType   = "blocksync.page.refresh"
)

// SaveBlockCommand requests a manual save of an open editing session.
type SaveBlockCommand struct {
	BlockID uuid.UUID `json:"block_id"`
}

// Type implements command.Message.
func (SaveBlockCommand) Type() string { return saveBlockMessageType }

// Validate ensures the message targets a block.
func (m SaveBlockCommand) Validate() error {
	return requireBlockID(m.BlockID, saveBlockMessageType)
}

// UpdateBlockCommand merges Content into the draft of an open session.
type UpdateBlockCommand struct {
	BlockID uuid.UUID      `json:"block_id"`
	Content map[string]any `json:"content"`
}

// Type implements command.Message.
func (UpdateBlockCommand) Type() string { return updateBlockMessageType }

// Validate ensures the message targets a block and carries a mutation.
func (m UpdateBlockCommand) Validate() error {
	errs := validation.Errors{}
	if m.BlockID == uuid.Nil {
		errs["block_id"] = validation.NewError(updateBlockMessageType+".block_id_required", "block_id is required")
	}
	if m.Content == nil {
		errs["content"] = validation.NewError(updateBlockMessageType+".content_required", "content is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RevertBlockCommand discards the draft of an open session.
type RevertBlockCommand struct {
	BlockID uuid.UUID `json:"block_id"`
}

// Type implements command.Message.
func (RevertBlockCommand) Type() string { return revertBlockMessageType }

// Validate ensures the message targets a block.
func (m RevertBlockCommand) Validate() error {
	return requireBlockID(m.BlockID, revertBlockMessageType)
}

// BlockPosition is one entry of ReorderBlocksCommand.
type BlockPosition struct {
	BlockID  uuid.UUID `json:"block_id"`
	Position int       `json:"position"`
}

// ReorderBlocksCommand moves blocks to new positions.
type ReorderBlocksCommand struct {
	Positions []BlockPosition `json:"positions"`
}

// Type implements command.Message.
func (ReorderBlocksCommand) Type() string { return reorderBlocksMessageType }

// Validate checks every position entry.
func (m ReorderBlocksCommand) Validate() error {
	errs := validation.Errors{}
	if len(m.Positions) == 0 {
		errs["positions"] = validation.NewError(reorderBlocksMessageType+".positions_required", "positions is required")
	}
	seen := map[uuid.UUID]bool{}
	for i, entry := range m.Positions {
		key := "positions." + strconv.Itoa(i)
		switch {
		case entry.BlockID == uuid.Nil:
			errs[key+".block_id"] = validation.NewError(reorderBlocksMessageType+".block_id_required", "block_id is required")
		case seen[entry.BlockID]:
			errs[key+".block_id"] = validation.NewError(reorderBlocksMessageType+".block_id_duplicate", "block_id appears more than once")
		}
		seen[entry.BlockID] = true
		if entry.Position < 0 {
			errs[key+".position"] = validation.NewError(reorderBlocksMessageType+".position_invalid", "position cannot be negative")
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RefreshPageCommand fetches a page and feeds the server baseline of every
// open session on it.
type RefreshPageCommand struct {
	PageID uuid.UUID `json:"page_id"`
}

// Type implements command.Message.
func (RefreshPageCommand) Type() string { return refreshPageMessageType }

// Validate ensures the message targets a page.
func (m RefreshPageCommand) Validate() error {
	if m.PageID == uuid.Nil {
		return validation.Errors{
			"page_id": validation.NewError(refreshPageMessageType+".page_id_required", "page_id is required"),
		}
	}
	return nil
}

func requireBlockID(id uuid.UUID, messageType string) error {
	if id == uuid.Nil {
		return validation.Errors{
			"block_id": validation.NewError(messageType+".block_id_required", "block_id is required"),
		}
	}
	return nil
}
