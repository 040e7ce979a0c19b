package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-blocksync/internal/blocks"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
)

// blockPutPayload is either a content save or, with Reorder set, a position
// update. Both travel on PUT /blocks.
type blockPutPayload struct {
	ID              uuid.UUID         `json:"id"`
	Content         map[string]any    `json:"content"`
	ClientUpdatedAt *time.Time        `json:"clientUpdatedAt,omitempty"`
	Reorder         bool              `json:"reorder,omitempty"`
	Blocks          []positionPayload `json:"blocks,omitempty"`
}

type positionPayload struct {
	ID       uuid.UUID `json:"id"`
	Position int       `json:"position"`
}

func (p blockPutPayload) Validate() error {
	errs := validation.Errors{}
	if p.Reorder {
		if len(p.Blocks) == 0 {
			errs["blocks"] = validation.NewError("blocksync.reorder.blocks_required", "blocks is required")
		}
		for i, entry := range p.Blocks {
			key := "blocks." + strconv.Itoa(i)
			if entry.ID == uuid.Nil {
				errs[key+".id"] = validation.NewError("blocksync.reorder.id_required", "id is required")
			}
			if entry.Position < 0 {
				errs[key+".position"] = validation.NewError("blocksync.reorder.position_invalid", "position cannot be negative")
			}
		}
	} else {
		if p.ID == uuid.Nil {
			errs["id"] = validation.NewError("blocksync.save.id_required", "id is required")
		}
		if p.Content == nil {
			errs["content"] = validation.NewError("blocksync.save.content_required", "content is required")
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type blockCreatePayload struct {
	ID       uuid.UUID      `json:"id"`
	PageID   uuid.UUID      `json:"page_id"`
	Type     string         `json:"type"`
	Position int            `json:"position"`
	Content  map[string]any `json:"content"`
}

func (p blockCreatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PageID, validation.By(requireUUID)),
		validation.Field(&p.Type, validation.Required, validation.Length(1, 64)),
		validation.Field(&p.Position, validation.Min(0)),
	)
}

func requireUUID(value any) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return validation.NewError("blocksync.uuid_required", "must be a non-nil uuid")
	}
	return nil
}

func (api *API) registerBlockRoutes(mux *http.ServeMux, base string) {
	root := joinPath(base, "blocks")
	mux.HandleFunc("PUT "+root, api.handleBlockPut)
	mux.HandleFunc("POST "+root, api.handleBlockCreate)
	mux.HandleFunc("GET "+root+"/{id}", api.handleBlockGet)
}

func (api *API) handleBlockPut(w http.ResponseWriter, r *http.Request) {
	var payload blockPutPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(w, "invalid json payload")
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if payload.Reorder {
		api.reorder(w, r, payload.Blocks)
		return
	}

	logger := api.requestLogger(r)
	input := blocks.SaveContentInput{ID: payload.ID, Content: payload.Content}
	if payload.ClientUpdatedAt != nil {
		input.ClientUpdatedAt = *payload.ClientUpdatedAt
	}
	saved, err := api.blocks.SaveContent(r.Context(), input)
	if err != nil {
		logger.Warn("server.block.save_rejected", "block_id", payload.ID, "error", err)
		writeError(w, err)
		return
	}
	logger.Info("server.block.saved", "block_id", saved.ID, "page_id", saved.PageID)

	block := toInterfaceBlock(saved)
	api.hub.Publish(interfaces.BlockEvent{
		Type:       interfaces.EventBlockSaved,
		PageID:     saved.PageID,
		Block:      block,
		AttemptID:  strings.TrimSpace(r.Header.Get(RequestIDHeader)),
		OccurredAt: api.now(),
	})
	writeData(w, http.StatusOK, block)
}

func (api *API) reorder(w http.ResponseWriter, r *http.Request, entries []positionPayload) {
	positions := make([]blocks.PositionInput, 0, len(entries))
	for _, entry := range entries {
		positions = append(positions, blocks.PositionInput{ID: entry.ID, Position: entry.Position})
	}
	updated, err := api.blocks.Reorder(r.Context(), positions)
	if err != nil {
		writeError(w, err)
		return
	}
	api.requestLogger(r).Info("server.blocks.reordered", "count", len(updated))

	out := make([]*interfaces.Block, 0, len(updated))
	published := map[uuid.UUID]bool{}
	for _, record := range updated {
		block := toInterfaceBlock(record)
		out = append(out, block)
		if published[record.PageID] {
			continue
		}
		published[record.PageID] = true
		api.hub.Publish(interfaces.BlockEvent{
			Type:       interfaces.EventBlocksReordered,
			PageID:     record.PageID,
			OccurredAt: api.now(),
		})
	}
	writeData(w, http.StatusOK, out)
}

func (api *API) handleBlockCreate(w http.ResponseWriter, r *http.Request) {
	var payload blockCreatePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(w, "invalid json payload")
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, err)
		return
	}
	created, err := api.blocks.CreateBlock(r.Context(), blocks.CreateBlockInput{
		ID:       payload.ID,
		PageID:   payload.PageID,
		Type:     payload.Type,
		Position: payload.Position,
		Content:  payload.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	api.requestLogger(r).Info("server.block.created", "block_id", created.ID, "page_id", created.PageID, "type", created.Type)
	writeData(w, http.StatusCreated, toInterfaceBlock(created))
}

func (api *API) handleBlockGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r.PathValue("id"))
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}
	record, err := api.blocks.GetBlock(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toInterfaceBlock(record))
}

func toInterfaceBlock(record *blocks.Block) *interfaces.Block {
	if record == nil {
		return nil
	}
	return &interfaces.Block{
		ID:        record.ID,
		PageID:    record.PageID,
		Type:      record.Type,
		Position:  record.Position,
		Content:   record.Content,
		UpdatedAt: record.UpdatedAt,
	}
}
