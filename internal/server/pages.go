package server

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-blocksync/internal/blocks"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

func (api *API) registerPageRoutes(mux *http.ServeMux, base string) {
	root := joinPath(base, "pages")
	mux.HandleFunc("GET "+root+"/{id}", api.handlePageGet)
	mux.HandleFunc("GET "+root+"/{id}/events", api.handlePageEvents)
}

func (api *API) handlePageGet(w http.ResponseWriter, r *http.Request) {
	pageID, err := parseUUID(r.PathValue("id"))
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}
	records, err := api.blocks.ListPage(r.Context(), pageID)
	if err != nil {
		writeError(w, err)
		return
	}
	page := interfaces.Page{ID: pageID, Blocks: make([]*interfaces.Block, 0, len(records))}
	for _, record := range records {
		page.Blocks = append(page.Blocks, toInterfaceBlock(record))
	}
	writeData(w, http.StatusOK, page)
}

func (api *API) handlePageEvents(w http.ResponseWriter, r *http.Request) {
	pageID, err := parseUUID(r.PathValue("id"))
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}
	api.hub.Serve(w, r, pageID)
}

type definitionPayload struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

func (p definitionPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 64)),
	)
}

func (api *API) registerDefinitionRoutes(mux *http.ServeMux, base string) {
	root := joinPath(base, "definitions")
	mux.HandleFunc("GET "+root, api.handleDefinitionList)
	mux.HandleFunc("POST "+root, api.handleDefinitionCreate)
}

func (api *API) handleDefinitionList(w http.ResponseWriter, r *http.Request) {
	list, err := api.blocks.ListDefinitions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*blocks.Definition{}
	}
	writeData(w, http.StatusOK, list)
}

func (api *API) handleDefinitionCreate(w http.ResponseWriter, r *http.Request) {
	var payload definitionPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(w, "invalid json payload")
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, err)
		return
	}
	definition, err := api.blocks.RegisterDefinition(r.Context(), blocks.RegisterDefinitionInput{
		Name:        strings.TrimSpace(payload.Name),
		Description: payload.Description,
		Schema:      payload.Schema,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, definition)
}
