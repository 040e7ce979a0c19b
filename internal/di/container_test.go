package di_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-blocksync/internal/blocks"
	"github.com/goliatone/go-blocksync/internal/di"
	"github.com/goliatone/go-blocksync/internal/runtimeconfig"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/goliatone/go-blocksync/pkg/testsupport"
	"github.com/google/uuid"
)

func TestNewContainerRejectsInvalidConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Storage.Provider = "redis"
	if _, err := di.NewContainer(cfg); !errors.Is(err, runtimeconfig.ErrStorageProviderUnknown) {
		t.Fatalf("expected ErrStorageProviderUnknown, got %v", err)
	}
}

func TestContainerDefaultsToMemoryBlockService(t *testing.T) {
	container, err := di.NewContainer(runtimeconfig.DefaultConfig())
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	ctx := context.Background()
	pageID := uuid.New()
	created, err := container.BlockService().CreateBlock(ctx, blocks.CreateBlockInput{
		PageID:  pageID,
		Type:    "hero",
		Content: map[string]any{"title": "Hello"},
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	listed, err := container.BlockService().ListPage(ctx, pageID)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("expected created block on page, got %#v", listed)
	}
	if container.API() != container.API() {
		t.Fatalf("expected API to be built once")
	}
}

func TestContainerSeedsDefinitionRegistry(t *testing.T) {
	registry := blocks.NewRegistry()
	registry.Register(blocks.RegisterDefinitionInput{
		Name:   "hero",
		Schema: map[string]any{"fields": map[string]any{"title": "string"}},
	})

	container, err := di.NewContainer(runtimeconfig.DefaultConfig(), di.WithDefinitionRegistry(registry))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	_, err = container.BlockService().CreateBlock(context.Background(), blocks.CreateBlockInput{
		PageID:  uuid.New(),
		Type:    "hero",
		Content: map[string]any{"title": 42},
	})
	if !errors.Is(err, blocks.ErrContentInvalid) {
		t.Fatalf("expected registered schema to reject content, got %v", err)
	}
}

func TestContainerPolicyFallsBackToDefault(t *testing.T) {
	container, err := di.NewContainer(runtimeconfig.DefaultConfig())
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	if _, ok := container.Policy().Assign["title"]; !ok {
		t.Fatalf("expected default policy to assign title")
	}

	cfg := runtimeconfig.DefaultConfig()
	cfg.Policy.AssignArray = []string{"rows"}
	custom, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	policy := custom.Policy()
	if _, ok := policy.AssignArray["rows"]; !ok {
		t.Fatalf("expected configured policy, got %#v", policy)
	}
	if policy.IsZero() || len(policy.Assign) != 0 {
		t.Fatalf("expected only the configured fields, got %#v", policy)
	}
}

func TestContainerEditorRuntimeSavesAgainstBackend(t *testing.T) {
	backend, err := di.NewContainer(runtimeconfig.DefaultConfig())
	if err != nil {
		t.Fatalf("backend container: %v", err)
	}
	handler, err := backend.API().Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	pageID := uuid.New()
	created, err := backend.BlockService().CreateBlock(ctx, blocks.CreateBlockInput{
		PageID:  pageID,
		Type:    "hero",
		Content: map[string]any{"title": "Server"},
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}

	cfg := runtimeconfig.DefaultConfig()
	cfg.Sync.BaseURL = srv.URL + "/api"
	cfg.Sync.DebounceDelay = time.Hour
	editorSide, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("editor container: %v", err)
	}
	registry, err := editorSide.EditorRegistry()
	if err != nil {
		t.Fatalf("editor registry: %v", err)
	}
	client, _ := editorSide.SyncClient()
	page, err := client.FetchPage(ctx, pageID)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	session, err := registry.Open(page.Blocks[0])
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := session.Update(map[string]any{"title": "Edited"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Close flushes the dirty draft through the outbox and drains it.
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := editorSide.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}

	stored, err := backend.BlockService().GetBlock(ctx, created.ID)
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if stored.Content["title"] != "Edited" {
		t.Fatalf("expected flushed title on the backend, got %#v", stored.Content)
	}
}

func TestContainerRefresherFeedsRegistry(t *testing.T) {
	fake := testsupport.NewFakeSyncClient()
	container, err := di.NewContainer(runtimeconfig.DefaultConfig(), di.WithSyncClient(fake))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	registry, err := container.EditorRegistry()
	if err != nil {
		t.Fatalf("editor registry: %v", err)
	}
	block := &interfaces.Block{ID: uuid.New(), PageID: uuid.New(), Content: map[string]any{"title": "A"}}
	session, err := registry.Open(block)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fake.SetPage(&interfaces.Page{ID: block.PageID, Blocks: []*interfaces.Block{
		{ID: block.ID, Content: map[string]any{"title": "remote"}},
	}})

	refresher, err := container.Refresher()
	if err != nil {
		t.Fatalf("refresher: %v", err)
	}
	if updated, err := refresher.Refresh(context.Background(), block.PageID); err != nil || updated != 1 {
		t.Fatalf("expected one session refreshed, got %d (%v)", updated, err)
	}
	if session.Content()["title"] != "remote" {
		t.Fatalf("expected clean session to follow the server, got %#v", session.Content())
	}
	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}
