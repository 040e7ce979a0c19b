package blocks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-blocksync/internal/blocks"
	"github.com/goliatone/go-blocksync/internal/validation"
	"github.com/google/uuid"
)

func newMemoryService(opts ...blocks.ServiceOption) blocks.Service {
	return blocks.NewService(blocks.NewMemoryDefinitionRepository(), blocks.NewMemoryBlockRepository(), opts...)
}

func TestServiceCreateAndListPageOrdersByPosition(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()
	pageID := uuid.New()

	second, err := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: pageID, Type: "text", Position: 1, Content: map[string]any{"body": "two"}})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	first, err := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: pageID, Type: "hero", Position: 0})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if _, err := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: uuid.New(), Type: "text"}); err != nil {
		t.Fatalf("create block on other page: %v", err)
	}

	page, err := svc.ListPage(ctx, pageID)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].ID != first.ID || page[1].ID != second.ID {
		t.Fatalf("unexpected page order %#v", page)
	}
	if page[0].Content == nil {
		t.Fatalf("expected empty content record, got nil")
	}
}

func TestServiceCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()
	pageID := uuid.New()

	cases := []struct {
		input blocks.CreateBlockInput
		want  error
	}{
		{blocks.CreateBlockInput{Type: "text"}, blocks.ErrPageIDRequired},
		{blocks.CreateBlockInput{PageID: pageID, Type: "  "}, blocks.ErrBlockTypeRequired},
		{blocks.CreateBlockInput{PageID: pageID, Type: "text", Position: -1}, blocks.ErrPositionInvalid},
	}
	for _, tc := range cases {
		if _, err := svc.CreateBlock(ctx, tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}

	id := uuid.New()
	if _, err := svc.CreateBlock(ctx, blocks.CreateBlockInput{ID: id, PageID: pageID, Type: "text"}); err != nil {
		t.Fatalf("create with explicit id: %v", err)
	}
	if _, err := svc.CreateBlock(ctx, blocks.CreateBlockInput{ID: id, PageID: pageID, Type: "text"}); !errors.Is(err, blocks.ErrBlockExists) {
		t.Fatalf("expected ErrBlockExists, got %v", err)
	}
}

func TestServiceSaveContentReplacesContent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newMemoryService(blocks.WithClock(func() time.Time { return now }))

	block, _ := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: uuid.New(), Type: "text", Content: map[string]any{"title": "A", "body": "x"}})
	saved, err := svc.SaveContent(ctx, blocks.SaveContentInput{
		ID:              block.ID,
		Content:         map[string]any{"title": "AB"},
		ClientUpdatedAt: now.Add(-time.Second),
	})
	if err != nil {
		t.Fatalf("save content: %v", err)
	}
	if saved.Content["title"] != "AB" {
		t.Fatalf("expected new content, got %#v", saved.Content)
	}
	if _, ok := saved.Content["body"]; ok {
		t.Fatalf("expected full replacement, got %#v", saved.Content)
	}
	if saved.ClientUpdatedAt == nil || !saved.ClientUpdatedAt.Equal(now.Add(-time.Second)) {
		t.Fatalf("expected client timestamp stored, got %v", saved.ClientUpdatedAt)
	}
}

func TestServiceSaveContentRejectsStaleWrites(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()
	block, _ := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: uuid.New(), Type: "text"})
	newer := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)

	if _, err := svc.SaveContent(ctx, blocks.SaveContentInput{ID: block.ID, Content: map[string]any{"title": "new"}, ClientUpdatedAt: newer}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, err := svc.SaveContent(ctx, blocks.SaveContentInput{ID: block.ID, Content: map[string]any{"title": "old"}, ClientUpdatedAt: newer.Add(-time.Second)})
	if !errors.Is(err, blocks.ErrStaleWrite) {
		t.Fatalf("expected ErrStaleWrite, got %v", err)
	}
	// Retrying the same save is accepted.
	if _, err := svc.SaveContent(ctx, blocks.SaveContentInput{ID: block.ID, Content: map[string]any{"title": "new"}, ClientUpdatedAt: newer}); err != nil {
		t.Fatalf("expected idempotent retry, got %v", err)
	}

	stored, _ := svc.GetBlock(ctx, block.ID)
	if stored.Content["title"] != "new" {
		t.Fatalf("stale write must not persist, got %#v", stored.Content)
	}
}

func TestServiceSaveContentErrors(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()

	if _, err := svc.SaveContent(ctx, blocks.SaveContentInput{Content: map[string]any{}}); !errors.Is(err, blocks.ErrBlockIDRequired) {
		t.Fatalf("expected ErrBlockIDRequired, got %v", err)
	}
	if _, err := svc.SaveContent(ctx, blocks.SaveContentInput{ID: uuid.New()}); !errors.Is(err, blocks.ErrContentRequired) {
		t.Fatalf("expected ErrContentRequired, got %v", err)
	}
	_, err := svc.SaveContent(ctx, blocks.SaveContentInput{ID: uuid.New(), Content: map[string]any{}})
	var notFound *blocks.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestServiceValidatesContentAgainstDefinition(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()

	if _, err := svc.RegisterDefinition(ctx, blocks.RegisterDefinitionInput{
		Name: "hero",
		Schema: map[string]any{
			"fields":               []any{map[string]any{"name": "title", "type": "string"}},
			"additionalProperties": false,
		},
	}); err != nil {
		t.Fatalf("register definition: %v", err)
	}

	block, err := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: uuid.New(), Type: "hero", Content: map[string]any{"title": "Hi"}})
	if err != nil {
		t.Fatalf("create valid block: %v", err)
	}
	// Drafts may omit fields and clear them.
	if _, err := svc.SaveContent(ctx, blocks.SaveContentInput{ID: block.ID, Content: map[string]any{"title": nil}}); err != nil {
		t.Fatalf("expected cleared field to validate, got %v", err)
	}

	_, err = svc.SaveContent(ctx, blocks.SaveContentInput{ID: block.ID, Content: map[string]any{"title": 42}})
	if !errors.Is(err, blocks.ErrContentInvalid) || !errors.Is(err, validation.ErrSchemaValidation) {
		t.Fatalf("expected content validation error, got %v", err)
	}
	if issues := validation.Issues(err); len(issues) == 0 {
		t.Fatalf("expected validation issues")
	}

	if _, err := svc.SaveContent(ctx, blocks.SaveContentInput{ID: block.ID, Content: map[string]any{"unknown": "x"}}); !errors.Is(err, blocks.ErrContentInvalid) {
		t.Fatalf("expected additional property rejected, got %v", err)
	}
}

func TestServiceRegisterDefinition(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()

	if _, err := svc.RegisterDefinition(ctx, blocks.RegisterDefinitionInput{}); !errors.Is(err, blocks.ErrDefinitionNameRequired) {
		t.Fatalf("expected ErrDefinitionNameRequired, got %v", err)
	}
	if _, err := svc.RegisterDefinition(ctx, blocks.RegisterDefinitionInput{Name: "bad", Schema: map[string]any{"type": 12}}); !errors.Is(err, blocks.ErrDefinitionSchema) {
		t.Fatalf("expected ErrDefinitionSchema, got %v", err)
	}
	if _, err := svc.RegisterDefinition(ctx, blocks.RegisterDefinitionInput{Name: "text"}); err != nil {
		t.Fatalf("register schemaless definition: %v", err)
	}
	if _, err := svc.RegisterDefinition(ctx, blocks.RegisterDefinitionInput{Name: "text"}); !errors.Is(err, blocks.ErrDefinitionExists) {
		t.Fatalf("expected ErrDefinitionExists, got %v", err)
	}
}

func TestServiceAppliesRegistry(t *testing.T) {
	ctx := context.Background()
	registry := blocks.NewRegistry()
	registry.Register(blocks.RegisterDefinitionInput{Name: "quote", Schema: map[string]any{"fields": []any{"text", "author"}}})
	registry.Register(blocks.RegisterDefinitionInput{Name: " hero "})
	registry.Register(blocks.RegisterDefinitionInput{Name: ""})

	svc := newMemoryService(blocks.WithRegistry(registry))
	definitions, err := svc.ListDefinitions(ctx)
	if err != nil {
		t.Fatalf("list definitions: %v", err)
	}
	if len(definitions) != 2 || definitions[0].Name != "hero" || definitions[1].Name != "quote" {
		t.Fatalf("unexpected definitions %#v", definitions)
	}
}

func TestServiceReorder(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()
	pageID := uuid.New()
	a, _ := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: pageID, Type: "text", Position: 0})
	b, _ := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: pageID, Type: "text", Position: 1})

	if _, err := svc.Reorder(ctx, nil); !errors.Is(err, blocks.ErrReorderEmpty) {
		t.Fatalf("expected ErrReorderEmpty, got %v", err)
	}
	if _, err := svc.Reorder(ctx, []blocks.PositionInput{{ID: a.ID, Position: 1}, {ID: uuid.New(), Position: 0}}); err == nil {
		t.Fatalf("expected unknown block to fail the reorder")
	}
	unchanged, _ := svc.ListPage(ctx, pageID)
	if unchanged[0].ID != a.ID {
		t.Fatalf("failed reorder must not move blocks")
	}

	updated, err := svc.Reorder(ctx, []blocks.PositionInput{{ID: a.ID, Position: 1}, {ID: b.ID, Position: 0}})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected two updated blocks, got %d", len(updated))
	}
	page, _ := svc.ListPage(ctx, pageID)
	if page[0].ID != b.ID || page[1].ID != a.ID {
		t.Fatalf("unexpected order after reorder")
	}
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()
	block, _ := svc.CreateBlock(ctx, blocks.CreateBlockInput{PageID: uuid.New(), Type: "text", Content: map[string]any{"nested": map[string]any{"a": "1"}}})

	block.Content["nested"].(map[string]any)["a"] = "mutated"
	stored, _ := svc.GetBlock(ctx, block.ID)
	if stored.Content["nested"].(map[string]any)["a"] != "1" {
		t.Fatalf("expected stored content isolated from callers")
	}
}
