package blocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-blocksync/internal/reconcile"
	"github.com/google/uuid"
)

// NewMemoryDefinitionRepository constructs an "in memory" definition repository.
func NewMemoryDefinitionRepository() DefinitionRepository {
	return &memoryDefinitionRepository{
		byName: make(map[string]*Definition),
	}
}

type memoryDefinitionRepository struct {
	mu     sync.RWMutex
	byName map[string]*Definition
}

func (m *memoryDefinitionRepository) Create(_ context.Context, definition *Definition) (*Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cloned := cloneDefinition(definition)
	m.byName[cloned.Name] = cloned
	return cloneDefinition(cloned), nil
}

func (m *memoryDefinitionRepository) GetByName(_ context.Context, name string) (*Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byName[name]
	if !ok {
		return nil, &NotFoundError{Resource: "block_definition", Key: name}
	}
	return cloneDefinition(record), nil
}

func (m *memoryDefinitionRepository) List(_ context.Context) ([]*Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Definition, 0, len(m.byName))
	for _, record := range m.byName {
		out = append(out, cloneDefinition(record))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// NewMemoryBlockRepository constructs an "in memory" block repository.
func NewMemoryBlockRepository() BlockRepository {
	return &memoryBlockRepository{
		byID: make(map[uuid.UUID]*Block),
	}
}

type memoryBlockRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Block
}

func (m *memoryBlockRepository) Create(_ context.Context, block *Block) (*Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cloned := cloneBlock(block)
	m.byID[cloned.ID] = cloned
	return cloneBlock(cloned), nil
}

func (m *memoryBlockRepository) GetByID(_ context.Context, id uuid.UUID) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, &NotFoundError{Resource: "block", Key: id.String()}
	}
	return cloneBlock(record), nil
}

func (m *memoryBlockRepository) ListByPage(_ context.Context, pageID uuid.UUID) ([]*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Block
	for _, record := range m.byID {
		if record.PageID == pageID {
			out = append(out, cloneBlock(record))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryBlockRepository) Update(_ context.Context, block *Block) (*Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byID[block.ID]
	if !ok {
		return nil, &NotFoundError{Resource: "block", Key: block.ID.String()}
	}
	cloned := cloneBlock(block)
	cloned.PageID = existing.PageID
	cloned.Type = existing.Type
	cloned.CreatedAt = existing.CreatedAt
	m.byID[cloned.ID] = cloned
	return cloneBlock(cloned), nil
}

func cloneDefinition(src *Definition) *Definition {
	if src == nil {
		return nil
	}
	cloned := *src
	cloned.Schema = reconcile.CloneRecord(src.Schema)
	if src.Description != nil {
		description := *src.Description
		cloned.Description = &description
	}
	return &cloned
}

func cloneBlock(src *Block) *Block {
	if src == nil {
		return nil
	}
	cloned := *src
	cloned.Content = reconcile.CloneRecord(src.Content)
	cloned.ClientUpdatedAt = cloneTime(src.ClientUpdatedAt)
	return &cloned
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
