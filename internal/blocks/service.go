package blocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-blocksync/internal/reconcile"
	"github.com/goliatone/go-blocksync/internal/validation"
	"github.com/google/uuid"
)

// Service is the backend side of block synchronization: it stores block
// content and rejects saves that would clobber newer content.
type Service interface {
	RegisterDefinition(ctx context.Context, input RegisterDefinitionInput) (*Definition, error)
	ListDefinitions(ctx context.Context) ([]*Definition, error)

	CreateBlock(ctx context.Context, input CreateBlockInput) (*Block, error)
	GetBlock(ctx context.Context, id uuid.UUID) (*Block, error)
	SaveContent(ctx context.Context, input SaveContentInput) (*Block, error)
	Reorder(ctx context.Context, positions []PositionInput) ([]*Block, error)
	ListPage(ctx context.Context, pageID uuid.UUID) ([]*Block, error)
}

type RegisterDefinitionInput struct {
	Name        string
	Description *string
	Schema      map[string]any
}

type CreateBlockInput struct {
	ID       uuid.UUID
	PageID   uuid.UUID
	Type     string
	Position int
	Content  map[string]any
}

// SaveContentInput replaces the content of a block. ClientUpdatedAt is the
// editor clock when the save was issued; zero skips the stale-write check.
type SaveContentInput struct {
	ID              uuid.UUID
	Content         map[string]any
	ClientUpdatedAt time.Time
}

type PositionInput struct {
	ID       uuid.UUID
	Position int
}

var (
	ErrDefinitionNameRequired = errors.New("blocks: definition name required")
	ErrDefinitionExists       = errors.New("blocks: definition already exists")
	ErrDefinitionSchema       = errors.New("blocks: definition schema invalid")

	ErrBlockIDRequired   = errors.New("blocks: block id required")
	ErrPageIDRequired    = errors.New("blocks: page id required")
	ErrBlockTypeRequired = errors.New("blocks: block type required")
	ErrPositionInvalid   = errors.New("blocks: position cannot be negative")
	ErrBlockExists       = errors.New("blocks: block already exists")
	ErrContentRequired   = errors.New("blocks: content required")
	ErrContentInvalid    = errors.New("blocks: content does not match the block schema")
	ErrStaleWrite        = errors.New("blocks: stored content is newer than this save")
	ErrReorderEmpty      = errors.New("blocks: reorder requires at least one block")
)

type IDGenerator func() uuid.UUID

type ServiceOption func(*service)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithIDGenerator(generator IDGenerator) ServiceOption {
	return func(s *service) {
		if generator != nil {
			s.id = generator
		}
	}
}

// WithRegistry registers the definitions held by reg when the service is built.
func WithRegistry(reg *Registry) ServiceOption {
	return func(s *service) {
		if reg != nil {
			s.registry = reg
		}
	}
}

type service struct {
	definitions DefinitionRepository
	blocks      BlockRepository
	registry    *Registry
	now         func() time.Time
	id          IDGenerator

	mu      sync.RWMutex
	schemas map[string]*validation.Schema
}

func NewService(defRepo DefinitionRepository, blockRepo BlockRepository, opts ...ServiceOption) Service {
	s := &service{
		definitions: defRepo,
		blocks:      blockRepo,
		now:         time.Now,
		id:          uuid.New,
		schemas:     map[string]*validation.Schema{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.registry != nil {
		s.applyRegistry(context.Background())
	}

	return s
}

func (s *service) RegisterDefinition(ctx context.Context, input RegisterDefinitionInput) (*Definition, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrDefinitionNameRequired
	}
	compiled, err := validation.Compile(input.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefinitionSchema, err)
	}

	if _, err := s.definitions.GetByName(ctx, name); err == nil {
		return nil, ErrDefinitionExists
	} else if !isNotFound(err) {
		return nil, err
	}

	now := s.now()
	definition, err := s.definitions.Create(ctx, &Definition{
		ID:          s.id(),
		Name:        name,
		Description: input.Description,
		Schema:      reconcile.CloneRecord(input.Schema),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.schemas[name] = compiled
	s.mu.Unlock()
	return definition, nil
}

func (s *service) ListDefinitions(ctx context.Context) ([]*Definition, error) {
	return s.definitions.List(ctx)
}

func (s *service) CreateBlock(ctx context.Context, input CreateBlockInput) (*Block, error) {
	if input.PageID == uuid.Nil {
		return nil, ErrPageIDRequired
	}
	blockType := strings.TrimSpace(input.Type)
	if blockType == "" {
		return nil, ErrBlockTypeRequired
	}
	if input.Position < 0 {
		return nil, ErrPositionInvalid
	}
	id := input.ID
	if id == uuid.Nil {
		id = s.id()
	} else if _, err := s.blocks.GetByID(ctx, id); err == nil {
		return nil, ErrBlockExists
	} else if !isNotFound(err) {
		return nil, err
	}

	content := reconcile.CloneRecord(input.Content)
	if content == nil {
		content = map[string]any{}
	}
	if err := s.validateContent(ctx, blockType, content); err != nil {
		return nil, err
	}

	now := s.now()
	return s.blocks.Create(ctx, &Block{
		ID:        id,
		PageID:    input.PageID,
		Type:      blockType,
		Position:  input.Position,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *service) GetBlock(ctx context.Context, id uuid.UUID) (*Block, error) {
	if id == uuid.Nil {
		return nil, ErrBlockIDRequired
	}
	return s.blocks.GetByID(ctx, id)
}

func (s *service) SaveContent(ctx context.Context, input SaveContentInput) (*Block, error) {
	if input.ID == uuid.Nil {
		return nil, ErrBlockIDRequired
	}
	if input.Content == nil {
		return nil, ErrContentRequired
	}

	block, err := s.blocks.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !input.ClientUpdatedAt.IsZero() && block.ClientUpdatedAt != nil && block.ClientUpdatedAt.After(input.ClientUpdatedAt) {
		return nil, ErrStaleWrite
	}
	if err := s.validateContent(ctx, block.Type, input.Content); err != nil {
		return nil, err
	}

	block.Content = reconcile.CloneRecord(input.Content)
	if !input.ClientUpdatedAt.IsZero() {
		stamp := input.ClientUpdatedAt.UTC()
		block.ClientUpdatedAt = &stamp
	}
	block.UpdatedAt = s.now()
	return s.blocks.Update(ctx, block)
}

func (s *service) Reorder(ctx context.Context, positions []PositionInput) ([]*Block, error) {
	if len(positions) == 0 {
		return nil, ErrReorderEmpty
	}
	records := make([]*Block, 0, len(positions))
	for _, position := range positions {
		if position.ID == uuid.Nil {
			return nil, ErrBlockIDRequired
		}
		if position.Position < 0 {
			return nil, ErrPositionInvalid
		}
		block, err := s.blocks.GetByID(ctx, position.ID)
		if err != nil {
			return nil, err
		}
		block.Position = position.Position
		records = append(records, block)
	}

	now := s.now()
	updated := make([]*Block, 0, len(records))
	for _, block := range records {
		block.UpdatedAt = now
		record, err := s.blocks.Update(ctx, block)
		if err != nil {
			return nil, err
		}
		updated = append(updated, record)
	}
	return updated, nil
}

func (s *service) ListPage(ctx context.Context, pageID uuid.UUID) ([]*Block, error) {
	if pageID == uuid.Nil {
		return nil, ErrPageIDRequired
	}
	return s.blocks.ListByPage(ctx, pageID)
}

func (s *service) validateContent(ctx context.Context, blockType string, content map[string]any) error {
	schema, err := s.schemaFor(ctx, blockType)
	if err != nil {
		return err
	}
	if err := schema.Validate(content); err != nil {
		return fmt.Errorf("%w: %w", ErrContentInvalid, err)
	}
	return nil
}

// schemaFor returns the compiled schema of a block type. Types without a
// definition accept any content.
func (s *service) schemaFor(ctx context.Context, blockType string) (*validation.Schema, error) {
	s.mu.RLock()
	compiled, ok := s.schemas[blockType]
	s.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	definition, err := s.definitions.GetByName(ctx, blockType)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	compiled, err = validation.Compile(definition.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefinitionSchema, err)
	}
	s.mu.Lock()
	s.schemas[blockType] = compiled
	s.mu.Unlock()
	return compiled, nil
}

func (s *service) applyRegistry(ctx context.Context) {
	for _, def := range s.registry.List() {
		if _, err := s.definitions.GetByName(ctx, def.Name); err == nil {
			continue
		}
		_, _ = s.RegisterDefinition(ctx, def)
	}
}

func isNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
