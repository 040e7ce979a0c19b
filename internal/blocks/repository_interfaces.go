package blocks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DefinitionRepository exposes persistence operations for block definitions.
type DefinitionRepository interface {
	Create(ctx context.Context, definition *Definition) (*Definition, error)
	GetByName(ctx context.Context, name string) (*Definition, error)
	List(ctx context.Context) ([]*Definition, error)
}

// BlockRepository exposes persistence operations for blocks.
type BlockRepository interface {
	Create(ctx context.Context, block *Block) (*Block, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Block, error)
	// ListByPage returns the blocks of a page ordered by position.
	ListByPage(ctx context.Context, pageID uuid.UUID) ([]*Block, error)
	Update(ctx context.Context, block *Block) (*Block, error)
}

// NotFoundError is returned when a block resource cannot be located.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}
