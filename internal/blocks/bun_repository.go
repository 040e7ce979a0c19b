package blocks

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunDefinitionRepository implements DefinitionRepository with optional caching.
type BunDefinitionRepository struct {
	repo repository.Repository[*Definition]
}

// NewBunDefinitionRepository creates a definition repository without caching.
func NewBunDefinitionRepository(db *bun.DB) *BunDefinitionRepository {
	return NewBunDefinitionRepositoryWithCache(db, nil, nil)
}

// NewBunDefinitionRepositoryWithCache creates a definition repository with caching services.
func NewBunDefinitionRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, serializer cache.KeySerializer) *BunDefinitionRepository {
	base := NewDefinitionRecordRepository(db)
	if cacheService != nil && serializer != nil {
		base = repositorycache.New(base, cacheService, serializer)
	}
	return &BunDefinitionRepository{repo: base}
}

func (r *BunDefinitionRepository) Create(ctx context.Context, definition *Definition) (*Definition, error) {
	return r.repo.Create(ctx, definition)
}

func (r *BunDefinitionRepository) GetByName(ctx context.Context, name string) (*Definition, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.name = ?", name)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapRepositoryError(err, "block_definition", name)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: "block_definition", Key: name}
	}
	return records[0], nil
}

func (r *BunDefinitionRepository) List(ctx context.Context) ([]*Definition, error) {
	records, _, err := r.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.name ASC")
	}))
	return records, err
}

// BunBlockRepository implements BlockRepository. Block content changes on
// every save, so it is never cached.
type BunBlockRepository struct {
	repo repository.Repository[*Block]
}

// NewBunBlockRepository creates a block repository.
func NewBunBlockRepository(db *bun.DB) *BunBlockRepository {
	return &BunBlockRepository{repo: NewBlockRecordRepository(db)}
}

func (r *BunBlockRepository) Create(ctx context.Context, block *Block) (*Block, error) {
	return r.repo.Create(ctx, block)
}

func (r *BunBlockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, "block", id.String())
	}
	return record, nil
}

func (r *BunBlockRepository) ListByPage(ctx context.Context, pageID uuid.UUID) ([]*Block, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", pageID)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.position ASC").OrderExpr("?TableAlias.created_at ASC")
		}),
	)
	return records, err
}

func (r *BunBlockRepository) Update(ctx context.Context, block *Block) (*Block, error) {
	updated, err := r.repo.Update(ctx, block,
		repository.UpdateByID(block.ID.String()),
		repository.UpdateColumns(
			"position",
			"content",
			"client_updated_at",
			"updated_at",
		),
	)
	if err != nil {
		return nil, mapRepositoryError(err, "block", block.ID.String())
	}
	return updated, nil
}

func mapRepositoryError(err error, resource, key string) error {
	if err == nil {
		return nil
	}

	if errors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Resource: resource, Key: key}
	}

	return fmt.Errorf("%s repository error: %w", resource, err)
}
