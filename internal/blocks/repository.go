package blocks

import (
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewDefinitionRecordRepository creates a generic repository for Definition records.
func NewDefinitionRecordRepository(db *bun.DB) repository.Repository[*Definition] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Definition]{
		NewRecord:          func() *Definition { return &Definition{} },
		GetID:              func(d *Definition) uuid.UUID { return d.ID },
		SetID:              func(d *Definition, id uuid.UUID) { d.ID = id },
		GetIdentifier:      func() string { return "name" },
		GetIdentifierValue: func(d *Definition) string { return d.Name },
	})
}

// NewBlockRecordRepository creates a generic repository for Block records.
func NewBlockRecordRepository(db *bun.DB) repository.Repository[*Block] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Block]{
		NewRecord:          func() *Block { return &Block{} },
		GetID:              func(b *Block) uuid.UUID { return b.ID },
		SetID:              func(b *Block, id uuid.UUID) { b.ID = id },
		GetIdentifier:      func() string { return "" },
		GetIdentifierValue: func(*Block) string { return "" },
	})
}
