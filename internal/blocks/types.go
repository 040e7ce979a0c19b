package blocks

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Definition describes a block type and the optional schema its content must
// satisfy.
type Definition struct {
	bun.BaseModel `bun:"table:block_definitions,alias:bd"`

	ID          uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	Name        string         `bun:"name,notnull,unique" json:"name"`
	Description *string        `bun:"description" json:"description,omitempty"`
	Schema      map[string]any `bun:"schema,type:jsonb" json:"schema,omitempty"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Block is the server copy of one unit of block content.
//
// ClientUpdatedAt is the editor clock reading of the last accepted save. It is
// compared against incoming saves to reject writes that arrive out of order.
type Block struct {
	bun.BaseModel `bun:"table:blocks,alias:b"`

	ID              uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	PageID          uuid.UUID      `bun:"page_id,notnull,type:uuid" json:"page_id"`
	Type            string         `bun:"type,notnull" json:"type"`
	Position        int            `bun:"position,notnull,default:0" json:"position"`
	Content         map[string]any `bun:"content,type:jsonb,notnull" json:"content"`
	ClientUpdatedAt *time.Time     `bun:"client_updated_at,nullzero" json:"client_updated_at,omitempty"`
	CreatedAt       time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}
