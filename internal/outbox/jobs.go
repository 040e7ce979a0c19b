package outbox

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
)

// JobTypeBlockFlush identifies teardown flush deliveries.
const JobTypeBlockFlush = "blocksync.block.flush"

var (
	ErrJobTypeRequired  = errors.New("outbox: job type is required")
	ErrClientRequired   = errors.New("outbox: sync client is required")
	ErrInvalidPayload   = errors.New("outbox: invalid flush payload")
	ErrUnknownJobType   = errors.New("outbox: unknown job type")
	errContentMissing   = fmt.Errorf("%w: content missing", ErrInvalidPayload)
	errBlockIDMalformed = fmt.Errorf("%w: block_id malformed", ErrInvalidPayload)
)

// FlushJobKey keys flush jobs per block, so a newer teardown draft replaces
// an undelivered older one.
func FlushJobKey(blockID uuid.UUID) string {
	return "block:" + blockID.String() + ":flush"
}

func flushPayload(req interfaces.FlushRequest) map[string]any {
	return map[string]any{
		"block_id": req.BlockID.String(),
		"content":  req.Content,
	}
}

func parseFlushPayload(payload map[string]any) (interfaces.FlushRequest, error) {
	raw, _ := payload["block_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return interfaces.FlushRequest{}, errBlockIDMalformed
	}
	content, ok := payload["content"].(map[string]any)
	if !ok {
		return interfaces.FlushRequest{}, errContentMissing
	}
	return interfaces.FlushRequest{BlockID: id, Content: content}, nil
}
