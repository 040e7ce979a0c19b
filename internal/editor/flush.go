package editor

import (
	"context"
	"time"

	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

const defaultFlushTimeout = 5 * time.Second

// detachedFlusher sends the teardown save from its own goroutine with a
// context unrelated to the session. It is the fallback when no outbox is
// configured and does not retry.
type detachedFlusher struct {
	client  interfaces.SyncClient
	timeout time.Duration
	logger  interfaces.Logger
}

func newDetachedFlusher(client interfaces.SyncClient, timeout time.Duration, logger interfaces.Logger) detachedFlusher {
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	return detachedFlusher{client: client, timeout: timeout, logger: logger}
}

func (f detachedFlusher) Flush(req interfaces.FlushRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		if _, err := f.client.Save(ctx, req.BlockID, req.Content); err != nil {
			f.logger.Warn("editor.flush.failed", "error", err)
			return
		}
		f.logger.Debug("editor.flush.sent")
	}()
}
