package outbox_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-blocksync/internal/outbox"
	"github.com/goliatone/go-blocksync/internal/syncerr"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/goliatone/go-blocksync/pkg/testsupport"
	"github.com/google/uuid"
)

func newOutbox(t *testing.T, client interfaces.SyncClient, opts ...outbox.Option) *outbox.Outbox {
	t.Helper()
	opts = append([]outbox.Option{outbox.WithRetryInterval(time.Millisecond)}, opts...)
	box, err := outbox.New(client, opts...)
	if err != nil {
		t.Fatalf("new outbox: %v", err)
	}
	return box
}

func TestOutboxRequiresClient(t *testing.T) {
	if _, err := outbox.New(nil); !errors.Is(err, outbox.ErrClientRequired) {
		t.Fatalf("expected ErrClientRequired, got %v", err)
	}
}

func TestOutboxFlushDoesNotSendUntilProcessed(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	box := newOutbox(t, client)
	blockID := uuid.New()

	box.Flush(interfaces.FlushRequest{BlockID: blockID, Content: map[string]any{"title": "AB"}})
	if client.SaveCount() != 0 {
		t.Fatalf("expected flush to enqueue only")
	}

	sent, err := box.Process(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected one delivery, got %d", sent)
	}
	saves := client.Saves()
	if len(saves) != 1 || saves[0].BlockID != blockID || saves[0].Content["title"] != "AB" {
		t.Fatalf("unexpected saves %#v", saves)
	}
	if saves[0].AttemptID == "" {
		t.Fatalf("expected job id forwarded as attempt id")
	}
}

func TestOutboxKeepsNewestFlushPerBlock(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	box := newOutbox(t, client)
	blockID := uuid.New()

	box.Flush(interfaces.FlushRequest{BlockID: blockID, Content: map[string]any{"title": "A"}})
	box.Flush(interfaces.FlushRequest{BlockID: blockID, Content: map[string]any{"title": "AB"}})

	if err := box.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	saves := client.Saves()
	if len(saves) != 1 || saves[0].Content["title"] != "AB" {
		t.Fatalf("expected only the newest flush delivered, got %#v", saves)
	}
}

func TestOutboxRetriesNetworkFailures(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	client.FailNext(syncerr.NetworkFailure(errors.New("connection refused"), "save"))
	box := newOutbox(t, client)

	box.Flush(interfaces.FlushRequest{BlockID: uuid.New(), Content: map[string]any{"title": "A"}})
	if err := box.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if client.SaveCount() != 2 {
		t.Fatalf("expected retry after network failure, got %d calls", client.SaveCount())
	}
}

func TestOutboxDropsClientErrorsWithoutRetry(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	client.FailNext(syncerr.ServerRejection("save", http.StatusConflict, "stale_write"))
	box := newOutbox(t, client)

	box.Flush(interfaces.FlushRequest{BlockID: uuid.New(), Content: map[string]any{"title": "A"}})
	if err := box.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if client.SaveCount() != 1 {
		t.Fatalf("expected rejected flush not retried, got %d calls", client.SaveCount())
	}
}

func TestOutboxRejectionKeepsNewerFlushForSameBlock(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	blockID := uuid.New()
	var box *outbox.Outbox
	client.SaveFunc = func(_ context.Context, call testsupport.SaveCall) (*interfaces.Block, error) {
		if call.Content["title"] == "OLD" {
			box.Flush(interfaces.FlushRequest{BlockID: blockID, Content: map[string]any{"title": "NEW"}})
			return nil, syncerr.ServerRejection("save", http.StatusConflict, "stale_write")
		}
		return &interfaces.Block{ID: call.BlockID, Content: call.Content}, nil
	}
	box = newOutbox(t, client)

	box.Flush(interfaces.FlushRequest{BlockID: blockID, Content: map[string]any{"title": "OLD"}})
	if err := box.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	saves := client.Saves()
	if len(saves) != 2 {
		t.Fatalf("expected the newer flush to be delivered, got %d saves", len(saves))
	}
	if saves[1].Content["title"] != "NEW" {
		t.Fatalf("expected second save to carry NEW, got %#v", saves[1].Content)
	}
}

func TestOutboxGivesUpAfterMaxAttempts(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	failure := syncerr.ServerRejection("save", http.StatusBadGateway, "")
	client.FailNext(failure, failure, failure, failure)
	box := newOutbox(t, client, outbox.WithMaxAttempts(2))

	box.Flush(interfaces.FlushRequest{BlockID: uuid.New(), Content: map[string]any{"title": "A"}})
	if err := box.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if client.SaveCount() != 2 {
		t.Fatalf("expected two attempts, got %d", client.SaveCount())
	}
	if pending, _ := box.Pending(context.Background()); pending != 0 {
		t.Fatalf("expected queue empty after giving up, got %d", pending)
	}
}

func TestOutboxTreatsMalformedEchoAsDelivered(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	client.FailNext(syncerr.MalformedResponse(errors.New("invalid character"), "save"))
	box := newOutbox(t, client)

	box.Flush(interfaces.FlushRequest{BlockID: uuid.New(), Content: map[string]any{"title": "A"}})
	sent, err := box.Process(context.Background())
	if err != nil || sent != 1 {
		t.Fatalf("expected malformed echo counted as sent, got %d %v", sent, err)
	}
}

func TestOutboxStartDeliversInBackground(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	delivered := make(chan testsupport.SaveCall, 1)
	client.SaveFunc = func(_ context.Context, call testsupport.SaveCall) (*interfaces.Block, error) {
		delivered <- call
		return &interfaces.Block{ID: call.BlockID, Content: call.Content}, nil
	}
	box := newOutbox(t, client)

	parent, cancel := context.WithCancel(context.Background())
	box.Start(parent)
	defer box.Stop()
	// The worker must survive the cancellation of the context that started it.
	cancel()

	box.Flush(interfaces.FlushRequest{BlockID: uuid.New(), Content: map[string]any{"title": "bg"}})

	select {
	case call := <-delivered:
		if call.Content["title"] != "bg" {
			t.Fatalf("unexpected delivery %#v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected background delivery")
	}
}

func TestOutboxDrainHonoursContext(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	failure := syncerr.NetworkFailure(errors.New("down"), "save")
	client.FailNext(failure, failure, failure)
	box := newOutbox(t, client, outbox.WithRetryInterval(time.Hour))

	box.Flush(interfaces.FlushRequest{BlockID: uuid.New(), Content: map[string]any{}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := box.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
