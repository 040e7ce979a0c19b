package editor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-blocksync/internal/editor"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/goliatone/go-blocksync/pkg/testsupport"
	"github.com/google/uuid"
)

func TestCloseFlushesDirtyDraft(t *testing.T) {
	h := newHarness(t, map[string]any{"title": "A"})
	mustUpdate(t, h.session, map[string]any{"title": "AB"})

	if err := h.session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(h.clock.active()) != 0 {
		t.Fatalf("expected debounce cancelled on close")
	}
	flushed := h.flusher.all()
	if len(flushed) != 1 || flushed[0].BlockID != h.session.BlockID() || flushed[0].Content["title"] != "AB" {
		t.Fatalf("unexpected flush requests %#v", flushed)
	}
	if h.client.SaveCount() != 0 {
		t.Fatalf("expected flush to go through the flusher only")
	}

	if err := h.session.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(h.flusher.all()) != 1 {
		t.Fatalf("expected at most one teardown request")
	}
	if _, err := h.session.Update(map[string]any{"title": "late"}); !errors.Is(err, editor.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on update, got %v", err)
	}
	if _, err := h.session.Save(context.Background()); !errors.Is(err, editor.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on save, got %v", err)
	}
}

func TestCloseCleanSessionSendsNothing(t *testing.T) {
	h := newHarness(t, map[string]any{"title": "A"})
	if err := h.session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(h.flusher.all()) != 0 {
		t.Fatalf("expected no flush for a clean draft")
	}
	if h.session.Phase() != editor.PhaseClosed {
		t.Fatalf("expected closed phase, got %s", h.session.Phase())
	}
}

func TestCloseDuringSaveFlushesNewerDraftAfterRelease(t *testing.T) {
	h := newHarness(t, map[string]any{"title": "A"})
	started, release := h.blockSaves()

	mustUpdate(t, h.session, map[string]any{"title": "AB"})
	done := make(chan error, 1)
	go func() {
		_, err := h.session.Save(context.Background())
		done <- err
	}()
	waitStarted(t, started)

	mustUpdate(t, h.session, map[string]any{"title": "ABC"})
	if err := h.session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if h.session.Phase() != editor.PhaseClosing {
		t.Fatalf("expected closing phase, got %s", h.session.Phase())
	}
	if len(h.flusher.all()) != 0 {
		t.Fatalf("expected flush deferred while a save is in flight")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("save: %v", err)
	}
	flushed := h.flusher.all()
	if len(flushed) != 1 || flushed[0].Content["title"] != "ABC" {
		t.Fatalf("expected one flush of ABC after release, got %#v", flushed)
	}
	if len(h.clock.active()) != 0 || h.session.Phase() != editor.PhaseClosed {
		t.Fatalf("expected no debounce after teardown, phase %s", h.session.Phase())
	}
}

func TestCloseDuringSaveSkipsFlushWhenSavePersistedDraft(t *testing.T) {
	h := newHarness(t, map[string]any{"title": "A"})
	started, release := h.blockSaves()

	mustUpdate(t, h.session, map[string]any{"title": "AB"})
	done := make(chan error, 1)
	go func() {
		_, err := h.session.Save(context.Background())
		done <- err
	}()
	waitStarted(t, started)

	_ = h.session.Close()
	close(release)
	<-done

	if len(h.flusher.all()) != 0 {
		t.Fatalf("expected no flush once the in-flight save persisted the draft")
	}
	if h.client.SaveCount() != 1 {
		t.Fatalf("expected a single request for the teardown, got %d", h.client.SaveCount())
	}
}

func TestDefaultFlusherSendsDetachedSave(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	sent := make(chan testsupport.SaveCall, 1)
	client.SaveFunc = func(_ context.Context, call testsupport.SaveCall) (*interfaces.Block, error) {
		sent <- call
		return &interfaces.Block{ID: call.BlockID, Content: call.Content}, nil
	}
	clock := &fakeClock{}
	session, err := editor.NewSession(client, uuid.New(), map[string]any{"title": "A"}, editor.WithAfterFunc(clock.AfterFunc))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	mustUpdate(t, session, map[string]any{"title": "AB"})
	_ = session.Close()

	select {
	case call := <-sent:
		if call.Content["title"] != "AB" {
			t.Fatalf("unexpected flush content %#v", call.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected detached flush")
	}
}

func TestDebounceWithRealTimer(t *testing.T) {
	client := testsupport.NewFakeSyncClient()
	saved := make(chan testsupport.SaveCall, 4)
	client.SaveFunc = func(_ context.Context, call testsupport.SaveCall) (*interfaces.Block, error) {
		saved <- call
		return &interfaces.Block{ID: call.BlockID, Content: call.Content}, nil
	}
	session, err := editor.NewSession(client, uuid.New(), map[string]any{}, editor.WithDebounceDelay(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer session.Close()

	for _, title := range []string{"A", "AB", "ABC"} {
		mustUpdate(t, session, map[string]any{"title": title})
	}

	select {
	case call := <-saved:
		if call.Content["title"] != "ABC" {
			t.Fatalf("expected last mutation saved, got %#v", call.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected debounced save")
	}
	select {
	case extra := <-saved:
		t.Fatalf("unexpected extra save %#v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}
