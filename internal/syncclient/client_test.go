package syncclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-blocksync/internal/syncclient"
	"github.com/goliatone/go-blocksync/internal/syncerr"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func newClient(t *testing.T, server *httptest.Server, opts ...syncclient.Option) *syncclient.Client {
	t.Helper()
	client, err := syncclient.New(server.URL, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewRequiresAbsoluteBaseURL(t *testing.T) {
	if _, err := syncclient.New(""); !errors.Is(err, syncclient.ErrBaseURLRequired) {
		t.Fatalf("expected ErrBaseURLRequired, got %v", err)
	}
	if _, err := syncclient.New("/relative"); err == nil {
		t.Fatalf("expected relative base url to be rejected")
	}
}

func TestSaveSendsEnvelopeAndDecodesEcho(t *testing.T) {
	blockID := uuid.New()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var captured map[string]any
	var requestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/blocks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		requestID = r.Header.Get(syncclient.RequestIDHeader)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":"`+blockID.String()+`","content":{"title":"AB","count":3}}}`)
	}))
	defer server.Close()

	client := newClient(t, server, syncclient.WithClock(func() time.Time { return now }))
	ctx := interfaces.ContextWithAttemptID(context.Background(), "attempt-1")
	block, err := client.Save(ctx, blockID, map[string]any{"title": "AB"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if captured["id"] != blockID.String() || captured["clientUpdatedAt"] != "2024-05-01T10:00:00Z" {
		t.Fatalf("unexpected request body %#v", captured)
	}
	if content, _ := captured["content"].(map[string]any); content["title"] != "AB" {
		t.Fatalf("expected content in body, got %#v", captured["content"])
	}
	if requestID != "attempt-1" {
		t.Fatalf("expected attempt id forwarded, got %q", requestID)
	}
	if block.Content["title"] != "AB" || block.Content["count"] != json.Number("3") {
		t.Fatalf("unexpected echo %#v", block.Content)
	}
}

func TestSaveWithoutEchoReturnsNilContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer server.Close()

	block, err := newClient(t, server).Save(context.Background(), uuid.New(), map[string]any{"title": "A"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if block.Content != nil {
		t.Fatalf("expected no echoed content, got %#v", block.Content)
	}
}

func TestSaveClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"rejected with envelope", http.StatusConflict, `{"success":false,"error":"stale_write"}`, syncerr.IsServerRejection},
		{"rejected with plain body", http.StatusInternalServerError, `boom`, syncerr.IsServerRejection},
		{"success false", http.StatusOK, `{"success":false,"error":"nope"}`, syncerr.IsServerRejection},
		{"unparsable 2xx", http.StatusOK, `{"success":tru`, syncerr.IsMalformedResponse},
		{"empty 2xx", http.StatusOK, ``, syncerr.IsMalformedResponse},
		{"bad data", http.StatusOK, `{"success":true,"data":{"content":"not a record"}}`, syncerr.IsMalformedResponse},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		}))
		_, err := newClient(t, server).Save(context.Background(), uuid.New(), map[string]any{"title": "A"})
		server.Close()
		if !tc.check(err) {
			t.Fatalf("%s: unexpected classification %v", tc.name, err)
		}
	}
}

func TestSaveRejectionCarriesStatusAndReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"success":false,"error":"content_invalid"}`)
	}))
	defer server.Close()

	_, err := newClient(t, server).Save(context.Background(), uuid.New(), map[string]any{})
	if syncerr.Status(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 status, got %v", err)
	}
}

func TestSaveNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, _ := syncclient.New(url)
	_, err := client.Save(context.Background(), uuid.New(), map[string]any{"title": "A"})
	if !syncerr.IsNetworkFailure(err) || !syncerr.Recoverable(err) {
		t.Fatalf("expected recoverable network failure, got %v", err)
	}
}

func TestReorderAndFetchPage(t *testing.T) {
	pageID := uuid.New()
	blockID := uuid.New()
	var reorder map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/blocks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&reorder)
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("GET /api/pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != pageID.String() {
			t.Errorf("unexpected page id %s", r.PathValue("id"))
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":"`+pageID.String()+`","blocks":[{"id":"`+blockID.String()+`","position":2,"content":{"title":"T"}}]}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newClient(t, server, syncclient.WithHeader("Authorization", "Bearer token"))
	if err := client.Reorder(context.Background(), []interfaces.BlockPosition{{ID: blockID, Position: 2}}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if reorder["reorder"] != true {
		t.Fatalf("expected reorder flag, got %#v", reorder)
	}

	page, err := client.FetchPage(context.Background(), pageID)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if len(page.Blocks) != 1 || page.Blocks[0].Position != 2 || page.Blocks[0].Content["title"] != "T" {
		t.Fatalf("unexpected page %#v", page)
	}
}

func TestSubscribeDeliversEvents(t *testing.T) {
	pageID := uuid.New()
	blockID := uuid.New()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pages/"+pageID.String()+"/events" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(interfaces.BlockEvent{
			Type:   interfaces.EventBlockSaved,
			PageID: pageID,
			Block:  &interfaces.Block{ID: blockID, Content: map[string]any{"title": "remote"}},
		})
		// Hold the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	client := newClient(t, server)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan interfaces.BlockEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- client.Subscribe(ctx, pageID, func(event interfaces.BlockEvent) {
			events <- event
		})
	}()

	select {
	case event := <-events:
		if event.Type != interfaces.EventBlockSaved || event.Block.ID != blockID {
			t.Fatalf("unexpected event %#v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected event")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscribe did not stop")
	}
}
