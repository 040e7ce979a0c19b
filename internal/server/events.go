package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	subscriberSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		return strings.Contains(origin, "://"+strings.TrimSpace(r.Host))
	},
}

type subscriber struct {
	pageID uuid.UUID
	send   chan []byte
}

// Hub fans block events out to the websocket subscribers of each page.
// Subscribers that fall behind are disconnected rather than slowing writers.
type Hub struct {
	mu     sync.RWMutex
	pages  map[uuid.UUID]map[*subscriber]struct{}
	logger interfaces.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger interfaces.Logger) *Hub {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Hub{
		pages:  make(map[uuid.UUID]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Publish delivers event to every subscriber of its page.
func (h *Hub) Publish(event interfaces.BlockEvent) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("server.events.encode_failed", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.pages[event.PageID] {
		select {
		case sub.send <- payload:
		default:
			h.removeLocked(sub)
			h.logger.Warn("server.events.subscriber_dropped", "page_id", event.PageID)
		}
	}
}

// Subscribers reports how many streams are open for a page.
func (h *Hub) Subscribers(pageID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pages[pageID])
}

func (h *Hub) subscribe(pageID uuid.UUID) *subscriber {
	sub := &subscriber{pageID: pageID, send: make(chan []byte, subscriberSize)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pages[pageID] == nil {
		h.pages[pageID] = make(map[*subscriber]struct{})
	}
	h.pages[pageID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// removeLocked closes sub.send exactly once: only the caller that finds sub
// registered closes it.
func (h *Hub) removeLocked(sub *subscriber) {
	subs, ok := h.pages[sub.pageID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.pages, sub.pageID)
	}
}

// Serve upgrades the request and streams page events until either side
// closes the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, pageID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("server.events.upgrade_failed", "page_id", pageID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.subscribe(pageID)
	defer h.unsubscribe(sub)
	h.logger.Info("server.events.subscribed", "page_id", pageID)

	errCh := make(chan error, 2)
	go func() { errCh <- pumpEvents(ctx, conn, sub) }()
	go func() { errCh <- drainReads(conn) }()

	select {
	case <-ctx.Done():
	case <-errCh:
	}
	cancel()
	_ = conn.Close()
	h.logger.Info("server.events.closed", "page_id", pageID)
}

func pumpEvents(ctx context.Context, conn *websocket.Conn, sub *subscriber) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return ctx.Err()
		case payload, ok := <-sub.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "slow consumer"),
					time.Now().Add(writeWait))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

// drainReads keeps control frames flowing and reports when the peer goes away.
func drainReads(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}
