package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// pongWait is how long the stream may stay silent before it is considered dead.
const pongWait = 60 * time.Second

type dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

func defaultDialer() dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
}

// EventHandler receives page events in arrival order.
type EventHandler func(interfaces.BlockEvent)

// Subscribe streams the events of a page to handler until ctx is done or the
// connection fails. It returns nil when ctx ended the stream.
func (c *Client) Subscribe(ctx context.Context, pageID uuid.UUID, handler EventHandler) error {
	if handler == nil {
		return errors.New("syncclient: event handler is required")
	}
	target := *c.base
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = c.base.Path + "/pages/" + pageID.String() + "/events"

	ws, _, err := c.dialer.DialContext(ctx, target.String(), c.headers.Clone())
	if err != nil {
		return fmt.Errorf("syncclient: subscribe page %s: %w", pageID, err)
	}
	defer ws.Close()

	logger := c.logger.WithContext(ctx)
	logger.Info("sync.events.subscribed", "page_id", pageID)

	stop := context.AfterFunc(ctx, func() {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = ws.Close()
	})
	defer stop()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("syncclient: read page events: %w", err)
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			continue
		}
		var event interfaces.BlockEvent
		if err := json.Unmarshal(message, &event); err != nil {
			logger.Warn("sync.events.malformed", "error", err)
			continue
		}
		handler(event)
	}
}
