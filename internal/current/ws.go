package current

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"olimpia/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Must be less than pongWait.
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message is what websocket subscribers receive.
type Message struct {
	Type      string              `json:"type"`
	Event     domain.CurrentEvent `json:"event"`
	Timestamp time.Time           `json:"timestamp"`
}

const MessageTypeCurrentEvent = "current_event"

// Handler upgrades requests and streams current event changes.
type Handler struct {
	tracker  *Tracker
	ctx      context.Context
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler streams until ctx is done; origins are checked by allowOrigin
// (nil allows all).
func NewHandler(ctx context.Context, tracker *Tracker, logger *slog.Logger, allowOrigin func(*http.Request) bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		tracker: tracker,
		ctx:     ctx,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, logger: h.logger}
	events, cancel := h.tracker.Subscribe()
	ctx, stop := context.WithCancel(h.ctx)
	go func() {
		c.readPump()
		stop()
	}()
	go func() {
		c.writePump(ctx, events)
		cancel()
	}()
	h.logger.Debug("current event subscriber connected", "client_id", c.id)
}

type client struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger
}

// readPump only services control frames; it returns when the peer goes away.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket closed unexpectedly", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump(ctx context.Context, events <-chan domain.CurrentEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev, ok := <-events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			msg := Message{Type: MessageTypeCurrentEvent, Event: ev, Timestamp: time.Now().UTC()}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", "client_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
