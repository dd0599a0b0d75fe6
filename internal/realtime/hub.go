// Package realtime pushes document events to subscribed clients over a
// websocket channel, and provides the reconnecting client side of it.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub tracks open channels and which documents each one follows.
type Hub struct {
	upgrader websocket.Upgrader
	buffer   int
	logger   *slog.Logger

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	prds   map[string]bool
	closed bool
}

// NewHub creates a hub whose per-connection send queue holds buffer messages.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		buffer: buffer,
		logger: logger,
		conns:  make(map[*conn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &conn{ws: ws, send: make(chan []byte, h.buffer), prds: map[string]bool{}}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("realtime client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop handles subscribe messages. Anything unparseable is ignored.
func (h *Hub) readLoop(c *conn) {
	defer h.drop(c)

	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg models.SubscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("ignoring malformed realtime message", "error", err)
			continue
		}
		if msg.Type != models.EventSubscribe || msg.PrdID == "" {
			continue
		}

		c.mu.Lock()
		c.prds[msg.PrdID] = true
		c.mu.Unlock()

		ack, _ := json.Marshal(models.DocumentEvent{
			Type:      models.EventSubscribed,
			PrdID:     msg.PrdID,
			Timestamp: timestamp(),
		})
		h.enqueue(c, ack)
	}
}

func (h *Hub) writeLoop(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish sends ev to every connection subscribed to ev.PrdID and returns how
// many received it. A connection whose queue is full is dropped.
func (h *Hub) Publish(ev models.DocumentEvent) int {
	if ev.Timestamp == "" {
		ev.Timestamp = timestamp()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err, "type", ev.Type)
		return 0
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		c.mu.Lock()
		if c.prds[ev.PrdID] {
			targets = append(targets, c)
		}
		c.mu.Unlock()
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if h.enqueue(c, data) {
			delivered++
		}
	}
	h.logger.Debug("event published", "type", ev.Type, "prd_id", ev.PrdID, "delivered", delivered)
	return delivered
}

func (h *Hub) enqueue(c *conn, data []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
		return true
	default:
	}
	c.mu.Unlock()

	h.logger.Warn("realtime client too slow, dropping connection")
	h.drop(c)
	return false
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Subscribers returns how many connections follow prdID.
func (h *Hub) Subscribers(prdID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.conns {
		c.mu.Lock()
		if c.prds[prdID] {
			n++
		}
		c.mu.Unlock()
	}
	return n
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.drop(c)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
