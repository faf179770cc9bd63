// Package ws streams pipeline activity to WebSocket clients: every
// status line as it happens, plus periodic summary frames.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating
	// the connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	defaultSummaryInterval = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The daemon binds to localhost; cross-origin policy belongs to a
	// reverse proxy if one is ever put in front.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	// Event is "status" for a single progress line or "summary" for a
	// full pipeline summary.
	Event   string          `json:"event"`
	Line    string          `json:"line,omitempty"`
	Summary *status.Summary `json:"summary,omitempty"`
	At      string          `json:"at"`
}

// Hub manages WebSocket clients. It doubles as a status.Sink: every
// line the pipeline reports is pushed to all connected clients the
// moment it happens, with summary frames ticking in between.
type Hub struct {
	tracker  *status.Tracker
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub reading summaries from tracker. interval <= 0
// selects the default summary period.
func New(tracker *status.Tracker, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = defaultSummaryInterval
	}
	return &Hub{
		tracker:  tracker,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts summary frames every interval and blocks until ctx is
// cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast(h.summaryMessage())
		}
	}
}

// Printf implements status.Sink: the formatted line is pushed to every
// connected client immediately.
func (h *Hub) Printf(format string, args ...any) {
	h.broadcast(Message{
		Event: "status",
		Line:  fmt.Sprintf(format, args...),
		At:    time.Now().UTC().Format(time.RFC3339),
	})
}

// ServeHTTP upgrades the connection and serves the client. The current
// summary is sent immediately on connect so a dashboard has data right
// away. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if data, err := json.Marshal(h.summaryMessage()); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) summaryMessage() Message {
	s := h.tracker.Summary()
	return Message{
		Event:   "summary",
		Summary: &s,
		At:      time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Client's outgoing buffer is full; disconnect it.
			h.unregister(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to
// the connection, interleaving periodic pings. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub shutdown or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes frames to process control messages and detect
// disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
