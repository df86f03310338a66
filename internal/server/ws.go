package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/signify/internal/app"
	"github.com/ayusman/signify/internal/log"
)

const (
	// clientBuffer is the per-client backlog before events are dropped.
	clientBuffer = 32
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// client is one connected WebSocket consumer.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts pipeline events to WebSocket clients. It is an app.Sink.
type Hub struct {
	clients map[*client]struct{}
	closed  bool
	dropped uint64
	mu      sync.Mutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Publish delivers e to every client without blocking. Clients whose backlog
// is full miss the event.
func (h *Hub) Publish(e app.Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warnw("Failed to encode event", "type", e.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many client deliveries were skipped.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// ServeHTTP handles WebSocket upgrade requests on /api/events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	log.Debugw("Event client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(c)
	log.Debugw("Event client disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

// writeLoop drains c.send until it is closed, then closes the connection.
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debugw("Event write failed", "error", err)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
