// Package ws streams fired alerts to connected websocket clients.
package ws

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
)

// Hub fans fired alerts out to every connected websocket client. It is
// a subscriber like any other; a client that fails a write is dropped.
type Hub struct {
	logger *log.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	// Serializes broadcasts: gorilla/websocket allows at most one
	// concurrent writer per connection, and the dispatcher delivers
	// each notification on its own goroutine.
	writeMu sync.Mutex
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Name() string {
	return "websocket"
}

// Add registers a client connection. The caller keeps reading from the
// connection to detect disconnects and calls Remove when done.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) Handle(_ context.Context, notification alerts.Notification) error {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteJSON(notification); err != nil {
			h.logger.Printf("websocket client write failed, dropping: %v", err)
			h.Remove(conn)
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
