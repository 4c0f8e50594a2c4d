// internal/server/hub.go
package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"pagesmith/internal/logfields"
)

// upgrader is used to upgrade HTTP connections to WebSocket connections.
// The preview server only listens locally, so any origin is accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains the set of live-reload clients and broadcasts to them.
type Hub struct {
	log     *slog.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func newHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	h.log.Debug("live-reload client connected", logfields.Count(len(h.clients)))
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		h.log.Debug("live-reload client disconnected", logfields.Count(len(h.clients)))
	}
}

func (h *Hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcastMessage sends a message to all registered clients, dropping any
// that can no longer be written to.
func (h *Hub) broadcastMessage(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.Debug("dropping live-reload client", logfields.Error(err))
			client.Close()
			delete(h.clients, client)
		}
	}
}

// serveWs upgrades the request and holds the connection until the client
// goes away. Clients never send anything; reading only detects the close.
func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", logfields.Error(err))
		return
	}
	hub.register(conn)
	defer hub.unregister(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
