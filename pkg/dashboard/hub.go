package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/stakeview/pkg/source/indexer"
)

// writeWait bounds a single websocket write.
const writeWait = 5 * time.Second

// Hub pushes era index changes to websocket clients. Messages use the same
// shape the indexer feed consumes, so one dashboard can follow another.
type Hub struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// writeMu serializes writes; a conn allows one writer at a time.
	writeMu  sync.Mutex
	lastSent uint64
	sent     bool
	current  func() (uint64, bool)
}

// NewHub creates a hub. current reports the index sent to new clients.
func NewHub(current func() (uint64, bool), logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		current: current,
	}
}

// ServeHTTP upgrades the connection, sends the current index if known, and
// keeps the client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	h.writeMu.Lock()
	if n, ok := h.current(); ok {
		if err := write(conn, n); err != nil {
			h.writeMu.Unlock()
			conn.Close()
			return
		}
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.writeMu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(conn)
}

// Broadcast sends n to every client. Indexes at or below the last one sent
// are skipped, so notifications that race each other never go backwards.
func (h *Hub) Broadcast(n uint64) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if h.sent && n <= h.lastSent {
		return
	}
	h.lastSent, h.sent = n, true

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := write(client, n); err != nil {
			h.logger.Debug("dropping websocket client", "error", err)
			h.drop(client)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

func write(conn *websocket.Conn, n uint64) error {
	data, err := json.Marshal(indexer.FeedMessage{Type: "era", Era: n})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
