package httpapi

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cleanxpert/internal/application"
)

const wsWriteTimeout = 250 * time.Millisecond

// Hub keeps track of live WebSocket clients so they can be closed on
// shutdown. Each client receives display events straight from the display
// goroutine, which is the only writer on its connection.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

type wsClient struct {
	conn *websocket.Conn
}

func (c *wsClient) OnDisplayEvent(ev application.DisplayEvent) error {
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(ev)
}

// Serve upgrades the request and streams display events until the client
// goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, watch func(application.DisplayListener) func()) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// Clear deadlines inherited from the HTTP server.
	conn.SetReadDeadline(time.Time{})

	h.addClient(conn)
	defer h.removeClient(conn)

	unwatch := watch(&wsClient{conn: conn})
	defer unwatch()

	h.logger.Debug("websocket client connected", "remote_addr", r.RemoteAddr)

	// Inbound messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("websocket client disconnected", "remote_addr", r.RemoteAddr)
			return
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}
