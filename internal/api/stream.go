package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/logger"
)

// Hub fans job events out to connected websocket clients.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
}

// NewHub creates a Hub. Call Start before serving connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Start runs the hub loop in its own goroutine.
func (h *Hub) Start() {
	go func() {
		for {
			select {
			case conn := <-h.register:
				h.mu.Lock()
				h.clients[conn] = true
				n := len(h.clients)
				h.mu.Unlock()
				logger.Debug("stream client connected", "clients", n)
			case conn := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[conn]; ok {
					delete(h.clients, conn)
					conn.Close()
				}
				h.mu.Unlock()
			case message := <-h.broadcast:
				h.mu.Lock()
				for conn := range h.clients {
					if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
						conn.Close()
						delete(h.clients, conn)
					}
				}
				h.mu.Unlock()
			}
		}
	}()
}

// BroadcastEvent sends a job event to every connected client. Non-blocking:
// events are dropped when the hub backlog is full, since polls re-derive
// the same state anyway.
func (h *Hub) BroadcastEvent(ev jobs.JobEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.Debug("stream backlog full, dropping event", "job_id", ev.JobID)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// JobStream handles GET /api/jobs/stream (websocket endpoint)
func (h *Handler) JobStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotImplemented, "streaming not enabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.hub.register <- conn

	// Drain client frames until the connection dies, then unregister.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.hub.unregister <- conn
				return
			}
		}
	}()
}
