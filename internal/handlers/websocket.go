package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsMessage is the wire format pushed to connected browsers.
type wsMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

// WebSocketHandler streams operation progress to connected UI clients.
type WebSocketHandler struct {
	logger            arbor.ILogger
	clients           map[*websocket.Conn]bool
	clientMutex       map[*websocket.Conn]*sync.Mutex
	mu                sync.RWMutex
	events            interfaces.EventService
	progressThrottler *rate.Limiter // Caps progress event frequency; done events always pass
	serverInstanceID  string        // Clients use this to detect a server restart
}

// NewWebSocketHandler creates the websocket handler and subscribes it to
// operation events.
func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		events:           events,
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && config.ProgressPerSec > 0 {
		h.progressThrottler = rate.NewLimiter(rate.Limit(config.ProgressPerSec), config.ProgressPerSec)
	}

	if events != nil {
		h.subscribe()
	}

	return h
}

func (h *WebSocketHandler) subscribe() {
	progress := func(ctx context.Context, event interfaces.Event) error {
		// Drop over-rate progress updates; the report keeps the full log.
		if h.progressThrottler != nil && !h.progressThrottler.Allow() {
			return nil
		}
		h.Broadcast(string(event.Type), event.Payload)
		return nil
	}

	h.events.Subscribe(interfaces.EventBackupProgress, progress)
	h.events.Subscribe(interfaces.EventRestoreProgress, progress)
	h.events.Subscribe(interfaces.EventOperationDone, func(ctx context.Context, event interfaces.Event) error {
		h.Broadcast(string(event.Type), event.Payload)
		return nil
	})
}

// HandleWebSocket handles GET /ws, upgrading the connection and keeping it
// registered until the client goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	h.send(conn, wsMessage{
		Type:      "hello",
		Payload:   map[string]string{"server_instance_id": h.serverInstanceID},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	// Reads are discarded; the socket is push-only. The read loop exists to
	// detect disconnects.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes a message to every connected client.
func (h *WebSocketHandler) Broadcast(eventType string, payload interface{}) {
	message := wsMessage{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, message)
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, message wsMessage) {
	h.mu.RLock()
	mu := h.clientMutex[conn]
	h.mu.RUnlock()
	if mu == nil {
		return
	}

	mu.Lock()
	err := conn.WriteJSON(message)
	mu.Unlock()

	if err != nil {
		h.removeClient(conn)
	}
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		conn.Close()
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client disconnected")
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientMutex = make(map[*websocket.Conn]*sync.Mutex)
}
