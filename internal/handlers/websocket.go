// -----------------------------------------------------------------------
// WebSocket Handler - Real-time job status push to connected UIs
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for every pushed message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// helloPayload is sent once on connect. Clients compare the server
// instance id against their cached one to detect a server restart.
type helloPayload struct {
	ServerInstanceID string `json:"serverInstanceId"`
	Timestamp        string `json:"timestamp"`
}

// WebSocketHandler pushes unified job status records to every connected
// client. It implements interfaces.StatusNotifier.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	statusThrottler  *rate.Limiter // non-terminal updates only; terminal records always go out
	serverInstanceID string        // Unique ID generated on startup - clients use to detect server restart
}

// NewWebSocketHandler creates the WebSocket push handler.
func NewWebSocketHandler(logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized with server instance ID")

	if config != nil && config.UpdateThrottle != "" {
		if interval, err := time.ParseDuration(config.UpdateThrottle); err == nil {
			h.statusThrottler = rate.NewLimiter(rate.Every(interval), 1)
			logger.Debug().
				Str("interval", config.UpdateThrottle).
				Msg("Throttler initialized for job status updates")
		} else {
			logger.Warn().
				Err(err).
				Str("interval", config.UpdateThrottle).
				Msg("Failed to parse status update throttle interval - throttler disabled")
		}
	}

	return h
}

// HandleWebSocket handles WebSocket connections.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", len(h.clients))

	h.sendHello(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", clientCount)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// NotifyStatus broadcasts a unified job status record to all connected
// clients. Non-terminal updates are throttled so a chatty poll cycle
// does not flood the UI; terminal records are never dropped.
func (h *WebSocketHandler) NotifyStatus(status models.UnifiedStatus) {
	if !status.Status.IsTerminal() {
		if h.statusThrottler != nil && !h.statusThrottler.Allow() {
			return
		}
	}

	h.broadcast(WSMessage{
		Type:    "job_status",
		Payload: status,
	})
}

// sendHello sends the server instance id to a newly connected client.
func (h *WebSocketHandler) sendHello(conn *websocket.Conn) {
	msg := WSMessage{
		Type: "hello",
		Payload: helloPayload{
			ServerInstanceID: h.serverInstanceID,
			Timestamp:        time.Now().Format(time.RFC3339),
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal hello message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send hello")
		}
	}
}

// broadcast marshals and sends a message to every connected client.
func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal broadcast message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send message to client")
		}
	}
}
