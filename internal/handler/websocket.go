package handler

import (
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// TreeChange is the payload of a "treeChange" message
type TreeChange struct {
	Op   string `json:"op"`
	Path string `json:"path"`
	Hash uint64 `json:"hash"`
}

// WSHandler pushes workspace change notifications to connected clients
type WSHandler struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	logger  *zap.Logger

	// sendMu keeps broadcasts from writing to a connection concurrently
	sendMu sync.Mutex
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// HandleWS handles WebSocket upgrade and connection
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() {
		h.removeClient(conn)
		_ = conn.Close()
	}()

	h.addClient(conn)

	// Keep connection alive until the client goes away
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// OnTreeChange is called after an API call mutated the workspace
func (h *WSHandler) OnTreeChange(op, path string, hash uint64) {
	h.broadcast(WSMessage{
		Type:    "treeChange",
		Payload: TreeChange{Op: op, Path: path, Hash: hash},
	})
}

func (h *WSHandler) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
}

func (h *WSHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (h *WSHandler) broadcast(msg WSMessage) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Warn("encode websocket message", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			h.removeClient(client)
		}
	}
}
