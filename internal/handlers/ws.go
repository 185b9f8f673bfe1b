package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lookout-dev/lookout/internal/types"
	"github.com/lookout-dev/lookout/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// wsClient wraps a connection with a write mutex: broadcasts and the
// keepalive ping goroutine both write, and gorilla/websocket forbids
// concurrent writers on one connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub fans dashboard refresh hints out to websocket subscribers, keyed by
// workspace. It is the engine's Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*wsClient]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*wsClient]bool)}
}

func (h *Hub) register(workspaceID uint, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[workspaceID] == nil {
		h.clients[workspaceID] = make(map[*wsClient]bool)
	}

	h.clients[workspaceID][client] = true
}

func (h *Hub) unregister(workspaceID uint, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[workspaceID]; exists {
		delete(clients, client)

		if len(clients) == 0 {
			delete(h.clients, workspaceID)
		}
	}
}

// BroadcastRefresh tells every subscriber of the workspace to re-fetch
// dashboard data. Failed connections are dropped.
func (h *Hub) BroadcastRefresh(workspaceID uint) {
	h.mu.RLock()
	clients, exists := h.clients[workspaceID]

	if !exists || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}

	subscribers := make([]*wsClient, 0, len(clients))

	for client := range clients {
		subscribers = append(subscribers, client)
	}
	h.mu.RUnlock()

	for _, client := range subscribers {
		err := client.writeJSON(map[string]interface{}{
			"type":         "refresh",
			"message":      "Dashboard data updated",
			"workspace_id": workspaceID,
		})

		if err != nil {
			log.Printf("Failed to broadcast refresh to client: %v", err)
			h.unregister(workspaceID, client)
			client.conn.Close()
		}
	}
}

// ServeWorkspace upgrades the request and keeps the connection subscribed to
// the workspace until it closes.
func (h *Hub) ServeWorkspace(c *gin.Context) {
	userID, err := utils.GetCurrentUserID(c)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := utils.GetWorkspaceID(c)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workspace, err := workspaceForUser(workspaceID, userID)

	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range types.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)

	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		conn.Close()
		return
	}

	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	client := &wsClient{conn: conn}

	h.register(workspace.ID, client)

	defer func() {
		h.unregister(workspace.ID, client)
		conn.Close()
		log.Printf("WebSocket connection closed for workspace %d", workspace.ID)
	}()

	err = client.writeJSON(map[string]interface{}{
		"type":         "connected",
		"message":      "WebSocket connection established",
		"workspace_id": workspace.ID,
	})

	if err != nil {
		log.Printf("Failed to send welcome message: %v", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			if err := client.ping(); err != nil {
				log.Printf("Ping failed for workspace %d: %v", workspace.ID, err)
				return
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline for workspace %d: %v", workspace.ID, err)
			break
		}

		messageType, message, err := conn.ReadMessage()

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for workspace %d: %v", workspace.ID, err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			log.Printf("Received message from client in workspace %d: %s", workspace.ID, string(message))
		}
	}
}
