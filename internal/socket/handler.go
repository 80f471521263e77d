// internal/socket/handler.go
package socket

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The admin key gates the connection; origin is not checked
		return true
	},
}

// KeyChecker reports whether an admin key is valid.
type KeyChecker func(key string) bool

// Handler handles WebSocket connections for the admin run feed
type Handler struct {
	Hub      *Hub
	CheckKey KeyChecker
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, checkKey KeyChecker) *Handler {
	return &Handler{
		Hub:      hub,
		CheckKey: checkKey,
	}
}

// HandleWebSocket handles WebSocket upgrade requests. Browsers can't set
// headers on WebSocket requests, so the key may also come as ?key=.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	key := c.GetHeader("X-Admin-Key")
	if key == "" {
		key = c.Query("key")
	}

	if key == "" {
		log.Println("[WebSocket] No admin key provided")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No admin key provided"})
		return
	}
	if h.CheckKey == nil || !h.CheckKey(key) {
		log.Println("[WebSocket] Invalid admin key")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin key"})
		return
	}

	name := c.Query("name")
	if name == "" {
		name = c.ClientIP()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade error: %v", err)
		return
	}

	log.Printf("[WebSocket] ✅ Client connected: name=%s", name)

	client := NewClient(h.Hub, name, conn)
	if !h.Hub.Register(client) {
		log.Printf("[WebSocket] Hub stopped, closing %s", name)
		conn.Close()
		return
	}
	client.Start()
}
