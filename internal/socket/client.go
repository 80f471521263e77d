// internal/socket/client.go
package socket

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout   = 10 * time.Second
	idleTimeout    = 60 * time.Second
	keepAliveEvery = 50 * time.Second
	maxInbound     = 4096
	sendBuffer     = 256
)

// ClientMessage is a room command from the feed client.
type ClientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
}

// NewClient wraps an upgraded connection. Call Start once the hub has
// accepted it.
func NewClient(hub *Hub, name string, conn *websocket.Conn) *Client {
	return &Client{
		ID:    uuid.New().String(),
		Name:  name,
		Conn:  conn,
		Hub:   hub,
		Send:  make(chan []byte, sendBuffer),
		Rooms: make(map[string]bool),
	}
}

// Start runs the reader and writer goroutines for the connection.
func (c *Client) Start() {
	go c.writeLoop()
	go c.readLoop()
}

// readLoop handles room commands until the peer goes away, then leaves the hub.
func (c *Client) readLoop() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxInbound)
	extend := func() error { return c.Conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	_ = extend()
	c.Conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Client] %s dropped: %v", c.Name, err)
			}
			return
		}
		_ = extend()
		c.dispatch(data)
	}
}

// writeLoop sends one frame per queued event and keeps the connection alive.
// It exits when the hub closes Send.
func (c *Client) writeLoop() {
	keepAlive := time.NewTicker(keepAliveEvery)
	defer func() {
		keepAlive.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, open := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !open {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-keepAlive.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[Client] Ignoring malformed command from %s: %v", c.Name, err)
		return
	}

	switch msg.Action {
	case "join", "leave":
		if !validRoom(msg.Room) {
			log.Printf("[Client] %s asked to %s unknown room %q", c.Name, msg.Action, msg.Room)
			return
		}
		ack := "joined"
		if msg.Action == "join" {
			c.Hub.JoinRoom(c, msg.Room)
		} else {
			c.Hub.LeaveRoom(c, msg.Room)
			ack = "left"
		}
		c.queue(MessageAck, map[string]interface{}{"action": ack, "room": msg.Room})
	case "ping":
		c.queue(MessagePong, map[string]interface{}{"time": time.Now().Unix()})
	case "pong":
	default:
		log.Printf("[Client] Unknown action %q from %s", msg.Action, c.Name)
	}
}

// validRoom accepts the runs room and team rooms.
func validRoom(room string) bool {
	return room == RoomRuns || (strings.HasPrefix(room, "team:") && len(room) > len("team:"))
}

// queue is non-blocking; a client whose buffer is full misses the reply.
func (c *Client) queue(t MessageType, payload map[string]interface{}) {
	data, err := json.Marshal(Message{Type: t, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Client] Send buffer full, dropped %s for %s", t, c.Name)
	}
}
