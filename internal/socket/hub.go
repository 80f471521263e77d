// internal/socket/hub.go
package socket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageType tags every event on the admin feed.
type MessageType string

const (
	MessageRunStarted   MessageType = "run_started"
	MessageRunCompleted MessageType = "run_completed"
	MessagePairNotified MessageType = "pair_notified"
	MessageTeamFailed   MessageType = "team_failed"

	MessageTeamInstalled MessageType = "team_installed"
	MessageTeamRemoved   MessageType = "team_removed"
	MessageMoodRecorded  MessageType = "mood_recorded"

	MessagePing MessageType = "ping"
	MessagePong MessageType = "pong"
	MessageAck  MessageType = "ack"
)

// RoomRuns receives run level events. Every client joins it on connect.
const RoomRuns = "runs"

const heartbeatEvery = 30 * time.Second

// TeamRoom is the room for one team's events.
func TeamRoom(teamID string) string {
	return "team:" + teamID
}

// Message is the JSON frame written to feed clients.
type Message struct {
	Type      MessageType            `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Client is one connected feed subscriber.
type Client struct {
	ID    string
	Name  string
	Conn  *websocket.Conn
	Hub   *Hub
	Send  chan []byte
	Rooms map[string]bool
	mu    sync.Mutex
}

type roomEvent struct {
	room string
	data []byte
}

// Hub owns the client set and room membership. Only Run closes a client's
// Send channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	events     chan roomEvent
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan roomEvent, 256),
		done:       make(chan struct{}),
	}
}

// Register hands a client to the hub. It returns false once the hub has
// stopped, in which case the caller owns the connection.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client. It never blocks after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Run serves registrations and room events until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	defer close(h.done)

	log.Println("[Hub] Live feed hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			log.Println("[Hub] Live feed hub stopped")
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case ev := <-h.events:
			h.deliver(h.members(ev.room), ev.data)
		case <-heartbeat.C:
			data, _ := json.Marshal(Message{Type: MessagePing, Timestamp: time.Now()})
			h.deliver(h.all(), data)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.joinLocked(c, RoomRuns)
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("[Hub] ✅ %s connected (%d clients)", c.Name, total)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	c.mu.Lock()
	for room := range c.Rooms {
		h.leaveLocked(c, room)
	}
	c.mu.Unlock()
	total := len(h.clients)
	h.mu.Unlock()

	close(c.Send)
	log.Printf("[Hub] ❌ %s disconnected (%d clients)", c.Name, total)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.Send)
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
}

// deliver never blocks the loop. A client whose buffer is full is dropped.
func (h *Hub) deliver(targets []*Client, data []byte) {
	for _, c := range targets {
		select {
		case c.Send <- data:
		default:
			log.Printf("[Hub] ⚠️ %s is not keeping up, disconnecting", c.Name)
			go h.Unregister(c)
		}
	}
}

func (h *Hub) members(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) all() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// ============================================
// Rooms
// ============================================

// JoinRoom is ignored for clients the hub no longer tracks.
func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	c.mu.Lock()
	h.joinLocked(c, room)
	c.mu.Unlock()
	h.mu.Unlock()
	log.Printf("[Hub] 👥 %s joined %s", c.Name, room)
}

func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mu.Lock()
	c.mu.Lock()
	h.leaveLocked(c, room)
	c.mu.Unlock()
	h.mu.Unlock()
	log.Printf("[Hub] 👋 %s left %s", c.Name, room)
}

// joinLocked and leaveLocked expect h.mu, and c.mu where c.Rooms is shared.
func (h *Hub) joinLocked(c *Client, room string) {
	c.Rooms[room] = true
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.Rooms, room)
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
}

// SendToRoom queues an event for a room. It never blocks; when the queue is
// full the event is dropped.
func (h *Hub) SendToRoom(room string, msgType MessageType, payload map[string]interface{}) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		log.Printf("[Hub] Failed to encode %s: %v", msgType, err)
		return
	}
	select {
	case h.events <- roomEvent{room: room, data: data}:
	default:
		log.Printf("[Hub] ⚠️ Event queue full, dropping %s for %s", msgType, room)
	}
}

// GetRoomClients returns the number of clients in a room
func (h *Hub) GetRoomClients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// GetConnectedClientsCount returns total connected clients
func (h *Hub) GetConnectedClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
