package ws

import (
	"sync"

	"github.com/sirupsen/logrus"

	"chatroom-service/internal/observability"
)

// Hub maintains the registry of active connections: the global set, per-room
// subscriber sets and a per-user index for private delivery.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	byUser  map[string]map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
		byUser:  make(map[string]map[*Client]bool),
	}
}

// Register adds a new connection to the global set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// BindUser indexes an authenticated connection by its user id.
func (h *Hub) BindUser(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byUser[userID]; !ok {
		h.byUser[userID] = make(map[*Client]bool)
	}
	h.byUser[userID][c] = true
}

// JoinRoom subscribes the connection to a room's broadcast group.
func (h *Hub) JoinRoom(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
}

// Unregister removes the connection from the global set, every room group and
// the user index.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	for roomID, group := range h.rooms {
		delete(group, c)
		if len(group) == 0 {
			delete(h.rooms, roomID)
		}
	}
	for userID, conns := range h.byUser {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.byUser, userID)
		}
	}
}

// BroadcastAll sends the frame to every connection.
func (h *Hub) BroadcastAll(event string, data any) {
	h.deliver(h.snapshotAll(), "", event, data)
}

// BroadcastRoom sends the frame to every connection subscribed to the room.
func (h *Hub) BroadcastRoom(roomID, event string, data any) {
	h.deliver(h.snapshotRoom(roomID), "", event, data)
}

// BroadcastRoomExcept sends the frame to the room, excluding one connection.
func (h *Hub) BroadcastRoomExcept(roomID, event string, data any, exceptConnID string) {
	h.deliver(h.snapshotRoom(roomID), exceptConnID, event, data)
}

// SendToUser sends the frame privately to every connection of one user.
func (h *Hub) SendToUser(userID, event string, data any) {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	h.deliver(conns, "", event, data)
}

// RoomSize reports the number of subscribers in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) snapshotAll() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) snapshotRoom(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		conns = append(conns, c)
	}
	return conns
}

// deliver writes to each target, pruning connections that fail.
func (h *Hub) deliver(targets []*Client, exceptConnID, event string, data any) {
	for _, c := range targets {
		if exceptConnID != "" && c.ID == exceptConnID {
			continue
		}
		if err := c.Send(event, data); err != nil {
			logrus.WithError(err).WithField("event", event).Warn("websocket write failed, dropping connection")
			c.Close()
			h.Unregister(c)
			observability.IncWSEvent("session", "ws_error")
		}
	}
}
