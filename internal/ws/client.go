package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"chatroom-service/internal/models"
)

// Session is the connection-scoped state: who the connection belongs to and
// which room it currently occupies. It is never persisted and dies with the
// connection.
type Session struct {
	UserID        string
	UserName      string
	RoomID        string
	Authenticated bool
}

// Client wraps one websocket connection. Writes are serialized through the
// client mutex because the gateway read loop and bus consumers both deliver
// frames to the same connection.
type Client struct {
	ID   string
	conn *websocket.Conn

	mu      sync.Mutex
	session Session
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{ID: newConnID(), conn: conn}
}

// Send marshals and writes one frame to the connection.
func (c *Client) Send(event string, data any) error {
	payload, err := json.Marshal(models.Frame{Event: event, Data: data})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// SetIdentity marks the session authenticated.
func (c *Client) SetIdentity(userID, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.UserID = userID
	c.session.UserName = userName
	c.session.Authenticated = true
}

// SetRoom binds the session to a room.
func (c *Client) SetRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.RoomID = roomID
}

// Session returns a snapshot of the connection state.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
