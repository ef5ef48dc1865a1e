package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"chatroom-service/internal/auth"
	"chatroom-service/internal/bus"
	"chatroom-service/internal/messaging"
	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/presence"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inbound is the envelope clients send.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Gateway owns the connection lifecycle: challenge, authentication, event
// dispatch, presence bookkeeping and disconnect cleanup.
type Gateway struct {
	hub       *Hub
	events    *bus.Bus
	online    presence.Cache
	validator auth.TokenValidator
	pipeline  *messaging.Pipeline
	lobbyID   string

	// authGrace closes connections that never authenticate; zero leaves them
	// open indefinitely, which is the inherited source behavior.
	authGrace time.Duration
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, events *bus.Bus, online presence.Cache, validator auth.TokenValidator, pipeline *messaging.Pipeline, lobbyID string, authGrace time.Duration) *Gateway {
	return &Gateway{
		hub:       hub,
		events:    events,
		online:    online,
		validator: validator,
		pipeline:  pipeline,
		lobbyID:   lobbyID,
		authGrace: authGrace,
	}
}

// Handle upgrades the request, emits the authentication challenge and runs
// the read loop.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chatroom-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn)
	g.hub.Register(client)
	observability.IncWSActive("session")
	observability.IncWSEvent("session", "ws_connect")

	if err := client.Send(models.EventVerifyUser, nil); err != nil {
		logrus.WithError(err).Warn("challenge write failed")
	}

	var graceTimer *time.Timer
	if g.authGrace > 0 {
		graceTimer = time.AfterFunc(g.authGrace, func() {
			if !client.Session().Authenticated {
				logrus.WithField("conn_id", client.ID).Info("closing unauthenticated connection after grace period")
				client.Close()
			}
		})
	}

	go g.readLoop(client, graceTimer)
}

func (g *Gateway) readLoop(client *Client, graceTimer *time.Timer) {
	defer g.disconnect(client, graceTimer)

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("session", "ws_error")
			}
			return
		}

		var env inbound
		if err := json.Unmarshal(raw, &env); err != nil {
			logrus.WithError(err).Debug("unparseable frame dropped")
			continue
		}
		g.dispatch(client, env)
	}
}

// dispatch routes one client event. Every domain event except set-user
// requires an authenticated session; events from unauthenticated connections
// are dropped silently.
func (g *Gateway) dispatch(client *Client, env inbound) {
	if env.Event == models.EventSetUser {
		g.onSetUser(client, env.Data)
		return
	}
	if !client.Session().Authenticated {
		logrus.WithField("event", env.Event).Debug("event from unauthenticated connection dropped")
		return
	}

	switch env.Event {
	case models.EventJoinChatRoom:
		g.onJoinRoom(client, env.Data)
	case models.EventChatRoomMsg:
		g.onChatRoomMsg(client, env.Data)
	case models.EventChatMsgGlobal:
		g.onChatMsgGlobal(client, env.Data)
	case models.EventTyping:
		g.onTyping(client, env.Data)
	case models.EventCreateChatRoom:
		g.onCreateRoom(client, env.Data)
	case models.EventEditChatRoom:
		g.onEditRoom(env.Data)
	case models.EventChatRoomStatus:
		g.onRoomStatus(env.Data)
	case models.EventLeaveChatRoom:
		g.onLeaveRoom(client, env.Data)
	case models.EventDeleteChatRoom:
		g.onDeleteRoom(env.Data)
	default:
		logrus.WithField("event", env.Event).Debug("unknown event dropped")
	}
}

func (g *Gateway) onSetUser(client *Client, data json.RawMessage) {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		token = ""
	}

	identity, err := g.validator.Validate(token)
	if err != nil {
		observability.IncWSEvent("session", "auth_failed")
		_ = client.Send(models.EventAuthError, models.AuthError{
			Status: 500,
			Error:  "Please provide correct authentication token",
		})
		return
	}

	client.SetIdentity(identity.UserID, identity.DisplayName())
	g.hub.BindUser(identity.UserID, client)

	if err := g.online.Set(context.Background(), identity.UserID, identity.DisplayName()); err != nil {
		logrus.WithError(err).Error("presence set failed")
	} else {
		logrus.WithField("user_id", identity.UserID).Info("user set as online")
	}

	observability.IncWSEvent("session", "auth_ok")
	_ = client.Send(models.EventStartChatRoom, nil)
}

func (g *Gateway) onJoinRoom(client *Client, data json.RawMessage) {
	var change models.MembershipChange
	if err := json.Unmarshal(data, &change); err != nil || change.RoomID == "" {
		logrus.Debug("joinChatRoom with missing chatRoomId dropped")
		return
	}

	client.SetRoom(change.RoomID)
	g.hub.JoinRoom(change.RoomID, client)
	logrus.WithFields(logrus.Fields{"room_id": change.RoomID, "user_id": change.UserID}).Info("joining room")

	g.broadcastOnlineList()

	sess := client.Session()
	g.hub.BroadcastRoom(change.RoomID, models.EventNotification, sess.UserName+" is online")

	if models.ClassifyRoom(change.RoomID, g.lobbyID) != models.KindLobby {
		g.events.Publish(bus.TopicRoomMemberAdd, change)
		g.hub.BroadcastRoom(change.RoomID, models.EventAddRoomMember, change)
	}
}

func (g *Gateway) onChatRoomMsg(client *Client, data json.RawMessage) {
	var in models.InboundMessage
	if err := json.Unmarshal(data, &in); err != nil || in.RoomID == "" || in.SenderID == "" {
		logrus.Debug("chatRoomMsg with missing fields dropped")
		return
	}
	g.pipeline.Send(client.ID, in)
}

func (g *Gateway) onChatMsgGlobal(client *Client, data json.RawMessage) {
	var in models.InboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return
	}
	sess := client.Session()
	g.hub.BroadcastRoom(sess.RoomID, models.EventNotification, in.SenderName+": "+in.Content)
}

func (g *Gateway) onTyping(client *Client, data json.RawMessage) {
	var notice models.TypingNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		return
	}
	sess := client.Session()
	g.hub.BroadcastRoomExcept(sess.RoomID, models.EventTyping, notice, client.ID)
}

func (g *Gateway) onCreateRoom(client *Client, data json.RawMessage) {
	var req models.CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Name == "" || req.OwnerID == "" {
		logrus.Debug("createChatRoom with missing fields dropped")
		return
	}
	g.events.Publish(bus.TopicRoomSave, req)
}

func (g *Gateway) onEditRoom(data json.RawMessage) {
	var req models.EditRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		logrus.Debug("editChatRoom with missing fields dropped")
		return
	}
	g.events.Publish(bus.TopicRoomEdit, req)
}

func (g *Gateway) onRoomStatus(data json.RawMessage) {
	var req models.RoomStatusRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		logrus.Debug("chatRoomStatus with missing fields dropped")
		return
	}
	g.events.Publish(bus.TopicRoomStatus, req)
}

func (g *Gateway) onLeaveRoom(client *Client, data json.RawMessage) {
	var change models.MembershipChange
	if err := json.Unmarshal(data, &change); err != nil || change.RoomID == "" {
		logrus.Debug("leaveChatRoom with missing fields dropped")
		return
	}

	g.events.Publish(bus.TopicRoomMemberLeave, change)
	sess := client.Session()
	g.hub.BroadcastRoom(sess.RoomID, models.EventRoomMemberLeft, change)
}

// onDeleteRoom publishes the delete and the message purge back-to-back; bus
// FIFO dispatch guarantees the purge runs after the room removal. Lobby and
// room occupants are notified immediately, before either write completes.
func (g *Gateway) onDeleteRoom(data json.RawMessage) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil || roomID == "" {
		logrus.Debug("deleteChatRoom with missing chatRoomId dropped")
		return
	}

	g.events.Publish(bus.TopicRoomDelete, roomID)
	g.events.Publish(bus.TopicMessagePurge, roomID)

	g.hub.BroadcastRoom(g.lobbyID, models.EventRoomDeletedGlob, roomID)
	g.hub.BroadcastRoom(roomID, models.EventRedirectOnDelete, "Chat Room deleted.")
}

func (g *Gateway) disconnect(client *Client, graceTimer *time.Timer) {
	if graceTimer != nil {
		graceTimer.Stop()
	}

	sess := client.Session()
	if models.ClassifyRoom(sess.RoomID, g.lobbyID) == models.KindLobby {
		g.hub.BroadcastRoom(g.lobbyID, models.EventNotification, sess.UserName+" went offline")
	}
	if sess.UserID != "" {
		if err := g.online.Remove(context.Background(), sess.UserID); err != nil {
			logrus.WithError(err).Error("presence remove failed")
		}
		g.broadcastOnlineList()
	}

	g.hub.Unregister(client)
	client.Close()
	observability.DecWSActive("session")
	observability.IncWSEvent("session", "ws_disconnect")
}

// broadcastOnlineList reads the whole presence hash and pushes it to every
// connection, room membership notwithstanding.
func (g *Gateway) broadcastOnlineList() {
	users, err := g.online.All(context.Background())
	if err != nil {
		logrus.WithError(err).Error("presence read failed")
		return
	}
	g.hub.BroadcastAll(models.EventOnlineUserList, users)
}
