package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatroom-service/internal/auth"
	"chatroom-service/internal/bus"
	"chatroom-service/internal/messaging"
	"chatroom-service/internal/mocks"
	"chatroom-service/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type gatewayFixture struct {
	server    *httptest.Server
	validator *mocks.TokenValidatorMock
	online    *mocks.PresenceCacheMock
	events    *bus.Bus
}

func newGatewayFixture(t *testing.T, authGrace time.Duration) *gatewayFixture {
	t.Helper()

	hub := NewHub()
	events := bus.New(16)
	validator := new(mocks.TokenValidatorMock)
	online := new(mocks.PresenceCacheMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	pipeline := messaging.NewPipeline(hub, events, messageRepo)

	gateway := NewGateway(hub, events, online, validator, pipeline, "chatRoomGlobal", authGrace)

	router := gin.New()
	router.GET("/ws", gateway.Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	t.Cleanup(events.Stop)

	return &gatewayFixture{server: server, validator: validator, online: online, events: events}
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) models.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame models.Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func TestGatewayChallengesOnConnect(t *testing.T) {
	f := newGatewayFixture(t, 0)
	conn := f.dial(t)

	frame := readFrame(t, conn)
	require.Equal(t, models.EventVerifyUser, frame.Event)
}

func TestGatewayAuthenticatesAndStartsSession(t *testing.T) {
	f := newGatewayFixture(t, 0)
	f.validator.On("Validate", "good-token").
		Return(auth.Identity{UserID: "u1", FirstName: "Ada", LastName: "Lovelace"}, nil).Once()
	f.online.On("Set", mock.Anything, "u1", "Ada Lovelace").Return(nil).Once()
	f.online.On("Remove", mock.Anything, "u1").Return(nil).Maybe()
	f.online.On("All", mock.Anything).Return(map[string]string{}, nil).Maybe()

	conn := f.dial(t)
	require.Equal(t, models.EventVerifyUser, readFrame(t, conn).Event)

	sendEvent(t, conn, models.EventSetUser, "good-token")

	frame := readFrame(t, conn)
	require.Equal(t, models.EventStartChatRoom, frame.Event)
	f.validator.AssertExpectations(t)
	f.online.AssertExpectations(t)
}

func TestGatewayRejectsBadToken(t *testing.T) {
	f := newGatewayFixture(t, 0)
	f.validator.On("Validate", "bad-token").Return(auth.Identity{}, auth.ErrInvalidToken).Once()

	conn := f.dial(t)
	require.Equal(t, models.EventVerifyUser, readFrame(t, conn).Event)

	sendEvent(t, conn, models.EventSetUser, "bad-token")

	frame := readFrame(t, conn)
	require.Equal(t, models.EventAuthError, frame.Event)

	raw, err := json.Marshal(frame.Data)
	require.NoError(t, err)
	var authErr models.AuthError
	require.NoError(t, json.Unmarshal(raw, &authErr))
	require.Equal(t, 500, authErr.Status)
	require.Equal(t, "Please provide correct authentication token", authErr.Error)
}

func TestGatewayDropsEventsFromUnauthenticatedConnections(t *testing.T) {
	f := newGatewayFixture(t, 0)
	conn := f.dial(t)
	require.Equal(t, models.EventVerifyUser, readFrame(t, conn).Event)

	sendEvent(t, conn, models.EventJoinChatRoom, map[string]string{"chatRoomId": "r1"})

	// No frame comes back; the read must time out rather than deliver
	// anything to the unauthenticated connection.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestGatewayJoinRoomNotifiesOccupants(t *testing.T) {
	f := newGatewayFixture(t, 0)
	f.validator.On("Validate", "good-token").
		Return(auth.Identity{UserID: "u1", FirstName: "Ada"}, nil).Once()
	f.online.On("Set", mock.Anything, "u1", "Ada").Return(nil).Once()
	f.online.On("Remove", mock.Anything, "u1").Return(nil).Maybe()
	f.online.On("All", mock.Anything).Return(map[string]string{"u1": "Ada"}, nil)

	conn := f.dial(t)
	require.Equal(t, models.EventVerifyUser, readFrame(t, conn).Event)
	sendEvent(t, conn, models.EventSetUser, "good-token")
	require.Equal(t, models.EventStartChatRoom, readFrame(t, conn).Event)

	sendEvent(t, conn, models.EventJoinChatRoom, map[string]string{
		"chatRoomId": "r1",
		"userId":     "u1",
		"userName":   "Ada",
	})

	require.Equal(t, models.EventOnlineUserList, readFrame(t, conn).Event)

	frame := readFrame(t, conn)
	require.Equal(t, models.EventNotification, frame.Event)
	require.Equal(t, "Ada is online", frame.Data)

	require.Equal(t, models.EventAddRoomMember, readFrame(t, conn).Event)
}

func TestGatewayJoinLobbySkipsMembershipPersistence(t *testing.T) {
	f := newGatewayFixture(t, 0)
	f.validator.On("Validate", "good-token").
		Return(auth.Identity{UserID: "u1", FirstName: "Ada"}, nil).Once()
	f.online.On("Set", mock.Anything, "u1", "Ada").Return(nil).Once()
	f.online.On("Remove", mock.Anything, "u1").Return(nil).Maybe()
	f.online.On("All", mock.Anything).Return(map[string]string{"u1": "Ada"}, nil)

	conn := f.dial(t)
	require.Equal(t, models.EventVerifyUser, readFrame(t, conn).Event)
	sendEvent(t, conn, models.EventSetUser, "good-token")
	require.Equal(t, models.EventStartChatRoom, readFrame(t, conn).Event)

	sendEvent(t, conn, models.EventJoinChatRoom, map[string]string{
		"chatRoomId": "chatRoomGlobal",
		"userId":     "u1",
		"userName":   "Ada",
	})

	require.Equal(t, models.EventOnlineUserList, readFrame(t, conn).Event)
	require.Equal(t, models.EventNotification, readFrame(t, conn).Event)

	// Lobby joins produce no addChatRoomMember frame.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func authenticate(t *testing.T, f *gatewayFixture, token string) *websocket.Conn {
	t.Helper()
	conn := f.dial(t)
	require.Equal(t, models.EventVerifyUser, readFrame(t, conn).Event)
	sendEvent(t, conn, models.EventSetUser, token)
	require.Equal(t, models.EventStartChatRoom, readFrame(t, conn).Event)
	return conn
}

func TestGatewayDisconnectRemovesPresenceAndRebroadcasts(t *testing.T) {
	f := newGatewayFixture(t, 0)
	f.validator.On("Validate", "token-ada").
		Return(auth.Identity{UserID: "u1", FirstName: "Ada"}, nil).Once()
	f.validator.On("Validate", "token-grace").
		Return(auth.Identity{UserID: "u2", FirstName: "Grace"}, nil).Once()
	f.online.On("Set", mock.Anything, "u1", "Ada").Return(nil).Once()
	f.online.On("Set", mock.Anything, "u2", "Grace").Return(nil).Once()
	f.online.On("All", mock.Anything).Return(map[string]string{"u2": "Grace"}, nil)

	removed := make(chan struct{})
	f.online.On("Remove", mock.Anything, "u1").
		Run(func(mock.Arguments) { close(removed) }).
		Return(nil).Once()
	f.online.On("Remove", mock.Anything, "u2").Return(nil).Maybe()

	ada := authenticate(t, f, "token-ada")
	sendEvent(t, ada, models.EventJoinChatRoom, map[string]string{
		"chatRoomId": "chatRoomGlobal", "userId": "u1", "userName": "Ada",
	})
	require.Equal(t, models.EventOnlineUserList, readFrame(t, ada).Event)
	require.Equal(t, models.EventNotification, readFrame(t, ada).Event)

	grace := authenticate(t, f, "token-grace")
	sendEvent(t, grace, models.EventJoinChatRoom, map[string]string{
		"chatRoomId": "chatRoomGlobal", "userId": "u2", "userName": "Grace",
	})
	require.Equal(t, models.EventOnlineUserList, readFrame(t, grace).Event)
	require.Equal(t, models.EventNotification, readFrame(t, grace).Event)
	require.Equal(t, models.EventOnlineUserList, readFrame(t, ada).Event)
	require.Equal(t, models.EventNotification, readFrame(t, ada).Event)

	ada.Close()

	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("presence entry never removed on disconnect")
	}

	frame := readFrame(t, grace)
	require.Equal(t, models.EventNotification, frame.Event)
	require.Equal(t, "Ada went offline", frame.Data)

	frame = readFrame(t, grace)
	require.Equal(t, models.EventOnlineUserList, frame.Event)
	require.Equal(t, map[string]any{"u2": "Grace"}, frame.Data)

	f.online.AssertExpectations(t)
}

func TestGatewayTypingExcludesSender(t *testing.T) {
	f := newGatewayFixture(t, 0)
	f.validator.On("Validate", "token-ada").
		Return(auth.Identity{UserID: "u1", FirstName: "Ada"}, nil).Once()
	f.validator.On("Validate", "token-grace").
		Return(auth.Identity{UserID: "u2", FirstName: "Grace"}, nil).Once()
	f.online.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.online.On("Remove", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.online.On("All", mock.Anything).Return(map[string]string{}, nil)

	ada := authenticate(t, f, "token-ada")
	sendEvent(t, ada, models.EventJoinChatRoom, map[string]string{
		"chatRoomId": "r1", "userId": "u1", "userName": "Ada",
	})
	require.Equal(t, models.EventOnlineUserList, readFrame(t, ada).Event)
	require.Equal(t, models.EventNotification, readFrame(t, ada).Event)
	require.Equal(t, models.EventAddRoomMember, readFrame(t, ada).Event)

	grace := authenticate(t, f, "token-grace")
	sendEvent(t, grace, models.EventJoinChatRoom, map[string]string{
		"chatRoomId": "r1", "userId": "u2", "userName": "Grace",
	})
	require.Equal(t, models.EventOnlineUserList, readFrame(t, grace).Event)
	require.Equal(t, models.EventNotification, readFrame(t, grace).Event)
	require.Equal(t, models.EventAddRoomMember, readFrame(t, grace).Event)
	require.Equal(t, models.EventOnlineUserList, readFrame(t, ada).Event)
	require.Equal(t, models.EventNotification, readFrame(t, ada).Event)
	require.Equal(t, models.EventAddRoomMember, readFrame(t, ada).Event)

	sendEvent(t, ada, models.EventTyping, map[string]string{"userId": "u1", "userName": "Ada"})

	frame := readFrame(t, grace)
	require.Equal(t, models.EventTyping, frame.Event)
	require.Equal(t, map[string]any{"userId": "u1", "userName": "Ada"}, frame.Data)

	// The sender must not receive its own typing relay.
	require.NoError(t, ada.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := ada.ReadMessage()
	require.Error(t, err)
}

func TestGatewayClosesUnauthenticatedConnectionAfterGrace(t *testing.T) {
	f := newGatewayFixture(t, 100*time.Millisecond)
	conn := f.dial(t)
	require.Equal(t, models.EventVerifyUser, readFrame(t, conn).Event)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
