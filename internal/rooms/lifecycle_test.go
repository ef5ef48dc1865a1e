package rooms

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatroom-service/internal/bus"
	"chatroom-service/internal/mocks"
	"chatroom-service/internal/models"
	"chatroom-service/internal/repositories"
)

const lobbyID = "chatRoomGlobal"

type sentFrame struct {
	Target string // room id or user id
	Event  string
	Data   any
}

// notifierRecorder captures broadcasts in call order.
type notifierRecorder struct {
	mu    sync.Mutex
	rooms []sentFrame
	users []sentFrame
}

func (n *notifierRecorder) BroadcastRoom(roomID, event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, sentFrame{Target: roomID, Event: event, Data: data})
}

func (n *notifierRecorder) SendToUser(userID, event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, sentFrame{Target: userID, Event: event, Data: data})
}

func newManager(t *testing.T) (*Manager, *mocks.RoomRepositoryMock, *notifierRecorder) {
	t.Helper()
	repo := new(mocks.RoomRepositoryMock)
	notifier := &notifierRecorder{}
	m := NewManager(repo, notifier, nil, lobbyID)
	m.newID = func() string { return "R1" }
	return m, repo, notifier
}

func TestHandleSaveCreatesRoomWithOwnerAsSoleMember(t *testing.T) {
	m, repo, notifier := newManager(t)

	var created models.ChatRoom
	repo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(1).(models.ChatRoom) }).
		Return(models.ChatRoom{
			ID: "R1", Name: "General", OwnerID: "U1", OwnerName: "Ada",
			Status:  models.RoomStatusActive,
			Members: []models.Member{{UserID: "U1", UserName: "Ada"}},
		}, nil).Once()

	m.handleSave(models.CreateRoomRequest{Name: "General", OwnerID: "U1", OwnerName: "Ada"})

	repo.AssertExpectations(t)
	require.Equal(t, "R1", created.ID)
	require.Equal(t, models.RoomStatusActive, created.Status)
	require.Equal(t, []models.Member{{UserID: "U1", UserName: "Ada"}}, created.Members)

	require.Len(t, notifier.users, 1)
	require.Equal(t, sentFrame{Target: "U1", Event: models.EventRoomCreated, Data: created}, sentFrame{
		Target: notifier.users[0].Target, Event: notifier.users[0].Event, Data: notifier.users[0].Data,
	})
	require.Len(t, notifier.rooms, 1)
	require.Equal(t, lobbyID, notifier.rooms[0].Target)
	require.Equal(t, models.EventRoomCreatedGlob, notifier.rooms[0].Event)
}

func TestHandleSavePersistFailureSkipsBroadcast(t *testing.T) {
	m, repo, notifier := newManager(t)

	repo.On("Create", mock.Anything, mock.Anything).Return(models.ChatRoom{}, errors.New("insert failed")).Once()

	m.handleSave(models.CreateRoomRequest{Name: "General", OwnerID: "U1", OwnerName: "Ada"})

	repo.AssertExpectations(t)
	require.Empty(t, notifier.rooms)
	require.Empty(t, notifier.users)
}

func TestHandleEditBroadcastsRoomAndLobby(t *testing.T) {
	m, repo, notifier := newManager(t)

	updated := models.ChatRoom{ID: "R1", Name: "Renamed"}
	repo.On("Rename", mock.Anything, "R1", "Renamed").Return(updated, nil).Once()

	m.handleEdit(models.EditRoomRequest{RoomID: "R1", Name: "Renamed"})

	repo.AssertExpectations(t)
	require.Len(t, notifier.rooms, 2)
	require.Equal(t, "R1", notifier.rooms[0].Target)
	require.Equal(t, models.EventRoomEdited, notifier.rooms[0].Event)
	require.Equal(t, lobbyID, notifier.rooms[1].Target)
	require.Equal(t, models.EventRoomEditedGlob, notifier.rooms[1].Event)
}

func TestHandleEditRoomNotFoundIsNoOp(t *testing.T) {
	m, repo, notifier := newManager(t)

	repo.On("Rename", mock.Anything, "missing", "x").
		Return(models.ChatRoom{}, repositories.ErrRoomNotFound).Once()

	m.handleEdit(models.EditRoomRequest{RoomID: "missing", Name: "x"})

	repo.AssertExpectations(t)
	require.Empty(t, notifier.rooms)
}

func TestHandleStatusBroadcastsLobbyOnly(t *testing.T) {
	m, repo, notifier := newManager(t)

	closed := models.ChatRoom{ID: "R1", Status: models.RoomStatusClosed}
	repo.On("SetStatus", mock.Anything, "R1", models.RoomStatusClosed).Return(closed, nil).Once()

	m.handleStatus(models.RoomStatusRequest{RoomID: "R1", Status: models.RoomStatusClosed})

	repo.AssertExpectations(t)
	require.Len(t, notifier.rooms, 1)
	require.Equal(t, lobbyID, notifier.rooms[0].Target)
}

func TestHandleStatusRejectsUnknownStatus(t *testing.T) {
	m, repo, notifier := newManager(t)

	m.handleStatus(models.RoomStatusRequest{RoomID: "R1", Status: "archived"})

	repo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
	require.Empty(t, notifier.rooms)
}

func TestHandleMemberAddBroadcastsUpdatedRoom(t *testing.T) {
	m, repo, notifier := newManager(t)

	updated := models.ChatRoom{ID: "R1", Members: []models.Member{
		{UserID: "U1", UserName: "Ada"},
		{UserID: "U2", UserName: "Grace"},
	}}
	repo.On("AddMember", mock.Anything, "R1", models.Member{UserID: "U2", UserName: "Grace"}).
		Return(updated, nil).Once()

	m.handleMemberAdd(models.MembershipChange{RoomID: "R1", UserID: "U2", UserName: "Grace"})

	repo.AssertExpectations(t)
	require.Len(t, notifier.rooms, 1)
	require.Equal(t, models.EventRoomEditedGlob, notifier.rooms[0].Event)
	require.Equal(t, updated, notifier.rooms[0].Data)
}

func TestHandleMemberLeaveBroadcastsGlobally(t *testing.T) {
	m, repo, notifier := newManager(t)

	updated := models.ChatRoom{ID: "R1", Members: []models.Member{{UserID: "U1", UserName: "Ada"}}}
	repo.On("RemoveMember", mock.Anything, "R1", models.Member{UserID: "U2", UserName: "Grace"}).
		Return(updated, nil).Once()

	m.handleMemberLeave(models.MembershipChange{RoomID: "R1", UserID: "U2", UserName: "Grace"})

	repo.AssertExpectations(t)
	require.Len(t, notifier.rooms, 1)
	require.Equal(t, lobbyID, notifier.rooms[0].Target)
	require.Equal(t, models.EventMemberLeftGlob, notifier.rooms[0].Event)
}

func TestHandleDeleteRemovesRoom(t *testing.T) {
	m, repo, _ := newManager(t)

	repo.On("Delete", mock.Anything, "R1").Return(nil).Once()

	m.handleDelete("R1")

	repo.AssertExpectations(t)
}

func TestHandleDeleteMissingRoomIsNoOp(t *testing.T) {
	m, repo, notifier := newManager(t)

	repo.On("Delete", mock.Anything, "missing").Return(repositories.ErrRoomNotFound).Once()

	m.handleDelete("missing")

	repo.AssertExpectations(t)
	require.Empty(t, notifier.rooms)
}

func TestBindSubscribesLifecycleTopics(t *testing.T) {
	m, repo, _ := newManager(t)

	events := bus.New(8)
	defer events.Stop()
	m.Bind(events)

	updated := models.ChatRoom{ID: "R1", Name: "Renamed"}
	done := make(chan struct{})
	repo.On("Rename", mock.Anything, "R1", "Renamed").
		Run(func(mock.Arguments) { defer close(done) }).
		Return(updated, nil).Once()

	events.Start()
	events.Publish(bus.TopicRoomEdit, models.EditRoomRequest{RoomID: "R1", Name: "Renamed"})

	<-done
	repo.AssertExpectations(t)
}
