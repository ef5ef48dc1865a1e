package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatroom-service/internal/bus"
	"chatroom-service/internal/mocks"
	"chatroom-service/internal/models"
)

type broadcastCall struct {
	RoomID       string
	Event        string
	Data         any
	ExceptConnID string
}

type broadcasterRecorder struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *broadcasterRecorder) BroadcastRoomExcept(roomID, event string, data any, exceptConnID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{RoomID: roomID, Event: event, Data: data, ExceptConnID: exceptConnID})
}

func TestSendStampsAndBroadcastsExcludingSender(t *testing.T) {
	events := bus.New(8)
	defer events.Stop()

	broadcaster := &broadcasterRecorder{}
	repo := new(mocks.MessageRepositoryMock)
	p := NewPipeline(broadcaster, events, repo)

	stamped := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return stamped }
	p.newID = func() string { return "M1" }

	msg := p.Send("conn-sender", models.InboundMessage{
		RoomID:     "r1",
		SenderID:   "u1",
		SenderName: "Ada",
		Content:    "hello",
	})

	require.Equal(t, "M1", msg.ID)
	require.Equal(t, stamped, msg.CreatedAt)

	require.Len(t, broadcaster.calls, 1)
	call := broadcaster.calls[0]
	require.Equal(t, "r1", call.RoomID)
	require.Equal(t, models.EventMessageReceived, call.Event)
	require.Equal(t, msg, call.Data)
	require.Equal(t, "conn-sender", call.ExceptConnID)
}

func TestSendBroadcastsBeforePersist(t *testing.T) {
	events := bus.New(8)
	defer events.Stop()

	broadcaster := &broadcasterRecorder{}
	repo := new(mocks.MessageRepositoryMock)
	p := NewPipeline(broadcaster, events, repo)
	p.Bind(events)

	persisted := make(chan models.ChatMessage, 1)
	repo.On("Insert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { persisted <- args.Get(1).(models.ChatMessage) }).
		Return(nil).Once()

	// The bus is not dispatching yet, so the broadcast must happen without
	// waiting on the durable write.
	msg := p.Send("conn-sender", models.InboundMessage{RoomID: "r1", SenderID: "u1", Content: "hi"})
	require.Len(t, broadcaster.calls, 1)

	events.Start()
	select {
	case stored := <-persisted:
		require.Equal(t, msg, stored)
	case <-time.After(2 * time.Second):
		t.Fatal("message never persisted")
	}
	repo.AssertExpectations(t)
}

func TestHandleSaveLogsPersistFailureWithoutRetry(t *testing.T) {
	broadcaster := &broadcasterRecorder{}
	repo := new(mocks.MessageRepositoryMock)
	p := NewPipeline(broadcaster, bus.New(1), repo)

	repo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("insert failed")).Once()

	p.handleSave(models.ChatMessage{ID: "M1", RoomID: "r1"})

	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestHandlePurgeDeletesRoomMessages(t *testing.T) {
	broadcaster := &broadcasterRecorder{}
	repo := new(mocks.MessageRepositoryMock)
	p := NewPipeline(broadcaster, bus.New(1), repo)

	repo.On("DeleteByRoom", mock.Anything, "r1").Return(int64(3), nil).Once()

	p.handlePurge("r1")

	repo.AssertExpectations(t)
}

func TestHandlersDropUnexpectedPayloads(t *testing.T) {
	broadcaster := &broadcasterRecorder{}
	repo := new(mocks.MessageRepositoryMock)
	p := NewPipeline(broadcaster, bus.New(1), repo)

	p.handleSave("not-a-message")
	p.handlePurge(42)

	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "DeleteByRoom", mock.Anything, mock.Anything)
}
