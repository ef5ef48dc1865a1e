package messaging

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"chatroom-service/internal/bus"
	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/repositories"
)

// Broadcaster fans a frame out to a room's subscribers, optionally excluding
// the sending connection.
type Broadcaster interface {
	BroadcastRoomExcept(roomID, event string, data any, exceptConnID string)
}

// Pipeline accepts messages from senders and runs the two independent legs:
// immediate fan-out to room subscribers and durable persistence via the bus.
// Delivery is at-most-once by design: the broadcast is not persistence-gated,
// and a failed persist is logged without retry or rollback.
type Pipeline struct {
	broadcaster Broadcaster
	events      *bus.Bus
	messages    repositories.MessageRepository

	now   func() time.Time
	newID func() string
}

// NewPipeline constructs a Pipeline.
func NewPipeline(broadcaster Broadcaster, events *bus.Bus, messages repositories.MessageRepository) *Pipeline {
	return &Pipeline{
		broadcaster: broadcaster,
		events:      events,
		messages:    messages,
		now:         time.Now,
		newID:       func() string { return ulid.Make().String() },
	}
}

// Send assigns the message identifier and server timestamp, broadcasts to the
// room excluding the sender, then publishes the persistence event. Publish
// order behind the broadcast keeps user-visible delivery ahead of the durable
// write.
func (p *Pipeline) Send(senderConnID string, in models.InboundMessage) models.ChatMessage {
	msg := models.ChatMessage{
		ID:         p.newID(),
		RoomID:     in.RoomID,
		SenderID:   in.SenderID,
		SenderName: in.SenderName,
		Content:    in.Content,
		CreatedAt:  p.now().UTC(),
	}

	p.broadcaster.BroadcastRoomExcept(msg.RoomID, models.EventMessageReceived, msg, senderConnID)
	p.events.Publish(bus.TopicMessageSave, msg)
	observability.IncWSEvent("room", "message_sent")
	return msg
}

// Bind subscribes the durable-store consumers. TopicMessagePurge arrives
// ordered behind the TopicRoomDelete that triggered it, so the purge never
// races the room removal.
func (p *Pipeline) Bind(events *bus.Bus) {
	events.Subscribe(bus.TopicMessageSave, p.handleSave)
	events.Subscribe(bus.TopicMessagePurge, p.handlePurge)
}

func (p *Pipeline) handleSave(payload any) {
	msg, ok := payload.(models.ChatMessage)
	if !ok {
		logrus.Warn("message save event with unexpected payload type")
		return
	}
	if err := p.messages.Insert(context.Background(), msg); err != nil {
		logrus.WithError(err).WithField("chat_id", msg.ID).Error("message persist failed")
		return
	}
	logrus.WithField("chat_id", msg.ID).Debug("message persisted")
}

func (p *Pipeline) handlePurge(payload any) {
	roomID, ok := payload.(string)
	if !ok {
		logrus.Warn("message purge event with unexpected payload type")
		return
	}
	deleted, err := p.messages.DeleteByRoom(context.Background(), roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("message purge failed")
		return
	}
	logrus.WithFields(logrus.Fields{"room_id": roomID, "deleted": deleted}).Info("room messages purged")
}
