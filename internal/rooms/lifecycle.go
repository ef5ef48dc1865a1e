package rooms

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"chatroom-service/internal/bus"
	"chatroom-service/internal/models"
	"chatroom-service/internal/repositories"
	"chatroom-service/internal/telemetry"
)

// Notifier delivers lifecycle results to connected clients.
type Notifier interface {
	BroadcastRoom(roomID, event string, data any)
	SendToUser(userID, event string, data any)
}

// Manager consumes room-lifecycle events from the bus, persists them through
// the room store and broadcasts the outcome. A room missing on edit, status,
// membership or delete is a logged no-op; persistence failures are logged
// without retry and the broadcasts that already happened stay as they are.
type Manager struct {
	rooms    repositories.RoomRepository
	notifier Notifier
	audit    *telemetry.AuditEmitter
	lobbyID  string

	newID func() string
}

// NewManager constructs a Manager.
func NewManager(rooms repositories.RoomRepository, notifier Notifier, audit *telemetry.AuditEmitter, lobbyID string) *Manager {
	return &Manager{
		rooms:    rooms,
		notifier: notifier,
		audit:    audit,
		lobbyID:  lobbyID,
		newID:    func() string { return ulid.Make().String() },
	}
}

// Bind subscribes the lifecycle consumers. Called once at startup, before the
// bus starts dispatching.
func (m *Manager) Bind(events *bus.Bus) {
	events.Subscribe(bus.TopicRoomSave, m.handleSave)
	events.Subscribe(bus.TopicRoomEdit, m.handleEdit)
	events.Subscribe(bus.TopicRoomStatus, m.handleStatus)
	events.Subscribe(bus.TopicRoomMemberAdd, m.handleMemberAdd)
	events.Subscribe(bus.TopicRoomMemberLeave, m.handleMemberLeave)
	events.Subscribe(bus.TopicRoomDelete, m.handleDelete)
}

func (m *Manager) handleSave(payload any) {
	req, ok := payload.(models.CreateRoomRequest)
	if !ok {
		logrus.Warn("room save event with unexpected payload type")
		return
	}

	room := models.ChatRoom{
		ID:        m.newID(),
		Name:      req.Name,
		OwnerID:   req.OwnerID,
		OwnerName: req.OwnerName,
		Status:    models.RoomStatusActive,
		Members:   []models.Member{{UserID: req.OwnerID, UserName: req.OwnerName}},
	}

	stored, err := m.rooms.Create(context.Background(), room)
	if err != nil {
		logrus.WithError(err).WithField("room_name", req.Name).Error("room create failed")
		return
	}

	logrus.WithField("room_id", stored.ID).Info("chat room saved")
	m.emitAudit("INFO", "chat room created", stored.OwnerID)
	m.notifier.SendToUser(stored.OwnerID, models.EventRoomCreated, stored)
	m.notifier.BroadcastRoom(m.lobbyID, models.EventRoomCreatedGlob, stored)
}

func (m *Manager) handleEdit(payload any) {
	req, ok := payload.(models.EditRoomRequest)
	if !ok {
		logrus.Warn("room edit event with unexpected payload type")
		return
	}

	room, err := m.rooms.Rename(context.Background(), req.RoomID, req.Name)
	if err != nil {
		m.logStoreError(err, req.RoomID, "room edit")
		return
	}

	m.notifier.BroadcastRoom(room.ID, models.EventRoomEdited, room)
	m.notifier.BroadcastRoom(m.lobbyID, models.EventRoomEditedGlob, room)
}

func (m *Manager) handleStatus(payload any) {
	req, ok := payload.(models.RoomStatusRequest)
	if !ok {
		logrus.Warn("room status event with unexpected payload type")
		return
	}
	if req.Status != models.RoomStatusActive && req.Status != models.RoomStatusClosed {
		logrus.WithField("status", req.Status).Warn("room status event with invalid status, dropped")
		return
	}

	room, err := m.rooms.SetStatus(context.Background(), req.RoomID, req.Status)
	if err != nil {
		m.logStoreError(err, req.RoomID, "room status update")
		return
	}

	m.notifier.BroadcastRoom(m.lobbyID, models.EventRoomEditedGlob, room)
}

func (m *Manager) handleMemberAdd(payload any) {
	change, ok := payload.(models.MembershipChange)
	if !ok {
		logrus.Warn("member add event with unexpected payload type")
		return
	}

	room, err := m.rooms.AddMember(context.Background(), change.RoomID, change.Member())
	if err != nil {
		m.logStoreError(err, change.RoomID, "member add")
		return
	}

	m.notifier.BroadcastRoom(m.lobbyID, models.EventRoomEditedGlob, room)
}

func (m *Manager) handleMemberLeave(payload any) {
	change, ok := payload.(models.MembershipChange)
	if !ok {
		logrus.Warn("member leave event with unexpected payload type")
		return
	}

	room, err := m.rooms.RemoveMember(context.Background(), change.RoomID, change.Member())
	if err != nil {
		m.logStoreError(err, change.RoomID, "member leave")
		return
	}

	m.notifier.BroadcastRoom(m.lobbyID, models.EventMemberLeftGlob, room)
}

func (m *Manager) handleDelete(payload any) {
	roomID, ok := payload.(string)
	if !ok {
		logrus.Warn("room delete event with unexpected payload type")
		return
	}

	if err := m.rooms.Delete(context.Background(), roomID); err != nil {
		m.logStoreError(err, roomID, "room delete")
		return
	}

	logrus.WithField("room_id", roomID).Info("chat room deleted")
	m.emitAudit("INFO", "chat room deleted", "")
}

func (m *Manager) logStoreError(err error, roomID, op string) {
	entry := logrus.WithField("room_id", roomID)
	if errors.Is(err, repositories.ErrRoomNotFound) {
		entry.Infof("%s: room not found, no-op", op)
		return
	}
	entry.WithError(err).Errorf("%s failed", op)
}

func (m *Manager) emitAudit(level, text, userID string) {
	if m.audit == nil {
		return
	}
	var uid *string
	if userID != "" {
		uid = &userID
	}
	m.audit.Emit(context.Background(), level, text, "", uid)
}
