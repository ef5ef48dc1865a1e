package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chatroom-service/internal/auth"
	"chatroom-service/internal/models"
	"chatroom-service/internal/presence"
	"chatroom-service/internal/repositories"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) Create(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	args := m.Called(ctx, room)
	var stored models.ChatRoom
	if val := args.Get(0); val != nil {
		stored = val.(models.ChatRoom)
	}
	return stored, args.Error(1)
}

func (m *RoomRepositoryMock) Get(ctx context.Context, roomID string) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) List(ctx context.Context) ([]models.ChatRoom, error) {
	args := m.Called(ctx)
	var rooms []models.ChatRoom
	if val := args.Get(0); val != nil {
		rooms = val.([]models.ChatRoom)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	args := m.Called(ctx, userID)
	var rooms []models.ChatRoom
	if val := args.Get(0); val != nil {
		rooms = val.([]models.ChatRoom)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) Rename(ctx context.Context, roomID, name string) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID, name)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) SetStatus(ctx context.Context, roomID, status string) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID, status)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) AddMember(ctx context.Context, roomID string, member models.Member) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID, member)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) RemoveMember(ctx context.Context, roomID string, member models.Member) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID, member)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) Delete(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Insert(ctx context.Context, msg models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListByRoom(ctx context.Context, roomID string, skip, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomID, skip, limit)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

type PresenceCacheMock struct {
	mock.Mock
}

func (m *PresenceCacheMock) Set(ctx context.Context, userID, userName string) error {
	args := m.Called(ctx, userID, userName)
	return args.Error(0)
}

func (m *PresenceCacheMock) All(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	var users map[string]string
	if val := args.Get(0); val != nil {
		users = val.(map[string]string)
	}
	return users, args.Error(1)
}

func (m *PresenceCacheMock) Remove(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type TokenValidatorMock struct {
	mock.Mock
}

func (m *TokenValidatorMock) Validate(token string) (auth.Identity, error) {
	args := m.Called(token)
	var identity auth.Identity
	if val := args.Get(0); val != nil {
		identity = val.(auth.Identity)
	}
	return identity, args.Error(1)
}

var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ presence.Cache = (*PresenceCacheMock)(nil)
var _ auth.TokenValidator = (*TokenValidatorMock)(nil)
