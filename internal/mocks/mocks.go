package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"studio-chat/internal/models"
	"studio-chat/internal/repositories"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, serviceRequestID string) (models.ChatRoom, error) {
	args := m.Called(ctx, serviceRequestID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListActiveRooms(ctx context.Context, scope repositories.Scope) ([]models.RoomWithRequest, error) {
	args := m.Called(ctx, scope)
	var rooms []models.RoomWithRequest
	if val := args.Get(0); val != nil {
		rooms = val.([]models.RoomWithRequest)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) CanAccess(ctx context.Context, roomID string, scope repositories.Scope) (bool, error) {
	args := m.Called(ctx, roomID, scope)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) TouchRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) DeactivateRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, in repositories.NewMessage) (models.Message, error) {
	args := m.Called(ctx, in)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) RecentMessages(ctx context.Context, roomIDs []string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomIDs, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkRoomRead(ctx context.Context, roomID string, readerID string) (int64, error) {
	args := m.Called(ctx, roomID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

type RequestRepositoryMock struct {
	mock.Mock
}

func (m *RequestRepositoryMock) CreateRequest(ctx context.Context, code, serviceType, requesterID, requesterName string) (models.ServiceRequest, error) {
	args := m.Called(ctx, code, serviceType, requesterID, requesterName)
	var request models.ServiceRequest
	if val := args.Get(0); val != nil {
		request = val.(models.ServiceRequest)
	}
	return request, args.Error(1)
}

func (m *RequestRepositoryMock) GetRequest(ctx context.Context, requestID string) (models.ServiceRequest, error) {
	args := m.Called(ctx, requestID)
	var request models.ServiceRequest
	if val := args.Get(0); val != nil {
		request = val.(models.ServiceRequest)
	}
	return request, args.Error(1)
}

var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.RequestRepository = (*RequestRepositoryMock)(nil)
