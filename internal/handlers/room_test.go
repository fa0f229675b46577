package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studio-chat/internal/middleware"
	"studio-chat/internal/mocks"
	"studio-chat/internal/models"
	"studio-chat/internal/repositories"
	"studio-chat/internal/ws"
)

func setupRoomRouter(handler *RoomHandler, actorID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxActorID, actorID)
		c.Set(middleware.CtxActorRole, role)
		c.Next()
	})
	r.GET("/rooms", handler.ListRooms)
	r.POST("/rooms", handler.CreateRoom)
	r.DELETE("/rooms/:room_id", handler.DeactivateRoom)
	return r
}

func newRoomHandler(roomRepo *mocks.RoomRepositoryMock, requestRepo *mocks.RequestRepositoryMock) *RoomHandler {
	return NewRoomHandler(roomRepo, requestRepo, ws.NewHub(zerolog.Nop()), nil)
}

func TestListRoomsScopedToActor(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(newRoomHandler(roomRepo, new(mocks.RequestRepositoryMock)), "u1", "customer")

	roomRepo.On("ListActiveRooms", mock.Anything, repositories.Scope{ActorID: "u1"}).
		Return([]models.RoomWithRequest{{ChatRoom: models.ChatRoom{ID: "r1", IsActive: true}}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Rooms []models.RoomWithRequest `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Rooms, 1)
	assert.Equal(t, "r1", resp.Rooms[0].ID)
	roomRepo.AssertExpectations(t)
}

func TestListRoomsAdminSeesAll(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(newRoomHandler(roomRepo, new(mocks.RequestRepositoryMock)), "a1", "admin")

	roomRepo.On("ListActiveRooms", mock.Anything, repositories.Scope{ActorID: "a1", Admin: true}).
		Return([]models.RoomWithRequest{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	requestRepo := new(mocks.RequestRepositoryMock)
	router := setupRoomRouter(newRoomHandler(roomRepo, requestRepo), "a1", "admin")

	requestRepo.On("GetRequest", mock.Anything, "sr1").Return(models.ServiceRequest{ID: "sr1"}, nil).Once()
	roomRepo.On("CreateRoom", mock.Anything, "sr1").Return(models.ChatRoom{ID: "r1", ServiceRequestID: "sr1", IsActive: true}, nil).Once()

	body := bytes.NewBufferString(`{"service_request_id":"sr1"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var room models.ChatRoom
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&room))
	assert.Equal(t, "r1", room.ID)
	roomRepo.AssertExpectations(t)
	requestRepo.AssertExpectations(t)
}

func TestCreateRoomUnknownRequest(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	requestRepo := new(mocks.RequestRepositoryMock)
	router := setupRoomRouter(newRoomHandler(roomRepo, requestRepo), "a1", "admin")

	requestRepo.On("GetRequest", mock.Anything, "missing").
		Return(models.ServiceRequest{}, repositories.ErrRequestNotFound).Once()

	body := bytes.NewBufferString(`{"service_request_id":"missing"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	roomRepo.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything)
}

func TestDeactivateRoomSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(newRoomHandler(roomRepo, new(mocks.RequestRepositoryMock)), "a1", "admin")

	roomRepo.On("GetRoom", mock.Anything, "r1").Return(models.ChatRoom{ID: "r1", IsActive: true}, nil).Once()
	roomRepo.On("DeactivateRoom", mock.Anything, "r1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/rooms/r1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestDeactivateRoomNotFound(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(newRoomHandler(roomRepo, new(mocks.RequestRepositoryMock)), "a1", "admin")

	roomRepo.On("GetRoom", mock.Anything, "missing").
		Return(models.ChatRoom{}, repositories.ErrRoomNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/rooms/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	roomRepo.AssertNotCalled(t, "DeactivateRoom", mock.Anything, mock.Anything)
}
