package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studio-chat/internal/middleware"
	"studio-chat/internal/models"
	"studio-chat/internal/repositories"
	"studio-chat/internal/telemetry"
	"studio-chat/internal/ws"
)

// RoomHandler manages chat room endpoints.
type RoomHandler struct {
	roomRepo    repositories.RoomRepository
	requestRepo repositories.RequestRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, requestRepo repositories.RequestRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{
		roomRepo:    roomRepo,
		requestRepo: requestRepo,
		hub:         hub,
		audit:       audit,
	}
}

// ListRooms returns the active rooms visible to the caller, most recently
// updated first, each joined with its request summary.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	scope := repositories.Scope{ActorID: actor.ID, Admin: actor.IsAdmin()}

	rooms, err := h.roomRepo.ListActiveRooms(c.Request.Context(), scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	if rooms == nil {
		rooms = []models.RoomWithRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom opens a chat room for a service request (admin only).
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		ServiceRequestID string `json:"service_request_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.requestRepo.GetRequest(c.Request.Context(), req.ServiceRequestID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRequestNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "service request not found"})
		return
	}

	room, err := h.roomRepo.CreateRoom(c.Request.Context(), req.ServiceRequestID)
	if err != nil {
		h.emitAudit(c, "ERROR", "room create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	h.hub.Broadcast(models.RoomChange(models.EventInsert, room), "")
	h.emitAudit(c, "INFO", "chat room created")
	c.JSON(http.StatusCreated, room)
}

// DeactivateRoom archives a room (admin only); the directory drops it.
func (h *RoomHandler) DeactivateRoom(c *gin.Context) {
	roomID := c.Param("room_id")

	room, err := h.roomRepo.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}

	if err := h.roomRepo.DeactivateRoom(c.Request.Context(), roomID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not archive room"})
		return
	}

	room.IsActive = false
	h.hub.Broadcast(models.RoomChange(models.EventUpdate, room), "")
	h.emitAudit(c, "INFO", "chat room archived")
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	actorID := c.GetString(middleware.CtxActorID)
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	h.audit.Emit(c.Request.Context(), level, text, c.GetHeader("X-Request-Id"), actor)
}
