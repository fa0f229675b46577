package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studio-chat/internal/middleware"
	"studio-chat/internal/models"
	"studio-chat/internal/repositories"
	"studio-chat/internal/telemetry"
	"studio-chat/internal/ws"
)

// RequestHandler covers the intake flow: submitting a service request also
// opens its chat room.
type RequestHandler struct {
	requestRepo repositories.RequestRepository
	roomRepo    repositories.RoomRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewRequestHandler builds a RequestHandler.
func NewRequestHandler(requestRepo repositories.RequestRepository, roomRepo repositories.RoomRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *RequestHandler {
	return &RequestHandler{requestRepo: requestRepo, roomRepo: roomRepo, hub: hub, audit: audit}
}

// CreateRequest stores a service request and opens its chat room.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req struct {
		ServiceType   string `json:"service_type" binding:"required"`
		RequesterName string `json:"requester_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.ActorFromContext(c)
	code := fmt.Sprintf("SR-%d", time.Now().UnixMilli())

	request, err := h.requestRepo.CreateRequest(c.Request.Context(), code, req.ServiceType, actor.ID, req.RequesterName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create request"})
		return
	}

	room, err := h.roomRepo.CreateRoom(c.Request.Context(), request.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open chat room"})
		return
	}

	h.hub.Broadcast(models.RoomChange(models.EventInsert, room), "")
	if h.audit != nil {
		h.audit.Emit(c.Request.Context(), "INFO", "service request submitted", c.GetHeader("X-Request-Id"), &actor.ID)
	}
	c.JSON(http.StatusCreated, gin.H{"request": request, "room": room})
}
