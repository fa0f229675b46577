package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studio-chat/internal/middleware"
	"studio-chat/internal/models"
	"studio-chat/internal/observability"
	"studio-chat/internal/repositories"
	"studio-chat/internal/telemetry"
	"studio-chat/internal/ws"
)

// MessageHandler manages transcript endpoints.
type MessageHandler struct {
	roomRepo     repositories.RoomRepository
	messageRepo  repositories.MessageRepository
	hub          *ws.Hub
	audit        *telemetry.AuditEmitter
	recentWindow int
}

// NewMessageHandler builds a MessageHandler. recentWindow caps the batched
// last-message query used by the directory.
func NewMessageHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter, recentWindow int) *MessageHandler {
	return &MessageHandler{
		roomRepo:     roomRepo,
		messageRepo:  messageRepo,
		hub:          hub,
		audit:        audit,
		recentWindow: recentWindow,
	}
}

func (h *MessageHandler) authorize(c *gin.Context, roomID string) bool {
	actor := middleware.ActorFromContext(c)
	scope := repositories.Scope{ActorID: actor.ID, Admin: actor.IsAdmin()}
	allowed, err := h.roomRepo.CanAccess(c.Request.Context(), roomID, scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify access"})
		return false
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for room"})
		return false
	}
	return true
}

// ListMessages returns the room transcript ordered oldest first.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if !h.authorize(c, roomID) {
		return
	}

	msgs, err := h.messageRepo.ListRoomMessages(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// RecentMessages returns a bounded window of the newest messages across the
// requested rooms, newest first. The directory reduces this to one last
// message per room instead of querying per room.
func (h *MessageHandler) RecentMessages(c *gin.Context) {
	ids := strings.Split(c.Query("room_ids"), ",")
	roomIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			roomIDs = append(roomIDs, id)
		}
	}
	if len(roomIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{"messages": []models.Message{}})
		return
	}
	for _, id := range roomIDs {
		if !h.authorize(c, id) {
			return
		}
	}

	limit := h.recentWindow
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	msgs, err := h.messageRepo.RecentMessages(c.Request.Context(), roomIDs, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message, bumps the room and broadcasts the change to
// room and directory subscribers.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	roomID := c.Param("room_id")
	if !h.authorize(c, roomID) {
		return
	}

	var req struct {
		ID              string  `json:"id"`
		MessageType     string  `json:"message_type" binding:"required"`
		Content         string  `json:"content"`
		MediaURL        *string `json:"media_url"`
		DurationSeconds *int    `json:"duration_seconds"`
		IsRead          bool    `json:"is_read"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.MessageType {
	case models.TypeText, models.TypeSystem:
		if strings.TrimSpace(req.Content) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
			return
		}
	case models.TypeImage, models.TypeAudio:
		if req.MediaURL == nil || *req.MediaURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "media_url is required"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}

	actor := middleware.ActorFromContext(c)
	var senderID *string
	if req.MessageType != models.TypeSystem {
		senderID = &actor.ID
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), repositories.NewMessage{
		ID:              req.ID,
		ChatRoomID:      roomID,
		SenderID:        senderID,
		MessageType:     req.MessageType,
		Content:         req.Content,
		MediaURL:        req.MediaURL,
		DurationSeconds: req.DurationSeconds,
		IsRead:          req.IsRead,
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "message store failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	room, err := h.roomRepo.TouchRoom(c.Request.Context(), roomID)
	if err == nil {
		h.hub.Broadcast(models.RoomChange(models.EventUpdate, room), "")
	}

	h.hub.Broadcast(models.MessageChange(models.EventInsert, msg), roomID)
	observability.IncMessageSent(msg.MessageType)
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flags every message in the room not sent by the caller as read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	roomID := c.Param("room_id")
	if !h.authorize(c, roomID) {
		return
	}

	actor := middleware.ActorFromContext(c)
	updated, err := h.messageRepo.MarkRoomRead(c.Request.Context(), roomID, actor.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// DeleteMessage removes a message row and broadcasts the deletion. Blob
// cleanup is the caller's responsibility (the client deletes the media
// object before the row).
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	roomID := c.Param("room_id")
	messageID := c.Param("message_id")
	if !h.authorize(c, roomID) {
		return
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.ChatRoomID != roomID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to room"})
		return
	}

	actor := middleware.ActorFromContext(c)
	if !actor.IsAdmin() && !msg.SentBy(actor.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may delete"})
		return
	}

	if err := h.messageRepo.DeleteMessage(c.Request.Context(), messageID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	h.hub.Broadcast(models.MessageDeleted(messageID, roomID), roomID)
	h.emitAudit(c, "INFO", "message deleted")
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
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
