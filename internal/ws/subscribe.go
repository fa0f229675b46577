package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"studio-chat/internal/auth"
	"studio-chat/internal/models"
	"studio-chat/internal/observability"
	"studio-chat/internal/rabbitmq"
	"studio-chat/internal/repositories"
)

// SubscribeHandler upgrades clients onto the realtime change feed. The
// query contract is table=messages|chat_rooms with an optional room_id
// equality filter.
type SubscribeHandler struct {
	hub       *Hub
	roomRepo  repositories.RoomRepository
	verifier  *auth.Verifier
	publisher rabbitmq.Publisher
}

// NewSubscribeHandler constructs a SubscribeHandler.
func NewSubscribeHandler(hub *Hub, roomRepo repositories.RoomRepository, verifier *auth.Verifier, publisher rabbitmq.Publisher) *SubscribeHandler {
	return &SubscribeHandler{hub: hub, roomRepo: roomRepo, verifier: verifier, publisher: publisher}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle validates the subscription, upgrades the connection and keeps it
// registered until the peer goes away.
func (h *SubscribeHandler) Handle(c *gin.Context) {
	table := c.Query("table")
	if table != models.TableMessages && table != models.TableRooms {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown table"})
		return
	}
	roomID := c.Query("room_id")
	if roomID != "" && table != models.TableMessages {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room filter only applies to messages"})
		return
	}

	ctx, span := otel.Tracer("studio-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	actor, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if roomID != "" {
		scope := repositories.Scope{ActorID: actor.ID, Admin: actor.IsAdmin()}
		allowed, err := h.roomRepo.CanAccess(c.Request.Context(), roomID, scope)
		if err != nil || !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for room"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sub := Subscription{Table: table, RoomID: roomID}
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		ActorID:     actor.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Add(sub, conn, info)

	observability.IncWSActive(table)
	observability.IncWSEvent(table, "ws_connect")
	h.publishLifecycle(ctx, sub, info, "ws_connect", "")

	go h.drain(sub, conn, info)
}

// drain consumes (and discards) client frames so pings are answered and the
// close handshake is observed, then tears the registration down.
func (h *SubscribeHandler) drain(sub Subscription, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.Remove(sub, conn)
		conn.Close()
		observability.DecWSActive(sub.Table)
		observability.IncWSEvent(sub.Table, "ws_disconnect")
		h.publishLifecycle(context.Background(), sub, info, "ws_disconnect", closeReason)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(sub.Table, "ws_error")
			}
			return
		}
	}
}

func (h *SubscribeHandler) publishLifecycle(ctx context.Context, sub Subscription, info ConnInfo, event, reason string) {
	if h.publisher == nil {
		return
	}
	_ = h.publisher.Publish(ctx, "ws_events."+sub.Table, map[string]any{
		"event_type": "ws_events",
		"event_name": event,
		"payload": map[string]any{
			"ws": map[string]any{
				"table":       sub.Table,
				"room_id":     sub.RoomID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]any{
				"actor_id":  info.ActorID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}
