package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"studio-chat/internal/models"
	"studio-chat/internal/observability"
)

// Subscription identifies one realtime filter: a table, optionally narrowed
// to a single room by column equality.
type Subscription struct {
	Table  string
	RoomID string
}

// Hub fans change events out to websocket subscribers. A subscriber with an
// empty RoomID receives every event on its table; a room-scoped subscriber
// only events whose row belongs to that room.
type Hub struct {
	subs   map[Subscription]map[*websocket.Conn]ConnInfo
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[Subscription]map[*websocket.Conn]ConnInfo),
		logger: logger,
	}
}

// Add registers a websocket connection under a subscription.
func (h *Hub) Add(sub Subscription, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		h.subs[sub] = make(map[*websocket.Conn]ConnInfo)
	}
	h.subs[sub][conn] = info
}

// Remove drops a websocket connection from a subscription.
func (h *Hub) Remove(sub Subscription, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subs[sub]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subs, sub)
		}
	}
}

// SubscriberCount returns the number of connections matching the table and
// room, including unfiltered table subscribers.
func (h *Hub) SubscriberCount(table, roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := len(h.subs[Subscription{Table: table}])
	if roomID != "" {
		count += len(h.subs[Subscription{Table: table, RoomID: roomID}])
	}
	return count
}

// Broadcast delivers a change event to every matching subscriber. roomID is
// the room the changed row belongs to; pass "" for room table events.
func (h *Hub) Broadcast(event models.ChangeEvent, roomID string) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal change event")
		return
	}

	for _, t := range h.collect(event.Table, roomID) {
		if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn().Err(err).Str("conn_id", t.info.ConnID).Msg("websocket write error")
			t.conn.Close()
			h.Remove(t.sub, t.conn)
			observability.IncWSEvent(event.Table, "ws_error")
		}
	}
}

type target struct {
	sub  Subscription
	conn *websocket.Conn
	info ConnInfo
}

func (h *Hub) collect(table, roomID string) []target {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets []target
	keys := []Subscription{{Table: table}}
	if roomID != "" {
		keys = append(keys, Subscription{Table: table, RoomID: roomID})
	}
	for _, key := range keys {
		for conn, info := range h.subs[key] {
			targets = append(targets, target{sub: key, conn: conn, info: info})
		}
	}
	return targets
}
