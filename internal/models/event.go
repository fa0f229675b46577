package models

import "encoding/json"

// Change event types delivered over realtime subscriptions.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Table names subscriptions can filter on.
const (
	TableRooms    = "chat_rooms"
	TableMessages = "messages"
)

// ChangeEvent is pushed to realtime subscribers whenever a row in one of the
// chat tables changes. Row holds the JSON encoding of the affected row; for
// DELETE events only the id (and room id for messages) is guaranteed.
type ChangeEvent struct {
	Event string          `json:"event"`
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

// DeletedRow is the minimal payload carried by message DELETE events.
type DeletedRow struct {
	ID         string `json:"id"`
	ChatRoomID string `json:"chat_room_id,omitempty"`
}

// MessageChange builds a ChangeEvent for a message row.
func MessageChange(event string, msg Message) ChangeEvent {
	row, _ := json.Marshal(msg)
	return ChangeEvent{Event: event, Table: TableMessages, Row: row}
}

// MessageDeleted builds a DELETE ChangeEvent carrying just the ids.
func MessageDeleted(messageID, roomID string) ChangeEvent {
	row, _ := json.Marshal(DeletedRow{ID: messageID, ChatRoomID: roomID})
	return ChangeEvent{Event: EventDelete, Table: TableMessages, Row: row}
}

// RoomChange builds a ChangeEvent for a chat room row.
func RoomChange(event string, room ChatRoom) ChangeEvent {
	row, _ := json.Marshal(room)
	return ChangeEvent{Event: event, Table: TableRooms, Row: row}
}
