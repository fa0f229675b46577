package models

import "time"

// Message types stored in the message_type column.
const (
	TypeText   = "TEXT"
	TypeImage  = "IMAGE"
	TypeAudio  = "AUDIO"
	TypeSystem = "SYSTEM"
)

// Message is a single chat message inside a room. SenderID is nil for
// SYSTEM messages. MediaURL is set for IMAGE and AUDIO messages after the
// attachment upload completed; DurationSeconds only for AUDIO.
type Message struct {
	ID              string    `db:"id" json:"id"`
	ChatRoomID      string    `db:"chat_room_id" json:"chat_room_id"`
	SenderID        *string   `db:"sender_id" json:"sender_id"`
	MessageType     string    `db:"message_type" json:"message_type"`
	Content         string    `db:"content" json:"content"`
	MediaURL        *string   `db:"media_url" json:"media_url"`
	DurationSeconds *int      `db:"duration_seconds" json:"duration_seconds"`
	IsRead          bool      `db:"is_read" json:"is_read"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// SentBy reports whether the message was sent by the given actor.
func (m Message) SentBy(actorID string) bool {
	return m.SenderID != nil && *m.SenderID == actorID
}
