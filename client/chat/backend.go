// Package chat implements the client-side chat core: the room directory,
// the active room session, the composer and the attachment pipeline. It
// talks to the hosted backend through the narrow Backend, BlobStore and
// Identity interfaces so views and tests can swap the transport.
package chat

import (
	"context"
	"errors"
	"io"

	"studio-chat/internal/auth"
	"studio-chat/internal/models"
)

var (
	ErrEmptyMessage    = errors.New("message content is empty")
	ErrSessionNotReady = errors.New("room session is not ready")
	ErrNothingToSend   = errors.New("nothing staged to send")
	ErrRecorderBusy    = errors.New("recorder already running")
	ErrNoIdentity      = errors.New("no authenticated identity")
)

// Outgoing carries the caller-supplied fields of a message insert. ID is a
// client-side temporary id; the backend assigns the durable one when ID is
// empty.
type Outgoing struct {
	ID              string  `json:"id,omitempty"`
	RoomID          string  `json:"-"`
	MessageType     string  `json:"message_type"`
	Content         string  `json:"content"`
	MediaURL        *string `json:"media_url,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	IsRead          bool    `json:"is_read"`
}

// EventHandler receives realtime change events for a subscription.
type EventHandler func(models.ChangeEvent)

// Backend is the data backend consumed by the chat core: row CRUD over the
// chat tables plus a push subscription primitive filtered by table and
// optionally by room id.
type Backend interface {
	ListRooms(ctx context.Context) ([]models.RoomWithRequest, error)
	RecentMessages(ctx context.Context, roomIDs []string, limit int) ([]models.Message, error)
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, out Outgoing) (models.Message, error)
	DeleteMessage(ctx context.Context, roomID, messageID string) error
	MarkRoomRead(ctx context.Context, roomID string) error
	// Subscribe opens a realtime subscription. roomID narrows message
	// subscriptions to one room; pass "" for all rows of the table. The
	// returned func tears the subscription down synchronously.
	Subscribe(table, roomID string, handler EventHandler) (func(), error)
}

// BlobStore uploads media blobs and returns durable public URLs.
type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
	PathFromURL(url string) (string, bool)
}

// Identity supplies the current actor and signals login/logout.
type Identity interface {
	Current() (auth.Actor, bool)
	// OnChange registers a listener invoked on login/logout; the returned
	// func unregisters it.
	OnChange(fn func(auth.Actor, bool)) func()
}
