package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studio-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// NewMessage carries the caller-supplied fields of a message insert. ID is
// optional; the repository assigns one when it is empty.
type NewMessage struct {
	ID              string
	ChatRoomID      string
	SenderID        *string
	MessageType     string
	Content         string
	MediaURL        *string
	DurationSeconds *int
	IsRead          bool
}

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, in NewMessage) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error)
	RecentMessages(ctx context.Context, roomIDs []string, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	MarkRoomRead(ctx context.Context, roomID string, readerID string) (int64, error)
}

const messageColumns = `id, chat_room_id, sender_id, message_type, content, media_url, duration_seconds, is_read, created_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and returns the persisted row.
func (r *MessageRepo) CreateMessage(ctx context.Context, in NewMessage) (models.Message, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages
        (id, chat_room_id, sender_id, message_type, content, media_url, duration_seconds, is_read)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+messageColumns,
		id, in.ChatRoomID, in.SenderID, in.MessageType, in.Content, in.MediaURL, in.DurationSeconds, in.IsRead).
		StructScan(&msg)
	return msg, err
}

// ListRoomMessages returns the room transcript ordered oldest first.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+`
        FROM messages WHERE chat_room_id=$1 ORDER BY created_at ASC`, roomID)
	return msgs, err
}

// RecentMessages returns the newest messages across the given rooms, newest
// first, capped at limit. The directory reduces this window client-side to a
// per-room last message instead of issuing one query per room.
func (r *MessageRepo) RecentMessages(ctx context.Context, roomIDs []string, limit int) ([]models.Message, error) {
	if len(roomIDs) == 0 {
		return []models.Message{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+messageColumns+`
        FROM messages WHERE chat_room_id IN (?)
        ORDER BY created_at DESC LIMIT ?`, roomIDs, limit)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)
	var msgs []models.Message
	err = r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// DeleteMessage removes a message row.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkRoomRead marks every unread message in the room that the reader did
// not send. Returns the number of rows updated.
func (r *MessageRepo) MarkRoomRead(ctx context.Context, roomID string, readerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE
        WHERE chat_room_id=$1 AND is_read = FALSE AND (sender_id IS NULL OR sender_id <> $2)`,
		roomID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
