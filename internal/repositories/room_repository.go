package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studio-chat/internal/models"
)

var ErrRoomNotFound = errors.New("chat room not found")

// RoomRepository abstracts chat room persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, serviceRequestID string) (models.ChatRoom, error)
	GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error)
	ListActiveRooms(ctx context.Context, scope Scope) ([]models.RoomWithRequest, error)
	CanAccess(ctx context.Context, roomID string, scope Scope) (bool, error)
	TouchRoom(ctx context.Context, roomID string) (models.ChatRoom, error)
	DeactivateRoom(ctx context.Context, roomID string) error
}

// Scope narrows room visibility to the acting user. Admins see every room;
// customers only rooms belonging to their own service requests.
type Scope struct {
	ActorID string
	Admin   bool
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom opens a chat room for a service request.
func (r *RoomRepo) CreateRoom(ctx context.Context, serviceRequestID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.QueryRowxContext(ctx, `INSERT INTO chat_rooms (id, service_request_id)
        VALUES ($1, $2)
        RETURNING id, service_request_id, is_active, created_at, updated_at`,
		uuid.NewString(), serviceRequestID).StructScan(&room)
	return room, err
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT id, service_request_id, is_active, created_at, updated_at
        FROM chat_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// ListActiveRooms returns active rooms visible to the scope joined with
// their request summary, most recently updated first.
func (r *RoomRepo) ListActiveRooms(ctx context.Context, scope Scope) ([]models.RoomWithRequest, error) {
	query := `SELECT c.id, c.service_request_id, c.is_active, c.created_at, c.updated_at,
            sr.code AS request_code, sr.status AS request_status,
            sr.service_type, sr.requester_id, sr.requester_name
        FROM chat_rooms c
        JOIN service_requests sr ON sr.id = c.service_request_id
        WHERE c.is_active = TRUE AND ($1 OR sr.requester_id = $2)
        ORDER BY c.updated_at DESC`
	var rooms []models.RoomWithRequest
	err := r.db.SelectContext(ctx, &rooms, query, scope.Admin, scope.ActorID)
	return rooms, err
}

// CanAccess reports whether the scope may read and write the room.
func (r *RoomRepo) CanAccess(ctx context.Context, roomID string, scope Scope) (bool, error) {
	if scope.Admin {
		var exists bool
		err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_rooms WHERE id=$1)`, roomID)
		return exists, err
	}
	var allowed bool
	err := r.db.GetContext(ctx, &allowed, `SELECT EXISTS(
        SELECT 1 FROM chat_rooms c
        JOIN service_requests sr ON sr.id = c.service_request_id
        WHERE c.id=$1 AND sr.requester_id=$2)`, roomID, scope.ActorID)
	return allowed, err
}

// TouchRoom bumps updated_at so the room surfaces at the top of the directory.
func (r *RoomRepo) TouchRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.QueryRowxContext(ctx, `UPDATE chat_rooms SET updated_at = NOW()
        WHERE id=$1
        RETURNING id, service_request_id, is_active, created_at, updated_at`, roomID).StructScan(&room)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// DeactivateRoom archives a room; it no longer appears in the directory.
func (r *RoomRepo) DeactivateRoom(ctx context.Context, roomID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_rooms SET is_active = FALSE WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}
