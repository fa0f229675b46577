package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"studio-chat/internal/models"
)

// SessionState is the per-selected-room state machine. Send and delete are
// only permitted in SessionReady; selecting another room always restarts
// through SessionLoading.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionLoading
	SessionReady
	SessionError
)

// Session owns the live transcript of the currently selected room. The
// transcript is discarded, not merged, when the selection changes.
type Session struct {
	backend   Backend
	blobs     BlobStore
	uploader  *Uploader
	directory *Directory
	identity  Identity
	logger    zerolog.Logger

	mu       sync.Mutex
	state    SessionState
	roomID   string
	messages []models.Message
	epoch    int
	unsub    func()
}

// NewSession constructs a Session. directory may be nil when the session
// runs without a room list (e.g. a deep-linked room view).
func NewSession(backend Backend, blobs BlobStore, uploader *Uploader, directory *Directory, identity Identity, logger zerolog.Logger) *Session {
	return &Session{
		backend:   backend,
		blobs:     blobs,
		uploader:  uploader,
		directory: directory,
		identity:  identity,
		logger:    logger,
	}
}

// State returns the session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the selected room id, or "".
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Messages returns a snapshot of the transcript in createdAt order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Select switches the active room: the previous transcript and subscription
// are dropped, the new room's history is fetched, unread messages are
// marked read fire-and-forget, and a room-scoped subscription is opened.
// A load still in flight for a previously selected room is invalidated and
// its result discarded.
func (s *Session) Select(ctx context.Context, roomID string) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	unsub := s.unsub
	s.unsub = nil
	s.state = SessionLoading
	s.roomID = roomID
	s.messages = nil
	s.mu.Unlock()

	// Tear the previous room's subscription down before anything else so
	// stale-room events cannot reach the new session.
	if unsub != nil {
		unsub()
	}
	if s.directory != nil {
		s.directory.SetActiveRoom(roomID)
	}

	msgs, err := s.backend.ListMessages(ctx, roomID)

	s.mu.Lock()
	if s.epoch != epoch {
		// The user switched again while this load was in flight.
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.state = SessionError
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("room_id", roomID).Msg("transcript load failed")
		return err
	}
	s.messages = msgs
	s.mu.Unlock()

	go func() {
		if err := s.backend.MarkRoomRead(context.Background(), roomID); err != nil {
			s.logger.Warn().Err(err).Str("room_id", roomID).Msg("mark read failed")
		}
	}()

	unsubscribe, err := s.backend.Subscribe(models.TableMessages, roomID, func(ev models.ChangeEvent) {
		s.onEvent(epoch, ev)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		if unsubscribe != nil {
			unsubscribe()
		}
		return nil
	}
	if err != nil {
		s.state = SessionError
		s.logger.Error().Err(err).Str("room_id", roomID).Msg("room subscription failed")
		return err
	}
	s.unsub = unsubscribe
	s.state = SessionReady
	return nil
}

// Close leaves the current room and tears the subscription down.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	unsub := s.unsub
	s.unsub = nil
	roomID := s.roomID
	s.roomID = ""
	s.messages = nil
	s.state = SessionIdle
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if s.directory != nil && roomID != "" {
		s.directory.ClearActiveRoom(roomID)
	}
}

// SendText persists a text message. The composer clears its input before
// calling this and restores it if an error comes back.
func (s *Session) SendText(ctx context.Context, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.state != SessionReady {
		s.mu.Unlock()
		return models.Message{}, ErrSessionNotReady
	}
	roomID := s.roomID
	epoch := s.epoch
	s.mu.Unlock()

	msg, err := s.backend.InsertMessage(ctx, Outgoing{
		RoomID:      roomID,
		MessageType: models.TypeText,
		Content:     content,
		IsRead:      true,
	})
	if err != nil {
		return models.Message{}, err
	}

	s.appendIfAbsent(epoch, msg)
	return msg, nil
}

// SendMedia uploads the blob first and only inserts the message row once a
// durable URL exists, so a failed upload leaves no ghost message behind.
func (s *Session) SendMedia(ctx context.Context, blob Blob, mediaType string) (models.Message, error) {
	s.mu.Lock()
	if s.state != SessionReady {
		s.mu.Unlock()
		return models.Message{}, ErrSessionNotReady
	}
	roomID := s.roomID
	epoch := s.epoch
	s.mu.Unlock()

	url, err := s.uploader.Upload(ctx, roomID, blob, mediaType)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.backend.InsertMessage(ctx, Outgoing{
		RoomID:          roomID,
		MessageType:     mediaType,
		Content:         blob.Name,
		MediaURL:        &url,
		DurationSeconds: blob.DurationSeconds,
		IsRead:          true,
	})
	if err != nil {
		return models.Message{}, err
	}

	s.appendIfAbsent(epoch, msg)
	return msg, nil
}

// DeleteMessage removes the message from the transcript immediately, then
// deletes the attached blob (if any) and the row. Failures after the
// optimistic removal are logged without reverting the transcript; putting a
// removed message back in an unknown position is worse than a rare stale
// delete.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	s.mu.Lock()
	if s.state != SessionReady {
		s.mu.Unlock()
		return ErrSessionNotReady
	}
	roomID := s.roomID
	var removed *models.Message
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			m := s.messages[i]
			removed = &m
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if removed != nil && removed.MediaURL != nil {
		if path, ok := s.blobs.PathFromURL(*removed.MediaURL); ok {
			if err := s.blobs.Delete(ctx, path); err != nil {
				s.logger.Warn().Err(err).Str("message_id", messageID).Msg("media delete failed")
			}
		}
	}

	if err := s.backend.DeleteMessage(ctx, roomID, messageID); err != nil {
		s.logger.Error().Err(err).Str("message_id", messageID).Msg("message delete failed")
		return err
	}
	return nil
}

// onEvent applies a realtime change to the transcript. Events carrying an
// epoch older than the current selection are discarded.
func (s *Session) onEvent(epoch int, ev models.ChangeEvent) {
	switch ev.Event {
	case models.EventInsert:
		var msg models.Message
		if err := json.Unmarshal(ev.Row, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("bad message event payload")
			return
		}
		s.appendIfAbsent(epoch, msg)
	case models.EventDelete:
		var row models.DeletedRow
		if err := json.Unmarshal(ev.Row, &row); err != nil {
			s.logger.Warn().Err(err).Msg("bad delete event payload")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch {
			return
		}
		for i := range s.messages {
			if s.messages[i].ID == row.ID {
				s.messages = append(s.messages[:i], s.messages[i+1:]...)
				return
			}
		}
	}
}

// appendIfAbsent appends a message unless one with the same id is already
// present. The sender's optimistic append and the realtime echo of the same
// row both funnel through here, so dual delivery collapses to one entry.
func (s *Session) appendIfAbsent(epoch int, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || msg.ChatRoomID != s.roomID {
		return
	}
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			return
		}
	}
	s.messages = append(s.messages, msg)
}
