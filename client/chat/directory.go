package chat

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"studio-chat/internal/models"
)

// DirectoryState is the directory's load state. Load is a no-op while a
// load is already in flight.
type DirectoryState int

const (
	DirectoryIdle DirectoryState = iota
	DirectoryLoading
)

// DefaultRecentWindow bounds the batched last-message query. A room whose
// newest message falls outside the window shows no preview until the next
// realtime insert; this approximation is accepted over one query per room.
const DefaultRecentWindow = 200

// RoomEntry is one directory row: the room, its request summary, the last
// message preview and the locally accumulated unread counter.
type RoomEntry struct {
	models.RoomWithRequest
	LastMessage *models.Message
	UnreadCount int
}

// Directory loads and maintains the list of chat rooms visible to the
// current actor. After the initial load it is patched incrementally by
// realtime events rather than refetched.
type Directory struct {
	backend Backend
	logger  zerolog.Logger
	window  int

	mu         sync.Mutex
	state      DirectoryState
	rooms      map[string]*RoomEntry
	loaded     bool
	activeRoom string
	actorID    string

	unsubRooms    func()
	unsubMessages func()
}

// DirectoryOption customises a Directory.
type DirectoryOption func(*Directory)

// WithRecentWindow overrides the batched last-message window size.
func WithRecentWindow(n int) DirectoryOption {
	return func(d *Directory) {
		if n > 0 {
			d.window = n
		}
	}
}

// NewDirectory constructs a Directory for the given actor.
func NewDirectory(backend Backend, identity Identity, logger zerolog.Logger, opts ...DirectoryOption) *Directory {
	d := &Directory{
		backend: backend,
		logger:  logger,
		window:  DefaultRecentWindow,
		rooms:   make(map[string]*RoomEntry),
	}
	if actor, ok := identity.Current(); ok {
		d.actorID = actor.ID
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current load state.
func (d *Directory) State() DirectoryState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Loaded reports whether an initial load has completed.
func (d *Directory) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Rooms returns a snapshot of the directory, most recently updated first.
func (d *Directory) Rooms() []RoomEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]RoomEntry, 0, len(d.rooms))
	for _, entry := range d.rooms {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Room returns the entry for a room id.
func (d *Directory) Room(roomID string) (RoomEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.rooms[roomID]
	if !ok {
		return RoomEntry{}, false
	}
	return *entry, true
}

// Load fetches the visible rooms and computes last-message previews with a
// single batched query. Concurrent calls while a load is in flight are
// no-ops. On failure the previous list is kept.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.Lock()
	if d.state == DirectoryLoading {
		d.mu.Unlock()
		return nil
	}
	d.state = DirectoryLoading
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.state = DirectoryIdle
		d.mu.Unlock()
	}()

	rooms, err := d.backend.ListRooms(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("directory load failed")
		return err
	}

	roomIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID)
	}

	recent, err := d.backend.RecentMessages(ctx, roomIDs, d.window)
	if err != nil {
		d.logger.Error().Err(err).Msg("directory last-message batch failed")
		return err
	}

	// Reduce the window newest-first; the first message seen for a room is
	// its last message.
	lastByRoom := make(map[string]models.Message, len(rooms))
	for _, msg := range recent {
		if _, ok := lastByRoom[msg.ChatRoomID]; !ok {
			lastByRoom[msg.ChatRoomID] = msg
		}
	}

	next := make(map[string]*RoomEntry, len(rooms))
	d.mu.Lock()
	for _, room := range rooms {
		entry := &RoomEntry{RoomWithRequest: room}
		if msg, ok := lastByRoom[room.ID]; ok {
			m := msg
			entry.LastMessage = &m
		}
		// Unread counts accumulate from realtime events; a reload keeps
		// whatever was counted so far rather than resetting to a guess.
		if prev, ok := d.rooms[room.ID]; ok {
			entry.UnreadCount = prev.UnreadCount
		}
		next[room.ID] = entry
	}
	d.rooms = next
	d.loaded = true
	d.mu.Unlock()
	return nil
}

// Start opens the two directory-lifetime subscriptions: room row changes
// and message inserts.
func (d *Directory) Start(ctx context.Context) error {
	unsubRooms, err := d.backend.Subscribe(models.TableRooms, "", func(ev models.ChangeEvent) {
		d.onRoomEvent(ctx, ev)
	})
	if err != nil {
		return err
	}
	unsubMessages, err := d.backend.Subscribe(models.TableMessages, "", d.onMessageEvent)
	if err != nil {
		unsubRooms()
		return err
	}

	d.mu.Lock()
	d.unsubRooms = unsubRooms
	d.unsubMessages = unsubMessages
	d.mu.Unlock()
	return nil
}

// Stop tears down the directory subscriptions.
func (d *Directory) Stop() {
	d.mu.Lock()
	unsubRooms, unsubMessages := d.unsubRooms, d.unsubMessages
	d.unsubRooms, d.unsubMessages = nil, nil
	d.mu.Unlock()

	if unsubRooms != nil {
		unsubRooms()
	}
	if unsubMessages != nil {
		unsubMessages()
	}
}

// SetActiveRoom marks the room whose session is open; its unread counter is
// zeroed and incoming messages for it no longer count as unread.
func (d *Directory) SetActiveRoom(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeRoom = roomID
	if entry, ok := d.rooms[roomID]; ok {
		entry.UnreadCount = 0
	}
}

// ClearActiveRoom unsets the active room marker.
func (d *Directory) ClearActiveRoom(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.activeRoom == roomID {
		d.activeRoom = ""
	}
}

func (d *Directory) onRoomEvent(ctx context.Context, ev models.ChangeEvent) {
	switch ev.Event {
	case models.EventUpdate:
		var room models.ChatRoom
		if err := json.Unmarshal(ev.Row, &room); err != nil {
			d.logger.Warn().Err(err).Msg("bad room event payload")
			return
		}
		d.mu.Lock()
		if entry, ok := d.rooms[room.ID]; ok {
			if room.IsActive {
				entry.IsActive = room.IsActive
				entry.UpdatedAt = room.UpdatedAt
			} else {
				delete(d.rooms, room.ID)
			}
		}
		d.mu.Unlock()
	case models.EventInsert, models.EventDelete:
		// Rare; a full refetch is acceptable here.
		if err := d.Load(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("directory refetch failed")
		}
	}
}

func (d *Directory) onMessageEvent(ev models.ChangeEvent) {
	if ev.Event != models.EventInsert {
		return
	}
	var msg models.Message
	if err := json.Unmarshal(ev.Row, &msg); err != nil {
		d.logger.Warn().Err(err).Msg("bad message event payload")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.rooms[msg.ChatRoomID]
	if !ok {
		return
	}
	m := msg
	entry.LastMessage = &m
	if msg.CreatedAt.After(entry.UpdatedAt) {
		entry.UpdatedAt = msg.CreatedAt
	}
	if !msg.SentBy(d.actorID) && d.activeRoom != msg.ChatRoomID {
		entry.UnreadCount++
	}
}
