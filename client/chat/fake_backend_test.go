package chat

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studio-chat/internal/models"
)

// fakeBackend is an in-memory Backend with synchronous event delivery. Tests
// drive the realtime feed by inserting rows or emitting events directly.
type fakeBackend struct {
	mu          sync.Mutex
	rooms       []models.RoomWithRequest
	transcripts map[string][]models.Message
	subs        map[int]fakeSub
	nextSub     int

	inserted  []models.Message
	deleted   []string
	readRooms []string

	listRoomsErr  error
	recentErr     error
	listErr       error
	insertErr     error
	deleteErr     error
	subscribeErr  error
	recentLimits  []int
	listGates     map[string]chan struct{}
	echoOnInsert  bool
	actorOverride *string
}

type fakeSub struct {
	table   string
	roomID  string
	handler EventHandler
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		transcripts: make(map[string][]models.Message),
		subs:        make(map[int]fakeSub),
	}
}

func (f *fakeBackend) addRoom(roomID string, updatedAt time.Time) models.RoomWithRequest {
	room := models.RoomWithRequest{
		ChatRoom: models.ChatRoom{
			ID:        roomID,
			IsActive:  true,
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
		},
		RequestCode:   "SR-" + roomID,
		RequestStatus: "OPEN",
		ServiceType:   "full_design",
	}
	f.mu.Lock()
	f.rooms = append(f.rooms, room)
	f.mu.Unlock()
	return room
}

func (f *fakeBackend) addMessage(roomID, id, senderID, content string, createdAt time.Time) models.Message {
	msg := models.Message{
		ID:          id,
		ChatRoomID:  roomID,
		MessageType: models.TypeText,
		Content:     content,
		CreatedAt:   createdAt,
	}
	if senderID != "" {
		msg.SenderID = &senderID
	}
	f.mu.Lock()
	f.transcripts[roomID] = append(f.transcripts[roomID], msg)
	f.mu.Unlock()
	return msg
}

func (f *fakeBackend) ListRooms(ctx context.Context) ([]models.RoomWithRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listRoomsErr != nil {
		return nil, f.listRoomsErr
	}
	out := make([]models.RoomWithRequest, len(f.rooms))
	copy(out, f.rooms)
	return out, nil
}

// RecentMessages mirrors the server: newest first across all requested
// rooms, bounded by limit.
func (f *fakeBackend) RecentMessages(ctx context.Context, roomIDs []string, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	f.recentLimits = append(f.recentLimits, limit)

	var all []models.Message
	for _, id := range roomIDs {
		all = append(all, f.transcripts[id]...)
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].CreatedAt.After(all[i].CreatedAt) {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	f.mu.Lock()
	gate := f.listGates[roomID]
	err := f.listErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.transcripts[roomID]))
	copy(out, f.transcripts[roomID])
	return out, nil
}

func (f *fakeBackend) InsertMessage(ctx context.Context, out Outgoing) (models.Message, error) {
	f.mu.Lock()
	if f.insertErr != nil {
		err := f.insertErr
		f.mu.Unlock()
		return models.Message{}, err
	}
	msg := models.Message{
		ID:              out.ID,
		ChatRoomID:      out.RoomID,
		SenderID:        f.actorOverride,
		MessageType:     out.MessageType,
		Content:         out.Content,
		MediaURL:        out.MediaURL,
		DurationSeconds: out.DurationSeconds,
		IsRead:          out.IsRead,
		CreatedAt:       time.Now(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	f.transcripts[out.RoomID] = append(f.transcripts[out.RoomID], msg)
	f.inserted = append(f.inserted, msg)
	echo := f.echoOnInsert
	f.mu.Unlock()

	if echo {
		f.emit(models.MessageChange(models.EventInsert, msg), out.RoomID)
	}
	return msg, nil
}

func (f *fakeBackend) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	f.mu.Lock()
	if f.deleteErr != nil {
		err := f.deleteErr
		f.mu.Unlock()
		return err
	}
	msgs := f.transcripts[roomID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			f.transcripts[roomID] = append(msgs[:i], msgs[i+1:]...)
			break
		}
	}
	f.deleted = append(f.deleted, messageID)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) MarkRoomRead(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readRooms = append(f.readRooms, roomID)
	return nil
}

func (f *fakeBackend) Subscribe(table, roomID string, handler EventHandler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fakeSub{table: table, roomID: roomID, handler: handler}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}, nil
}

// emit delivers an event to every matching subscription, like the hub does:
// unfiltered table subscribers always match, room-filtered ones only their
// room.
func (f *fakeBackend) emit(ev models.ChangeEvent, roomID string) {
	f.mu.Lock()
	var handlers []EventHandler
	for _, sub := range f.subs {
		if sub.table != ev.Table {
			continue
		}
		if sub.roomID != "" && sub.roomID != roomID {
			continue
		}
		handlers = append(handlers, sub.handler)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (f *fakeBackend) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeBackend) readRoomsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.readRooms))
	copy(out, f.readRooms)
	return out
}

// fakeBlobs is an in-memory BlobStore.
type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

const fakeBlobBase = "http://files.test/media/"

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Upload(ctx context.Context, path string, r io.Reader) (string, error) {
	f.mu.Lock()
	err := f.uploadErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.objects[path] = data
	f.mu.Unlock()
	return fakeBlobBase + path, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, path)
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeBlobs) PathFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, fakeBlobBase) {
		return "", false
	}
	return strings.TrimPrefix(url, fakeBlobBase), true
}

func (f *fakeBlobs) deletedSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

var (
	_ Backend   = (*fakeBackend)(nil)
	_ BlobStore = (*fakeBlobs)(nil)
)
