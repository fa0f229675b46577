package chat

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-chat/internal/auth"
	"studio-chat/internal/models"
)

func testIdentity(actorID string) Identity {
	return StaticIdentity{Actor: auth.Actor{ID: actorID, Role: "customer"}}
}

func newTestDirectory(backend *fakeBackend, actorID string, opts ...DirectoryOption) *Directory {
	return NewDirectory(backend, testIdentity(actorID), zerolog.Nop(), opts...)
}

func TestDirectoryLoadReducesLastMessages(t *testing.T) {
	backend := newFakeBackend()
	base := time.Now().Add(-time.Hour)
	backend.addRoom("r1", base)
	backend.addRoom("r2", base.Add(time.Minute))
	backend.addMessage("r1", "m1", "u2", "old", base.Add(time.Minute))
	backend.addMessage("r1", "m2", "u2", "newest in r1", base.Add(2*time.Minute))
	backend.addMessage("r2", "m3", "u2", "only in r2", base.Add(3*time.Minute))

	dir := newTestDirectory(backend, "u1")
	require.NoError(t, dir.Load(context.Background()))
	require.True(t, dir.Loaded())

	r1, ok := dir.Room("r1")
	require.True(t, ok)
	require.NotNil(t, r1.LastMessage)
	assert.Equal(t, "m2", r1.LastMessage.ID)

	r2, ok := dir.Room("r2")
	require.True(t, ok)
	require.NotNil(t, r2.LastMessage)
	assert.Equal(t, "m3", r2.LastMessage.ID)
}

func TestDirectoryLoadUsesOneBatchedQuery(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("r1", time.Now())
	backend.addRoom("r2", time.Now())

	dir := newTestDirectory(backend, "u1", WithRecentWindow(50))
	require.NoError(t, dir.Load(context.Background()))

	require.Len(t, backend.recentLimits, 1)
	assert.Equal(t, 50, backend.recentLimits[0])
}

func TestDirectoryLoadKeepsListOnError(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("r1", time.Now())

	dir := newTestDirectory(backend, "u1")
	require.NoError(t, dir.Load(context.Background()))

	backend.mu.Lock()
	backend.listRoomsErr = assert.AnError
	backend.mu.Unlock()

	require.Error(t, dir.Load(context.Background()))
	_, ok := dir.Room("r1")
	assert.True(t, ok, "previous list should survive a failed reload")
}

func TestDirectoryUnreadAccounting(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("r1", time.Now())
	backend.addRoom("r2", time.Now())

	dir := newTestDirectory(backend, "u1")
	require.NoError(t, dir.Load(context.Background()))
	require.NoError(t, dir.Start(context.Background()))
	defer dir.Stop()

	dir.SetActiveRoom("r1")

	// A peer message in the open room does not count.
	msgActive := backend.addMessage("r1", "m1", "u2", "hi", time.Now())
	backend.emit(models.MessageChange(models.EventInsert, msgActive), "r1")

	// A peer message in a background room counts.
	msgOther := backend.addMessage("r2", "m2", "u2", "hello", time.Now())
	backend.emit(models.MessageChange(models.EventInsert, msgOther), "r2")

	// The actor's own message never counts, wherever it lands.
	msgOwn := backend.addMessage("r2", "m3", "u1", "mine", time.Now())
	backend.emit(models.MessageChange(models.EventInsert, msgOwn), "r2")

	r1, _ := dir.Room("r1")
	r2, _ := dir.Room("r2")
	assert.Equal(t, 0, r1.UnreadCount)
	assert.Equal(t, 1, r2.UnreadCount)

	// Opening the room zeroes its counter.
	dir.SetActiveRoom("r2")
	r2, _ = dir.Room("r2")
	assert.Equal(t, 0, r2.UnreadCount)
}

func TestDirectoryReloadPreservesUnread(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("r1", time.Now())

	dir := newTestDirectory(backend, "u1")
	require.NoError(t, dir.Load(context.Background()))
	require.NoError(t, dir.Start(context.Background()))
	defer dir.Stop()

	msg := backend.addMessage("r1", "m1", "u2", "hi", time.Now())
	backend.emit(models.MessageChange(models.EventInsert, msg), "r1")

	require.NoError(t, dir.Load(context.Background()))
	r1, _ := dir.Room("r1")
	assert.Equal(t, 1, r1.UnreadCount)
}

func TestDirectoryMessageEventUpdatesPreviewAndOrder(t *testing.T) {
	backend := newFakeBackend()
	base := time.Now().Add(-time.Hour)
	backend.addRoom("r1", base)
	backend.addRoom("r2", base.Add(time.Minute))

	dir := newTestDirectory(backend, "u1")
	require.NoError(t, dir.Load(context.Background()))
	require.NoError(t, dir.Start(context.Background()))
	defer dir.Stop()

	rooms := dir.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "r2", rooms[0].ID)

	msg := backend.addMessage("r1", "m1", "u2", "bump", time.Now())
	backend.emit(models.MessageChange(models.EventInsert, msg), "r1")

	rooms = dir.Rooms()
	assert.Equal(t, "r1", rooms[0].ID)
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, "m1", rooms[0].LastMessage.ID)
}

func TestDirectoryDropsDeactivatedRoom(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("r1", time.Now())

	dir := newTestDirectory(backend, "u1")
	require.NoError(t, dir.Load(context.Background()))
	require.NoError(t, dir.Start(context.Background()))
	defer dir.Stop()

	room := models.ChatRoom{ID: "r1", IsActive: false, UpdatedAt: time.Now()}
	backend.emit(models.RoomChange(models.EventUpdate, room), "")

	_, ok := dir.Room("r1")
	assert.False(t, ok)
}

func TestDirectoryStopTearsDownSubscriptions(t *testing.T) {
	backend := newFakeBackend()
	dir := newTestDirectory(backend, "u1")
	require.NoError(t, dir.Start(context.Background()))
	require.Equal(t, 2, backend.subscriptionCount())

	dir.Stop()
	assert.Equal(t, 0, backend.subscriptionCount())
}
