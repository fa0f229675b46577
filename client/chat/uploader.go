package chat

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio-chat/internal/models"
)

// Blob is a staged media payload: a recorded voice clip or a picked file.
type Blob struct {
	Name            string
	MIME            string
	Data            []byte
	DurationSeconds *int
}

// DefaultPreviewTTL is how long a released preview handle stays resolvable
// before its memory is reclaimed.
const DefaultPreviewTTL = 30 * time.Second

// Uploader is the attachment pipeline: it moves staged blobs into the blob
// store under room-namespaced collision-free paths and manages local
// preview handles.
type Uploader struct {
	blobs    BlobStore
	logger   zerolog.Logger
	previews *previewRegistry
}

// NewUploader constructs an Uploader.
func NewUploader(blobs BlobStore, logger zerolog.Logger) *Uploader {
	return &Uploader{
		blobs:    blobs,
		logger:   logger,
		previews: newPreviewRegistry(DefaultPreviewTTL),
	}
}

// Upload stores the blob and returns its durable URL. mediaType must be
// IMAGE or AUDIO. Failure propagates; no message row exists yet at this
// point so nothing is left behind.
func (u *Uploader) Upload(ctx context.Context, roomID string, blob Blob, mediaType string) (string, error) {
	if mediaType != models.TypeImage && mediaType != models.TypeAudio {
		return "", fmt.Errorf("unsupported media type %q", mediaType)
	}
	if len(blob.Data) == 0 {
		return "", fmt.Errorf("empty blob")
	}

	ext := path.Ext(blob.Name)
	if ext == "" {
		ext = ".bin"
	}
	objectPath := fmt.Sprintf("chat-media/%s/%d-%s%s", roomID, time.Now().UnixNano(), shortID(), ext)

	url, err := u.blobs.Upload(ctx, objectPath, bytes.NewReader(blob.Data))
	if err != nil {
		return "", fmt.Errorf("upload attachment: %w", err)
	}
	return url, nil
}

// Preview registers the blob for local preview and returns a handle that
// resolves until released plus the TTL.
func (u *Uploader) Preview(blob Blob) string {
	return u.previews.register(blob)
}

// ResolvePreview returns the blob behind a preview handle.
func (u *Uploader) ResolvePreview(handle string) (Blob, bool) {
	return u.previews.resolve(handle)
}

// ReleasePreview schedules the handle's memory for reclamation.
func (u *Uploader) ReleasePreview(handle string) {
	u.previews.release(handle)
}

// Close drops all preview handles and pending timers.
func (u *Uploader) Close() {
	u.previews.close()
}

func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// previewRegistry holds staged blobs for preview. Released handles are
// reclaimed after a bounded delay so preview memory cannot grow without
// bound.
type previewRegistry struct {
	mu     sync.Mutex
	ttl    time.Duration
	blobs  map[string]Blob
	timers map[string]*time.Timer
	closed bool
}

func newPreviewRegistry(ttl time.Duration) *previewRegistry {
	return &previewRegistry{
		ttl:    ttl,
		blobs:  make(map[string]Blob),
		timers: make(map[string]*time.Timer),
	}
}

func (p *previewRegistry) register(blob Blob) string {
	handle := "preview://" + uuid.NewString()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return handle
	}
	p.blobs[handle] = blob
	return handle
}

func (p *previewRegistry) resolve(handle string) (Blob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	blob, ok := p.blobs[handle]
	return blob, ok
}

func (p *previewRegistry) release(handle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, ok := p.blobs[handle]; !ok {
		return
	}
	if _, ok := p.timers[handle]; ok {
		return
	}
	p.timers[handle] = time.AfterFunc(p.ttl, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.blobs, handle)
		delete(p.timers, handle)
	})
}

func (p *previewRegistry) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, timer := range p.timers {
		timer.Stop()
	}
	p.blobs = map[string]Blob{}
	p.timers = map[string]*time.Timer{}
}
