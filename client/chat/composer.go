package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio-chat/internal/models"
)

// DefaultFlushGrace bounds how long Submit waits for a mid-session recorder
// to flush its blob after the stop signal. Best effort: the recorder runs
// as an independent state machine.
const DefaultFlushGrace = 300 * time.Millisecond

// Composer stages outgoing content (draft text, recorded voice, picked
// file) and hands it to the session's send operations. It holds no message
// state and performs no deduplication; that belongs to the session.
//
// Without a session wired in, Submit degrades to a local echo on the bus
// (used by the simplified chat surface): an at-least-once, best-effort
// signal with no server round trip.
type Composer struct {
	session  *Session
	bus      *Bus
	recorder *Recorder
	identity Identity
	logger   zerolog.Logger
	grace    time.Duration

	mu          sync.Mutex
	draft       string
	stagedVoice *Blob
	stagedFile  *Blob
	voiceReady  chan struct{}
	unsubBlob   func()
}

// ComposerOption customises a Composer.
type ComposerOption func(*Composer)

// WithFlushGrace overrides the recorder flush wait.
func WithFlushGrace(d time.Duration) ComposerOption {
	return func(c *Composer) {
		if d > 0 {
			c.grace = d
		}
	}
}

// NewComposer constructs a Composer. session may be nil (degraded mode);
// recorder may be nil when the surface has no voice input.
func NewComposer(session *Session, bus *Bus, recorder *Recorder, identity Identity, logger zerolog.Logger, opts ...ComposerOption) *Composer {
	c := &Composer{
		session:  session,
		bus:      bus,
		recorder: recorder,
		identity: identity,
		logger:   logger,
		grace:    DefaultFlushGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	if bus != nil {
		c.unsubBlob = bus.Subscribe(TopicVoiceBlob, func(payload any) {
			if blob, ok := payload.(Blob); ok {
				c.StageRecording(blob)
			}
		})
	}
	return c
}

// SetDraft replaces the draft text.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Draft returns the current draft text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// StageRecording stages a finished voice blob for the next submit.
func (c *Composer) StageRecording(blob Blob) {
	c.mu.Lock()
	c.stagedVoice = &blob
	ready := c.voiceReady
	c.voiceReady = nil
	c.mu.Unlock()
	if ready != nil {
		close(ready)
	}
}

// StageFile stages a picked or dropped file for the next submit.
func (c *Composer) StageFile(blob Blob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stagedFile = &blob
}

// ClearStaged drops any staged voice and file blobs.
func (c *Composer) ClearStaged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stagedVoice = nil
	c.stagedFile = nil
}

// Submit sends whatever is staged, in priority order: a recorded voice
// blob outranks a staged file, which outranks typed text. A user who
// recorded and then also typed must not silently lose the recording. A
// recorder still mid-session is asked to stop first and given a bounded
// grace period to flush.
func (c *Composer) Submit(ctx context.Context) error {
	if c.recorder != nil && c.recorder.State() == RecorderRecording {
		c.flushRecorder()
	}

	c.mu.Lock()
	voice := c.stagedVoice
	file := c.stagedFile
	draft := c.draft
	c.mu.Unlock()

	switch {
	case voice != nil:
		if err := c.sendMedia(ctx, *voice, models.TypeAudio); err != nil {
			return err
		}
		c.mu.Lock()
		c.stagedVoice = nil
		c.mu.Unlock()
		return nil
	case file != nil:
		if err := c.sendMedia(ctx, *file, models.TypeImage); err != nil {
			return err
		}
		c.mu.Lock()
		c.stagedFile = nil
		c.mu.Unlock()
		return nil
	case draft != "":
		return c.sendText(ctx, draft)
	default:
		return ErrNothingToSend
	}
}

// flushRecorder signals the recorder to stop and waits for the blob,
// bounded by the grace period.
func (c *Composer) flushRecorder() {
	c.mu.Lock()
	ready := make(chan struct{})
	c.voiceReady = ready
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(TopicVoiceStop, nil)
	} else if blob, err := c.recorder.Stop(); err == nil {
		c.StageRecording(blob)
	}

	select {
	case <-ready:
	case <-time.After(c.grace):
		c.logger.Warn().Msg("recorder did not flush within grace period")
	}
}

func (c *Composer) sendText(ctx context.Context, draft string) error {
	// Optimistic UX: the input clears immediately and is restored verbatim
	// if the send fails.
	c.mu.Lock()
	c.draft = ""
	c.mu.Unlock()

	if c.session == nil {
		c.publishLocal(TopicOutgoingMessage, "text", "", draft)
		return nil
	}

	if _, err := c.session.SendText(ctx, draft); err != nil {
		c.mu.Lock()
		c.draft = draft
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Composer) sendMedia(ctx context.Context, blob Blob, mediaType string) error {
	if c.session == nil {
		topic := TopicOutgoingFile
		kind := "file"
		if mediaType == models.TypeAudio {
			topic = TopicOutgoingVoice
			kind = "voice"
		}
		c.publishLocal(topic, kind, blob.Name, "")
		return nil
	}
	_, err := c.session.SendMedia(ctx, blob, mediaType)
	return err
}

// publishLocal emits the degraded-mode local echo.
func (c *Composer) publishLocal(topic Topic, kind, url, text string) {
	if c.bus == nil {
		return
	}
	senderID := ""
	if actor, ok := c.identity.Current(); ok {
		senderID = actor.ID
	}
	c.bus.Publish(topic, OutgoingEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		SenderID:  senderID,
		URL:       url,
		Text:      text,
		Timestamp: time.Now(),
		Meta:      EventMeta{Local: true},
	})
}

// Release unregisters bus listeners.
func (c *Composer) Release() {
	if c.unsubBlob != nil {
		c.unsubBlob()
	}
}
