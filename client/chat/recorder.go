package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RecorderState is the voice capture state machine.
type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderRecording
	RecorderStopped
	RecorderBlobReady
)

// CaptureStream delivers audio chunks from an acquired input device. The
// channel closes when the stream is closed.
type CaptureStream interface {
	Chunks() <-chan []byte
	Close() error
}

// CaptureSource acquires the audio input device. Acquisition can fail
// (permission denied, no device); those errors keep the recorder Idle.
type CaptureSource interface {
	Acquire(ctx context.Context) (CaptureStream, error)
}

// Recorder buffers audio chunks from a capture stream and finalizes them
// into a single blob on stop. Cancel discards the buffer and releases the
// stream.
type Recorder struct {
	source CaptureSource
	bus    *Bus
	logger zerolog.Logger

	mu        sync.Mutex
	state     RecorderState
	stream    CaptureStream
	chunks    [][]byte
	startedAt time.Time
	blob      *Blob
	done      chan struct{}
	unsubStop func()
}

// NewRecorder constructs a Recorder. When bus is non-nil the recorder
// answers TopicVoiceStop by stopping and publishing the finished blob on
// TopicVoiceBlob.
func NewRecorder(source CaptureSource, bus *Bus, logger zerolog.Logger) *Recorder {
	r := &Recorder{source: source, bus: bus, logger: logger}
	if bus != nil {
		r.unsubStop = bus.Subscribe(TopicVoiceStop, func(any) {
			if blob, err := r.Stop(); err == nil {
				bus.Publish(TopicVoiceBlob, blob)
			}
		})
	}
	return r
}

// State returns the recorder state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the capture stream and begins buffering chunks.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == RecorderRecording {
		r.mu.Unlock()
		return ErrRecorderBusy
	}
	r.mu.Unlock()

	stream, err := r.source.Acquire(ctx)
	if err != nil {
		// Acquisition failure keeps the machine Idle; the caller surfaces
		// the message inline.
		r.mu.Lock()
		r.state = RecorderIdle
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.state = RecorderRecording
	r.stream = stream
	r.chunks = nil
	r.blob = nil
	r.startedAt = time.Now()
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		for chunk := range stream.Chunks() {
			r.mu.Lock()
			// Stopped still collects: chunks buffered before the stream
			// closed belong to the recording. Only Cancel discards.
			if r.state == RecorderRecording || r.state == RecorderStopped {
				r.chunks = append(r.chunks, chunk)
			}
			r.mu.Unlock()
		}
	}()
	return nil
}

// Stop releases the stream and finalizes the buffered chunks into one blob.
func (r *Recorder) Stop() (Blob, error) {
	r.mu.Lock()
	if r.state != RecorderRecording {
		if r.state == RecorderBlobReady && r.blob != nil {
			blob := *r.blob
			r.mu.Unlock()
			return blob, nil
		}
		r.mu.Unlock()
		return Blob{}, ErrRecorderBusy
	}
	r.state = RecorderStopped
	stream := r.stream
	r.stream = nil
	done := r.done
	startedAt := r.startedAt
	r.mu.Unlock()

	if err := stream.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("capture stream close failed")
	}
	// Wait for the chunk drain to observe the channel close so the final
	// chunks are in the buffer.
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	size := 0
	for _, chunk := range r.chunks {
		size += len(chunk)
	}
	data := make([]byte, 0, size)
	for _, chunk := range r.chunks {
		data = append(data, chunk...)
	}
	duration := int(time.Since(startedAt).Round(time.Second).Seconds())
	blob := Blob{
		Name:            "voice-message.webm",
		MIME:            "audio/webm",
		Data:            data,
		DurationSeconds: &duration,
	}
	r.chunks = nil
	r.blob = &blob
	r.state = RecorderBlobReady
	return blob, nil
}

// Cancel discards buffered audio and returns directly to Idle.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	stream := r.stream
	done := r.done
	r.stream = nil
	r.chunks = nil
	r.blob = nil
	r.state = RecorderIdle
	r.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("capture stream close failed")
		}
		<-done
	}
}

// TakeBlob hands over the finished blob and resets the machine to Idle.
func (r *Recorder) TakeBlob() (Blob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderBlobReady || r.blob == nil {
		return Blob{}, false
	}
	blob := *r.blob
	r.blob = nil
	r.state = RecorderIdle
	return blob, true
}

// Release unregisters the bus listener.
func (r *Recorder) Release() {
	if r.unsubStop != nil {
		r.unsubStop()
	}
}
