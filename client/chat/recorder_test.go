package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream feeds scripted audio chunks to the recorder.
type fakeStream struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan []byte, 16)}
}

func (s *fakeStream) push(chunk []byte) {
	s.ch <- chunk
}

func (s *fakeStream) Chunks() <-chan []byte {
	return s.ch
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

type fakeSource struct {
	stream     *fakeStream
	acquireErr error
	acquired   int
}

func (f *fakeSource) Acquire(ctx context.Context) (CaptureStream, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return f.stream, nil
}

func TestRecorderStartStop(t *testing.T) {
	stream := newFakeStream()
	r := NewRecorder(&fakeSource{stream: stream}, nil, zerolog.Nop())

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, RecorderRecording, r.State())

	stream.push([]byte("chunk-1"))
	stream.push([]byte("chunk-2"))

	blob, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, RecorderBlobReady, r.State())
	assert.Equal(t, []byte("chunk-1chunk-2"), blob.Data)
	assert.Equal(t, "audio/webm", blob.MIME)
	require.NotNil(t, blob.DurationSeconds)

	taken, ok := r.TakeBlob()
	require.True(t, ok)
	assert.Equal(t, blob.Data, taken.Data)
	assert.Equal(t, RecorderIdle, r.State())
}

func TestRecorderAcquireFailureStaysIdle(t *testing.T) {
	r := NewRecorder(&fakeSource{acquireErr: assert.AnError}, nil, zerolog.Nop())

	err := r.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, RecorderIdle, r.State())
}

func TestRecorderDoubleStart(t *testing.T) {
	stream := newFakeStream()
	r := NewRecorder(&fakeSource{stream: stream}, nil, zerolog.Nop())

	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrRecorderBusy)
	r.Cancel()
}

func TestRecorderCancelDiscards(t *testing.T) {
	stream := newFakeStream()
	r := NewRecorder(&fakeSource{stream: stream}, nil, zerolog.Nop())

	require.NoError(t, r.Start(context.Background()))
	stream.push([]byte("chunk"))
	r.Cancel()

	assert.Equal(t, RecorderIdle, r.State())
	_, ok := r.TakeBlob()
	assert.False(t, ok)
}

func TestRecorderAnswersBusStop(t *testing.T) {
	bus := NewBus()
	stream := newFakeStream()
	r := NewRecorder(&fakeSource{stream: stream}, bus, zerolog.Nop())
	defer r.Release()

	var got *Blob
	unsub := bus.Subscribe(TopicVoiceBlob, func(payload any) {
		if blob, ok := payload.(Blob); ok {
			got = &blob
		}
	})
	defer unsub()

	require.NoError(t, r.Start(context.Background()))
	stream.push([]byte("voice"))

	bus.Publish(TopicVoiceStop, nil)

	require.NotNil(t, got)
	assert.Equal(t, []byte("voice"), got.Data)
	assert.Equal(t, RecorderBlobReady, r.State())
}

func TestRecorderRestartAfterTake(t *testing.T) {
	first := newFakeStream()
	source := &fakeSource{stream: first}
	r := NewRecorder(source, nil, zerolog.Nop())

	require.NoError(t, r.Start(context.Background()))
	first.push([]byte("one"))
	_, err := r.Stop()
	require.NoError(t, err)
	_, ok := r.TakeBlob()
	require.True(t, ok)

	source.stream = newFakeStream()
	require.NoError(t, r.Start(context.Background()))
	source.stream.push([]byte("two"))
	blob, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), blob.Data)
}
