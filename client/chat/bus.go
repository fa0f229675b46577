package chat

import (
	"sync"
	"time"
)

// Topic names a typed channel on the in-process bus.
type Topic string

// Topics used by the composer fallback path and the voice recorder.
const (
	TopicOutgoingMessage Topic = "outgoing:message"
	TopicOutgoingFile    Topic = "outgoing:file"
	TopicOutgoingVoice   Topic = "outgoing:voice"
	TopicVoiceStop       Topic = "voice:stop"
	TopicVoiceBlob       Topic = "voice:blob"
)

// OutgoingEvent is the payload published on the outgoing topics by the
// composer when no session is wired in: a best-effort local echo consumed
// directly by a transcript view, with no server round trip.
type OutgoingEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	SenderID  string    `json:"uid"`
	URL       string    `json:"url,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Meta      EventMeta `json:"meta"`
}

// EventMeta marks locally produced events.
type EventMeta struct {
	Local bool `json:"local"`
}

// Bus is a small synchronous publish/subscribe bus with typed topics. It is
// injected explicitly into the composer, recorder and any transcript view
// that needs it; there is no package-level instance.
type Bus struct {
	mu     sync.Mutex
	subs   map[Topic]map[int]func(any)
	nextID int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic]map[int]func(any))}
}

// Subscribe registers a handler for a topic; the returned func removes it.
func (b *Bus) Subscribe(topic Topic, fn func(payload any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[topic]; !ok {
		b.subs[topic] = make(map[int]func(any))
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if handlers, ok := b.subs[topic]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.subs, topic)
			}
		}
	}
}

// Publish delivers the payload to every subscriber of the topic, in the
// caller's goroutine. Handlers registered during delivery are not invoked
// for this publish.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.Lock()
	handlers := make([]func(any), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(payload)
	}
}
