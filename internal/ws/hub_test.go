package ws

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestHubAddAndRemove(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sub := Subscription{Table: "messages", RoomID: "r1"}

	hub.Add(sub, nil, ConnInfo{ConnID: "c1"})
	if len(hub.subs) != 1 {
		t.Fatalf("expected subscription bucket to be created")
	}

	hub.Remove(sub, nil)
	if len(hub.subs) != 0 {
		t.Fatalf("expected subscription bucket to be removed")
	}
}

func TestHubSubscriberCount(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	hub.Add(Subscription{Table: "messages"}, nil, ConnInfo{ConnID: "c1"})
	hub.Add(Subscription{Table: "messages", RoomID: "r1"}, nil, ConnInfo{ConnID: "c2"})

	if got := hub.SubscriberCount("messages", "r1"); got != 2 {
		t.Fatalf("expected 2 subscribers for room r1, got %d", got)
	}
	if got := hub.SubscriberCount("messages", "r2"); got != 1 {
		t.Fatalf("expected 1 unfiltered subscriber for room r2, got %d", got)
	}
	if got := hub.SubscriberCount("chat_rooms", ""); got != 0 {
		t.Fatalf("expected no chat_rooms subscribers, got %d", got)
	}
}
