package chat

import (
	"sync"

	"studio-chat/internal/auth"
)

// TokenIdentity derives the current actor from a session token. SetToken
// with a fresh token models login, with "" logout; either notifies
// registered listeners.
type TokenIdentity struct {
	mu        sync.Mutex
	verifier  *auth.Verifier
	actor     auth.Actor
	token     string
	loggedIn  bool
	listeners map[int]func(auth.Actor, bool)
	nextID    int
}

// NewTokenIdentity constructs a TokenIdentity. token may be empty.
func NewTokenIdentity(verifier *auth.Verifier, token string) *TokenIdentity {
	id := &TokenIdentity{
		verifier:  verifier,
		listeners: map[int]func(auth.Actor, bool){},
	}
	if token != "" {
		if actor, err := verifier.Verify(token); err == nil {
			id.actor = actor
			id.token = token
			id.loggedIn = true
		}
	}
	return id
}

// Current returns the actor and whether anyone is logged in.
func (t *TokenIdentity) Current() (auth.Actor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actor, t.loggedIn
}

// Token returns the raw session token for transport authentication.
func (t *TokenIdentity) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// SetToken swaps the session token and notifies listeners.
func (t *TokenIdentity) SetToken(token string) error {
	t.mu.Lock()
	if token == "" {
		t.actor = auth.Actor{}
		t.token = ""
		t.loggedIn = false
	} else {
		actor, err := t.verifier.Verify(token)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		t.actor = actor
		t.token = token
		t.loggedIn = true
	}
	actor, loggedIn := t.actor, t.loggedIn
	fns := make([]func(auth.Actor, bool), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(actor, loggedIn)
	}
	return nil
}

// OnChange registers a login/logout listener.
func (t *TokenIdentity) OnChange(fn func(auth.Actor, bool)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// StaticIdentity is a fixed identity, useful for tests and tooling.
type StaticIdentity struct {
	Actor auth.Actor
}

// Current returns the fixed actor.
func (s StaticIdentity) Current() (auth.Actor, bool) {
	return s.Actor, s.Actor.ID != ""
}

// OnChange never fires; the identity is fixed.
func (s StaticIdentity) OnChange(func(auth.Actor, bool)) func() {
	return func() {}
}
