// Package crosstab keeps the signed-in session consistent across every
// attendr window: a logout in one ends the session in all of them.
package crosstab

import (
	"context"
	"sync"

	"github.com/sadopc/attendr/internal/session"
)

type Kind string

const (
	KindEstablished Kind = "session.established"
	KindCleared     Kind = "session.cleared"
)

type Message struct {
	Kind   Kind                `json:"kind"`
	User   *session.PublicUser `json:"user,omitempty"`
	Origin string              `json:"origin"`
}

// Channel is a broadcast medium shared by all windows. Handlers may run on
// a background goroutine.
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(fn func(Message)) (unsubscribe func(), err error)
}

// Hub is an in-process Channel for windows hosted by the same process.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Message)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(Message))}
}

func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.mu.RLock()
	handlers := make([]func(Message), 0, len(h.subs))
	for _, fn := range h.subs {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(msg)
	}
	return nil
}

func (h *Hub) Subscribe(fn func(Message)) (func(), error) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}, nil
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
