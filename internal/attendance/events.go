package attendance

import (
	"sync"
	"time"

	"github.com/sadopc/attendr/internal/timeservice"
)

type EventKind string

const (
	EventClockIn     EventKind = "clock-in"
	EventClockOut    EventKind = "clock-out"
	EventBreakToggle EventKind = "break-toggle"
	EventError       EventKind = "error"
)

// Event is published after the controller has resynced, so observers that
// read the controller's snapshot see the post-action state.
type Event struct {
	Kind EventKind
	At   time.Time

	// Action and Reason are set for EventError.
	Action timeservice.ActionType
	Reason string

	// OnBreak is the new break state for EventBreakToggle.
	OnBreak bool

	// Elapsed is the locally computed total at the moment of clock-out.
	Elapsed Elapsed
}

// Bus is a typed publish/subscribe bus. Handlers run synchronously on the
// publishing goroutine and must not block.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it. Calling
// the returned function more than once is harmless.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
