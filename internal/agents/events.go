package agents

import (
	"sync"
	"time"
)

type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event is the lifecycle notification emitted by an agent execution.
type Event struct {
	Agent string
	Type  EventType
	Error string
	At    time.Time
}

// EventBus is a typed callback registry. Subscribers are invoked
// synchronously in registration order, so tests can assert exact sequences.
type EventBus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewEventBus() *EventBus { return &EventBus{} }

func (b *EventBus) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

func (b *EventBus) publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]func(Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
