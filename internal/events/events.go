package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"farmrent/internal/models"
)

const (
	EventRequestCreated   = "rental_request.created"
	EventRequestAccepted  = "rental_request.accepted"
	EventRequestRejected  = "rental_request.rejected"
	EventRequestDisputed  = "rental_request.disputed"
	EventRequestCompleted = "rental_request.completed"
	EventRequestCancelled = "rental_request.cancelled"
)

// Event carries the full record of a request after a mutation. Receivers
// treat it as read-only.
type Event struct {
	Type        string                `json:"type"`
	Origin      string                `json:"origin"`
	WindowID    string                `json:"window_id"`
	Seq         uint64                `json:"seq"`
	PublishedAt time.Time             `json:"published_at"`
	Request     *models.RentalRequest `json:"request"`
}

// Handler reacts to an event. Handlers must not block for long: they run on
// the publisher's goroutine for the local bus and on the receive loop for Redis.
type Handler func(event *Event)

// Channel is a fire-and-forget broadcast scoped to one origin. There is no
// history replay: a subscriber only sees events published after it joined.
type Channel interface {
	Name() string
	Publish(ctx context.Context, event *Event) error
	Subscribe(handler Handler) (unsubscribe func())
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]Handler
	nextID      uint64
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[uint64]Handler)}
}

func (b *EventBus) Name() string { return "local" }

func (b *EventBus) Subscribe(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

// Publish notifies every subscriber synchronously.
func (b *EventBus) Publish(_ context.Context, event *Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if event.PublishedAt.IsZero() {
		event.PublishedAt = time.Now().UTC()
	}

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}

// Subscribers returns the number of registered handlers.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func Encode(event *Event) ([]byte, error) {
	return json.Marshal(event)
}

func Decode(raw []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// TypeForStatus names the event emitted when a request enters status.
func TypeForStatus(status models.RequestStatus) string {
	switch status {
	case models.StatusConfirmed:
		return EventRequestAccepted
	case models.StatusRejected:
		return EventRequestRejected
	case models.StatusCompleted:
		return EventRequestCompleted
	case models.StatusCancelled:
		return EventRequestCancelled
	default:
		return EventRequestCreated
	}
}
