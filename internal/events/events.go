package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Booking lifecycle event types.
const (
	BookingCreated     = "booking.created"
	BookingUpdated     = "booking.updated"
	BookingCancelled   = "booking.cancelled"
	BookingRescheduled = "booking.rescheduled"
)

// AllTypes subscribes a handler to every event type.
const AllTypes = "*"

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	log         zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(log zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		log:         log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for a given event type or AllTypes.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type, then AllTypes subscribers.
// Handlers run synchronously; their errors are logged and returned joined.
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[AllTypes]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.log.Warn().Err(err).Str("event_id", event.ID).Str("type", event.Type).Msg("event handler failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON marshals payload and publishes it under key.
func (b *EventBus) PublishJSON(ctx context.Context, eventType, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return b.Publish(ctx, Event{Type: eventType, Key: key, Payload: data})
}
