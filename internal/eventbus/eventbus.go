package eventbus

import (
	"log"
	"runtime/debug"
	"sync"

	"stylesync/internal/domain"
)

// Re-export domain types for convenience
type DomainEvent = domain.DomainEvent
type EventType = domain.EventType

// Event type constants
const (
	EventItemSaved           = domain.EventItemSaved
	EventItemDeleted         = domain.EventItemDeleted
	EventItemRestored        = domain.EventItemRestored
	EventItemUpdated         = domain.EventItemUpdated
	EventHistoryRefreshed    = domain.EventHistoryRefreshed
	EventWishlistRefreshed   = domain.EventWishlistRefreshed
	EventBulkDeleteStarted   = domain.EventBulkDeleteStarted
	EventBulkDeleteCompleted = domain.EventBulkDeleteCompleted
	EventCollectionCreated   = domain.EventCollectionCreated
	EventCollectionUpdated   = domain.EventCollectionUpdated
	EventCollectionRemoved   = domain.EventCollectionRemoved
	EventItemMoved           = domain.EventItemMoved
	EventReauthRequired      = domain.EventReauthRequired
	EventError               = domain.EventError
)

// Re-export domain event types
type ItemSavedEvent = domain.ItemSavedEvent
type ItemDeletedEvent = domain.ItemDeletedEvent
type ItemRestoredEvent = domain.ItemRestoredEvent
type ItemUpdatedEvent = domain.ItemUpdatedEvent
type HistoryRefreshedEvent = domain.HistoryRefreshedEvent
type WishlistRefreshedEvent = domain.WishlistRefreshedEvent
type BulkDeleteStartedEvent = domain.BulkDeleteStartedEvent
type BulkDeleteCompletedEvent = domain.BulkDeleteCompletedEvent
type CollectionCreatedEvent = domain.CollectionCreatedEvent
type CollectionUpdatedEvent = domain.CollectionUpdatedEvent
type CollectionRemovedEvent = domain.CollectionRemovedEvent
type ItemMovedEvent = domain.ItemMovedEvent
type ReauthRequiredEvent = domain.ReauthRequiredEvent
type ErrorEvent = domain.ErrorEvent

// EventHandler is a function that handles domain events
type EventHandler func(DomainEvent)

// EventBus is the interface for the event bus.
//
// Publish delivers the event synchronously to every handler registered at
// the moment of the call, in registration order. There is no buffering and
// no replay: a handler registered after a publish never sees that event.
type EventBus interface {
	Publish(event DomainEvent)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
	Close()
}

type subscription struct {
	id        uint64
	eventType EventType // empty matches every event
	handler   EventHandler
}

// bus is the concrete implementation of EventBus
type bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	closed bool
}

// New creates a new event bus
func New() EventBus {
	return &bus{}
}

// Publish delivers an event to all current subscribers in registration
// order. A handler that panics is recovered and logged so the remaining
// handlers still run.
func (b *bus) Publish(event DomainEvent) {
	b.mu.Lock()
	// Copy so handlers can subscribe/unsubscribe during delivery
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	switch event.Type() {
	case EventWishlistRefreshed, EventHistoryRefreshed:
		// Don't log refreshes, they fire on every page load
	default:
		log.Printf("EventBus: Publishing event %s", event.Type())
	}

	for _, sub := range subs {
		if sub.eventType != "" && sub.eventType != event.Type() {
			continue
		}
		deliver(sub.handler, event)
	}
}

func deliver(h EventHandler, event DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Event handler panic for %s: %v\nStack: %s", event.Type(), r, debug.Stack())
		}
	}()
	h(event)
}

// Subscribe subscribes to events of a specific type
// Returns an unsubscribe function
func (b *bus) Subscribe(eventType EventType, handler EventHandler) func() {
	return b.add(eventType, handler)
}

// SubscribeAll subscribes to every event regardless of type
func (b *bus) SubscribeAll(handler EventHandler) func() {
	return b.add("", handler)
}

func (b *bus) add(eventType EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, eventType: eventType, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
	}
}

// Close clears the subscriber registry. Publishing after Close is a no-op
// delivery-wise; the bus holds no other resources.
func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
	b.closed = true
}
