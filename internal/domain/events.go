package domain

// EventType represents the type of domain event
type EventType string

// Event types
const (
	EventItemSaved           EventType = "ItemSaved"
	EventItemDeleted         EventType = "ItemDeleted"
	EventItemRestored        EventType = "ItemRestored"
	EventItemUpdated         EventType = "ItemUpdated"
	EventHistoryRefreshed    EventType = "HistoryRefreshed"
	EventWishlistRefreshed   EventType = "WishlistRefreshed"
	EventBulkDeleteStarted   EventType = "BulkDeleteStarted"
	EventBulkDeleteCompleted EventType = "BulkDeleteCompleted"
	EventCollectionCreated   EventType = "CollectionCreated"
	EventCollectionUpdated   EventType = "CollectionUpdated"
	EventCollectionRemoved   EventType = "CollectionRemoved"
	EventItemMoved           EventType = "ItemMoved"
	EventReauthRequired      EventType = "ReauthRequired"
	EventError               EventType = "Error"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	Type() EventType
}

// ItemSavedEvent is emitted when a product was confirmed added to the wishlist.
// The full item is carried so other subscribers can warm their caches.
type ItemSavedEvent struct {
	Ref  string
	Item SavedItem
}

func (e ItemSavedEvent) Type() EventType { return EventItemSaved }

// ItemDeletedEvent is emitted when a deletion was confirmed by the backend.
type ItemDeletedEvent struct {
	Ref string
}

func (e ItemDeletedEvent) Type() EventType { return EventItemDeleted }

// ItemRestoredEvent is emitted when a soft-deleted record was restored.
type ItemRestoredEvent struct {
	Ref   string
	Entry HistoryEntry
}

func (e ItemRestoredEvent) Type() EventType { return EventItemRestored }

// ItemUpdatedEvent is emitted when an item edit was confirmed. Item carries
// the final backend state, not the optimistic one.
type ItemUpdatedEvent struct {
	Ref  string
	Item SavedItem
}

func (e ItemUpdatedEvent) Type() EventType { return EventItemUpdated }

// HistoryRefreshedEvent is emitted after a full history reset fetch,
// never after a pagination append.
type HistoryRefreshedEvent struct {
	Entries []HistoryEntry
	Total   int
}

func (e HistoryRefreshedEvent) Type() EventType { return EventHistoryRefreshed }

// WishlistRefreshedEvent is the wishlist equivalent of HistoryRefreshedEvent.
type WishlistRefreshedEvent struct {
	Items []SavedItem
	Total int
}

func (e WishlistRefreshedEvent) Type() EventType { return EventWishlistRefreshed }

// BulkDeleteStartedEvent is emitted before any per-item call of a bulk
// deletion goes out, carrying the full set of targets.
type BulkDeleteStartedEvent struct {
	Refs []string
}

func (e BulkDeleteStartedEvent) Type() EventType { return EventBulkDeleteStarted }

// BulkDeleteCompletedEvent is emitted once every per-item call has resolved.
// Succeeded and Failed together cover every ref from the started event.
type BulkDeleteCompletedEvent struct {
	Succeeded []string
	Failed    []string
}

func (e BulkDeleteCompletedEvent) Type() EventType { return EventBulkDeleteCompleted }

// CollectionCreatedEvent is emitted when a new collection was confirmed.
type CollectionCreatedEvent struct {
	Collection Collection
}

func (e CollectionCreatedEvent) Type() EventType { return EventCollectionCreated }

// CollectionUpdatedEvent is emitted when a collection edit was confirmed.
type CollectionUpdatedEvent struct {
	Collection Collection
}

func (e CollectionUpdatedEvent) Type() EventType { return EventCollectionUpdated }

// CollectionRemovedEvent is emitted when a collection deletion was confirmed.
type CollectionRemovedEvent struct {
	Ref string
}

func (e CollectionRemovedEvent) Type() EventType { return EventCollectionRemoved }

// ItemMovedEvent is emitted when a saved item was moved between collections.
type ItemMovedEvent struct {
	Ref  string
	From string
	To   string
}

func (e ItemMovedEvent) Type() EventType { return EventItemMoved }

// ReauthRequiredEvent is emitted when a credential refresh failed and the
// user has to log in again. ReturnTo is the location to restore afterwards.
type ReauthRequiredEvent struct {
	ReturnTo string
}

func (e ReauthRequiredEvent) Type() EventType { return EventReauthRequired }

// ErrorEvent is emitted when an operation failed in a way other components
// may want to surface.
type ErrorEvent struct {
	Message string
	Err     error
}

func (e ErrorEvent) Type() EventType { return EventError }
