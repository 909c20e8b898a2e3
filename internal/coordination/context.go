// Package coordination holds the session-wide shared state that belongs to
// no single manager: the event bus, the set of entity refs currently being
// deleted, and the record open in a detail view. One Context is created at
// the session root and passed to every manager; it is never a package-level
// singleton so tests can build isolated instances.
package coordination

import (
	"sync"

	"stylesync/internal/domain"
	"stylesync/internal/eventbus"
)

// Context is the coordination context for one client session.
type Context struct {
	bus eventbus.EventBus

	mu           sync.Mutex
	deleting     map[string]struct{}
	activeDetail *domain.SessionDetail
}

// NewContext creates a coordination context around a fresh event bus.
func NewContext() *Context {
	return NewContextWithBus(eventbus.New())
}

// NewContextWithBus wraps an existing bus, for callers that already wired one.
func NewContextWithBus(bus eventbus.EventBus) *Context {
	return &Context{
		bus:      bus,
		deleting: make(map[string]struct{}),
	}
}

// Publish forwards to the underlying bus.
func (c *Context) Publish(event eventbus.DomainEvent) {
	c.bus.Publish(event)
}

// Subscribe forwards to the underlying bus.
func (c *Context) Subscribe(eventType eventbus.EventType, handler eventbus.EventHandler) func() {
	return c.bus.Subscribe(eventType, handler)
}

// SubscribeAll forwards to the underlying bus.
func (c *Context) SubscribeAll(handler eventbus.EventHandler) func() {
	return c.bus.SubscribeAll(handler)
}

// MarkDeleting records that ref has a deletion in flight. Any component may
// consult IsDeleting to grey the item out, regardless of which manager
// issued the deletion.
func (c *Context) MarkDeleting(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleting[ref] = struct{}{}
}

// UnmarkDeleting removes ref from the in-flight deletion set.
func (c *Context) UnmarkDeleting(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deleting, ref)
}

// IsDeleting reports whether ref currently has a deletion in flight.
func (c *Context) IsDeleting(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deleting[ref]
	return ok
}

// DeletingCount returns the number of refs with deletions in flight.
func (c *Context) DeletingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deleting)
}

// SetActiveDetail records which session detail is open in a detail view.
// Last write wins; nil clears the slot.
func (c *Context) SetActiveDetail(detail *domain.SessionDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeDetail = detail
}

// ActiveDetail returns the currently open session detail, or nil.
func (c *Context) ActiveDetail() *domain.SessionDetail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeDetail
}

// Close tears the context down: the subscriber registry is cleared and the
// auxiliary state reset. Called when the session root unmounts.
func (c *Context) Close() {
	c.bus.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleting = make(map[string]struct{})
	c.activeDetail = nil
}
