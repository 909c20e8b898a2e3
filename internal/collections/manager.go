// Package collections is the stateful controller for the user's named
// collections: the collection list itself plus the item list of the one
// collection currently open. Mutations follow the optimistic pattern shared
// with the wishlist and history managers.
package collections

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"stylesync/internal/api"
	"stylesync/internal/coordination"
	"stylesync/internal/domain"
	"stylesync/internal/logic"
)

// State is the snapshot a view renders from.
type State struct {
	Collections        []domain.Collection
	VisibleCollections []domain.Collection
	OpenID             string
	OpenItems          []domain.SavedItem
	Loading            logic.LoadingState
	Error              logic.ErrorState
	HasMore            bool
	TotalCount         int
}

// Manager is one collections hook instance.
type Manager struct {
	client *api.Client
	coord  *coordination.Context

	mu          sync.Mutex
	collections []domain.Collection
	openID      string
	openItems   []domain.SavedItem
	searchQuery string
	totalCount  int
	hasMore     bool
	fetched     bool
	loading     logic.LoadingState
	lastErr     logic.ErrorState
	closed      bool

	pending *logic.PendingOps
	unsubs  []func()
}

// NewManager creates a collections manager wired to the coordination
// context.
func NewManager(client *api.Client, coord *coordination.Context) *Manager {
	m := &Manager{
		client:  client,
		coord:   coord,
		pending: logic.NewPendingOps(),
	}

	m.unsubs = append(m.unsubs,
		coord.Subscribe(domain.EventCollectionCreated, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.CollectionCreatedEvent); ok {
				m.warmCollection(ev.Collection)
			}
		}),
		coord.Subscribe(domain.EventCollectionRemoved, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.CollectionRemovedEvent); ok {
				m.dropCollection(ev.Ref)
			}
		}),
		coord.Subscribe(domain.EventCollectionUpdated, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.CollectionUpdatedEvent); ok {
				m.patchCollection(ev.Collection)
			}
		}),
		// A wishlist deletion elsewhere removes the item from an open
		// collection view too
		coord.Subscribe(domain.EventItemDeleted, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.ItemDeletedEvent); ok {
				m.dropOpenItemByProduct(ev.Ref)
			}
		}),
	)
	return m
}

// Fetch loads one page of collections; offset 0 resets, otherwise appends.
func (m *Manager) Fetch(ctx context.Context, limit, offset int) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.loading = logic.LoadingState{IsLoading: true, Message: "Loading collections..."}
	m.lastErr = logic.ErrorState{}
	m.mu.Unlock()

	page, err := m.client.ListCollections(ctx, limit, offset)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return err
	}
	m.loading = logic.LoadingState{}
	if err != nil {
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		return err
	}

	if offset == 0 {
		m.collections = append([]domain.Collection(nil), page.Collections...)
	} else {
		m.collections = appendNew(m.collections, page.Collections)
	}
	m.totalCount = page.Pagination.TotalCount
	m.hasMore = len(m.collections) < m.totalCount
	m.fetched = true
	return nil
}

// Create makes a new collection. A provisional record appears immediately
// and is replaced by the backend's on success, or removed on failure.
func (m *Manager) Create(ctx context.Context, name, description string) bool {
	ref := "create:" + name
	op, ok := m.pending.Begin(ref, logic.OpAdd)
	if !ok {
		return false
	}

	provisional := domain.Collection{
		ID:          "pending-" + uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	m.collections = append(m.collections, provisional)
	m.mu.Unlock()

	created, err := m.client.CreateCollection(ctx, name, description)

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			removeCollection(&m.collections, provisional.ID)
		}
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		m.mu.Unlock()
		log.Printf("collections: create %q failed: %v", name, err)
		return false
	}
	if current {
		replaceCollection(&m.collections, provisional.ID, *created)
		m.totalCount++
	}
	confirmed := *created
	m.mu.Unlock()

	m.coord.Publish(domain.CollectionCreatedEvent{Collection: confirmed})
	return true
}

// Update edits a collection's name or description. A newer update for the
// same collection supersedes the in-flight one.
func (m *Manager) Update(ctx context.Context, collectionID string, updates api.CollectionUpdate) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	snapshot, found := findCollection(m.collections, collectionID)
	if !found {
		m.mu.Unlock()
		return false
	}
	// A superseded in-flight update leaves its unconfirmed optimistic value
	// in the cache; roll back to the inherited baseline, the last state the
	// backend confirmed.
	op, base := m.pending.Supersede(collectionID, logic.OpUpdate, snapshot)
	if confirmed, ok := base.(domain.Collection); ok {
		snapshot = confirmed
	}
	patched := snapshot
	if updates.Name != nil {
		patched.Name = *updates.Name
	}
	if updates.Description != nil {
		patched.Description = *updates.Description
	}
	replaceCollection(&m.collections, collectionID, patched)
	m.mu.Unlock()

	updated, err := m.client.UpdateCollection(ctx, collectionID, updates)

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			replaceCollection(&m.collections, collectionID, snapshot)
		}
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		m.mu.Unlock()
		log.Printf("collections: update %s failed: %v", collectionID, err)
		return false
	}
	if !current {
		m.mu.Unlock()
		return true
	}
	replaceCollection(&m.collections, collectionID, *updated)
	confirmed := *updated
	m.mu.Unlock()

	m.coord.Publish(domain.CollectionUpdatedEvent{Collection: confirmed})
	return true
}

// Delete removes a collection with optimistic removal and rollback. The
// deleting-set is marked so every screen can grey the collection out.
func (m *Manager) Delete(ctx context.Context, collectionID string) bool {
	op, ok := m.pending.Begin(collectionID, logic.OpRemove)
	if !ok {
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	removed, index, found := removeCollectionAt(&m.collections, collectionID)
	m.mu.Unlock()

	if !found {
		m.pending.End(op)
		return false
	}

	m.coord.MarkDeleting(collectionID)
	err := m.client.DeleteCollection(ctx, collectionID)
	m.coord.UnmarkDeleting(collectionID)

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			insertCollection(&m.collections, removed, index)
		}
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		m.mu.Unlock()
		log.Printf("collections: delete %s failed: %v", collectionID, err)
		return false
	}
	if m.totalCount > 0 {
		m.totalCount--
	}
	if m.openID == collectionID {
		m.openID = ""
		m.openItems = nil
	}
	m.mu.Unlock()

	m.coord.Publish(domain.CollectionRemovedEvent{Ref: collectionID})
	return true
}

// Open loads a collection's items into the manager's open slot.
func (m *Manager) Open(ctx context.Context, collectionID string, limit, offset int) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.loading = logic.LoadingState{IsLoading: true, Message: "Loading collection..."}
	m.mu.Unlock()

	page, err := m.client.CollectionItems(ctx, collectionID, limit, offset)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return err
	}
	m.loading = logic.LoadingState{}
	if err != nil {
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		return err
	}
	if offset == 0 || m.openID != collectionID {
		m.openID = collectionID
		m.openItems = append([]domain.SavedItem(nil), page.Items...)
	} else {
		m.openItems = append(m.openItems, page.Items...)
	}
	return nil
}

// Reorder persists a new ordering of the open collection's items. The
// cached order changes immediately and snaps back if the backend rejects
// it.
func (m *Manager) Reorder(ctx context.Context, collectionID string, orderedItemIDs []string) bool {
	op, ok := m.pending.Begin(collectionID, logic.OpReorder)
	if !ok {
		return false
	}

	m.mu.Lock()
	if m.closed || m.openID != collectionID {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	snapshot := append([]domain.SavedItem(nil), m.openItems...)
	m.openItems = reorderItems(m.openItems, orderedItemIDs)
	m.mu.Unlock()

	positions := make([]api.ItemPosition, len(orderedItemIDs))
	for i, id := range orderedItemIDs {
		positions[i] = api.ItemPosition{SavedItemID: id, Position: i}
	}
	err := m.client.ReorderCollection(ctx, collectionID, positions)

	current := m.pending.End(op)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return err == nil
	}
	if err != nil {
		if current && m.openID == collectionID {
			m.openItems = snapshot
		}
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		log.Printf("collections: reorder %s failed: %v", collectionID, err)
		return false
	}
	return true
}

// MoveItem moves a saved item from one collection to another, adjusting
// the open item list and both collections' counts optimistically.
func (m *Manager) MoveItem(ctx context.Context, savedItemID, fromID, toID string) bool {
	op, ok := m.pending.Begin(savedItemID, logic.OpMove)
	if !ok {
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	var moved *domain.SavedItem
	var movedIndex int
	if m.openID == fromID {
		if item, i, found := removeOpenItem(&m.openItems, savedItemID); found {
			moved = &item
			movedIndex = i
		}
	}
	adjustCount(&m.collections, fromID, -1)
	adjustCount(&m.collections, toID, +1)
	m.mu.Unlock()

	err := m.client.MoveItem(ctx, savedItemID, fromID, toID)

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			if moved != nil && m.openID == fromID {
				insertOpenItem(&m.openItems, *moved, movedIndex)
			}
			adjustCount(&m.collections, fromID, +1)
			adjustCount(&m.collections, toID, -1)
		}
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		m.mu.Unlock()
		log.Printf("collections: move %s failed: %v", savedItemID, err)
		return false
	}
	m.mu.Unlock()

	m.coord.Publish(domain.ItemMovedEvent{Ref: savedItemID, From: fromID, To: toID})
	return true
}

// SetSearchQuery filters the visible collection list client-side.
func (m *Manager) SetSearchQuery(query string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchQuery = query
}

// ResetFilters clears the search query. Collections have only the one facet.
func (m *Manager) ResetFilters() {
	m.SetSearchQuery("")
}

// State snapshots everything a view needs.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	cols := append([]domain.Collection(nil), m.collections...)
	return State{
		Collections:        cols,
		VisibleCollections: logic.VisibleCollections(cols, m.searchQuery),
		OpenID:             m.openID,
		OpenItems:          append([]domain.SavedItem(nil), m.openItems...),
		Loading:            m.loading,
		Error:              m.lastErr,
		HasMore:            m.hasMore,
		TotalCount:         m.totalCount,
	}
}

// Close detaches the manager from the bus; in-flight mutations stop
// writing into the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

func (m *Manager) warmCollection(c domain.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for _, existing := range m.collections {
		if existing.ID == c.ID {
			return
		}
	}
	// A fetched-but-empty list is a real list and still gets warmed; only
	// a never-fetched manager stays idle.
	if m.fetched {
		m.collections = append(m.collections, c)
		m.totalCount++
	}
}

func (m *Manager) dropCollection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, _, found := removeCollectionAt(&m.collections, id); found {
		if m.totalCount > 0 {
			m.totalCount--
		}
	}
	if m.openID == id {
		m.openID = ""
		m.openItems = nil
	}
}

func (m *Manager) patchCollection(c domain.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	replaceCollection(&m.collections, c.ID, c)
}

func (m *Manager) dropOpenItemByProduct(productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for i, item := range m.openItems {
		if item.ProductID == productID {
			m.openItems = append(m.openItems[:i], m.openItems[i+1:]...)
			return
		}
	}
}

func appendNew(cols, page []domain.Collection) []domain.Collection {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c.ID] = true
	}
	for _, c := range page {
		if !seen[c.ID] {
			cols = append(cols, c)
		}
	}
	return cols
}

func findCollection(cols []domain.Collection, id string) (domain.Collection, bool) {
	for _, c := range cols {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Collection{}, false
}

func removeCollection(cols *[]domain.Collection, id string) {
	removeCollectionAt(cols, id)
}

func removeCollectionAt(cols *[]domain.Collection, id string) (domain.Collection, int, bool) {
	for i, c := range *cols {
		if c.ID == id {
			removed := c
			*cols = append((*cols)[:i], (*cols)[i+1:]...)
			return removed, i, true
		}
	}
	return domain.Collection{}, 0, false
}

func insertCollection(cols *[]domain.Collection, c domain.Collection, index int) {
	if index > len(*cols) {
		index = len(*cols)
	}
	*cols = append(*cols, domain.Collection{})
	copy((*cols)[index+1:], (*cols)[index:])
	(*cols)[index] = c
}

func replaceCollection(cols *[]domain.Collection, id string, replacement domain.Collection) {
	for i, c := range *cols {
		if c.ID == id {
			(*cols)[i] = replacement
			return
		}
	}
}

func adjustCount(cols *[]domain.Collection, id string, delta int) {
	for i, c := range *cols {
		if c.ID == id {
			c.ItemCount += delta
			if c.ItemCount < 0 {
				c.ItemCount = 0
			}
			(*cols)[i] = c
			return
		}
	}
}

func removeOpenItem(items *[]domain.SavedItem, id string) (domain.SavedItem, int, bool) {
	for i, item := range *items {
		if item.ID == id {
			removed := item
			*items = append((*items)[:i], (*items)[i+1:]...)
			return removed, i, true
		}
	}
	return domain.SavedItem{}, 0, false
}

func insertOpenItem(items *[]domain.SavedItem, item domain.SavedItem, index int) {
	if index > len(*items) {
		index = len(*items)
	}
	*items = append(*items, domain.SavedItem{})
	copy((*items)[index+1:], (*items)[index:])
	(*items)[index] = item
}

// reorderItems rebuilds the list in the order named by ids; items not
// named keep their relative order at the end.
func reorderItems(items []domain.SavedItem, ids []string) []domain.SavedItem {
	byID := make(map[string]domain.SavedItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]domain.SavedItem, 0, len(items))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
			used[id] = true
		}
	}
	for _, item := range items {
		if !used[item.ID] {
			out = append(out, item)
		}
	}
	return out
}
