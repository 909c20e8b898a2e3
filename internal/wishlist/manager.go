// Package wishlist is the stateful controller for the user's saved items.
// It owns its cached list exclusively: mutations apply optimistically under
// the manager's lock, reconcile with the backend outside it, and roll back
// from an explicit snapshot on failure. Other screens learn about confirmed
// changes through the coordination context's event bus, never by sharing
// the cache.
package wishlist

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"stylesync/internal/api"
	"stylesync/internal/coordination"
	"stylesync/internal/domain"
	"stylesync/internal/logic"
)

// State is the snapshot a view renders from.
type State struct {
	Items        []domain.SavedItem
	VisibleItems []domain.SavedItem
	Loading      logic.LoadingState
	Error        logic.ErrorState
	HasMore      bool
	TotalCount   int
}

// Manager is one wishlist hook instance. Two instances mounted by two
// different screens coordinate only through the event bus.
type Manager struct {
	client *api.Client
	coord  *coordination.Context

	mu         sync.Mutex
	items      []domain.SavedItem
	saved      map[string]bool // product id -> membership, warmed via CheckSaved
	filters    logic.Filters
	totalCount int
	hasMore    bool
	fetched    bool
	loading    logic.LoadingState
	lastErr    logic.ErrorState
	closed     bool

	pending *logic.PendingOps
	unsubs  []func()
}

// NewManager creates a wishlist manager and subscribes it to the events
// other instances publish, so a deletion elsewhere is reflected here too.
func NewManager(client *api.Client, coord *coordination.Context) *Manager {
	m := &Manager{
		client:  client,
		coord:   coord,
		saved:   make(map[string]bool),
		filters: logic.DefaultFilters(),
		pending: logic.NewPendingOps(),
	}

	m.unsubs = append(m.unsubs,
		coord.Subscribe(domain.EventItemDeleted, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.ItemDeletedEvent); ok {
				m.dropByProduct(ev.Ref)
			}
		}),
		coord.Subscribe(domain.EventItemSaved, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.ItemSavedEvent); ok {
				m.warmItem(ev.Item)
			}
		}),
		coord.Subscribe(domain.EventItemUpdated, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.ItemUpdatedEvent); ok {
				m.patchItem(ev.Item)
			}
		}),
		coord.Subscribe(domain.EventBulkDeleteCompleted, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.BulkDeleteCompletedEvent); ok {
				for _, ref := range ev.Succeeded {
					m.dropByProduct(ref)
				}
			}
		}),
	)
	return m
}

// Fetch loads one page from the backend. Offset 0 replaces the cached
// list; any other offset appends to it. A failed fetch leaves the previous
// cache untouched — stale-but-valid beats empty.
func (m *Manager) Fetch(ctx context.Context, limit, offset int) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.loading = logic.LoadingState{IsLoading: true, Message: "Loading wishlist..."}
	m.lastErr = logic.ErrorState{}
	m.mu.Unlock()

	page, err := m.client.ListSaved(ctx, limit, offset)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err
	}
	m.loading = logic.LoadingState{}
	if err != nil {
		m.lastErr = errState(err)
		m.mu.Unlock()
		return err
	}

	reset := offset == 0
	if reset {
		m.items = append([]domain.SavedItem(nil), page.Items...)
	} else {
		m.items = appendNew(m.items, page.Items)
	}
	for _, item := range page.Items {
		m.saved[item.ProductID] = true
	}
	m.totalCount = page.Pagination.TotalCount
	m.hasMore = len(m.items) < m.totalCount
	m.fetched = true
	items := append([]domain.SavedItem(nil), m.items...)
	total := m.totalCount
	m.mu.Unlock()

	if reset {
		m.coord.Publish(domain.WishlistRefreshedEvent{Items: items, Total: total})
	}
	return nil
}

// Remove deletes a product from the wishlist. The cache change is applied
// before the backend call and reverted if it fails. A second Remove for
// the same product while one is in flight is coalesced and returns false.
func (m *Manager) Remove(ctx context.Context, productID string) bool {
	op, ok := m.pending.Begin(productID, logic.OpRemove)
	if !ok {
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	removed, index, found := removeByProduct(&m.items, productID)
	m.mu.Unlock()

	if !found {
		m.pending.End(op)
		return false
	}

	m.coord.MarkDeleting(productID)
	err := m.client.RemoveSaved(ctx, productID)
	m.coord.UnmarkDeleting(productID)

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			insertAt(&m.items, removed, index)
		}
		m.lastErr = errState(err)
		m.mu.Unlock()
		log.Printf("wishlist: remove %s failed: %v", productID, err)
		return false
	}
	delete(m.saved, productID)
	if m.totalCount > 0 {
		m.totalCount--
	}
	m.mu.Unlock()

	m.coord.Publish(domain.ItemDeletedEvent{Ref: productID})
	return true
}

// Add saves a product. A provisional item appears in the cache immediately
// and is replaced by the backend's record on success, or removed again on
// failure.
func (m *Manager) Add(ctx context.Context, product domain.Product, notes string, tags []string) bool {
	op, ok := m.pending.Begin(product.ID, logic.OpAdd)
	if !ok {
		return false
	}

	provisional := domain.SavedItem{
		ID:        "pending-" + uuid.NewString(),
		ProductID: product.ID,
		Product:   product,
		Notes:     notes,
		Tags:      tags,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	m.items = append([]domain.SavedItem{provisional}, m.items...)
	m.saved[product.ID] = true
	m.mu.Unlock()

	item, err := m.client.AddSaved(ctx, product.ID, notes, tags, "")

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			dropByID(&m.items, provisional.ID)
			delete(m.saved, product.ID)
		}
		m.lastErr = errState(err)
		m.mu.Unlock()
		log.Printf("wishlist: add %s failed: %v", product.ID, err)
		return false
	}
	if current {
		replaceByID(&m.items, provisional.ID, *item)
		m.totalCount++
	}
	confirmed := *item
	m.mu.Unlock()

	m.coord.Publish(domain.ItemSavedEvent{Ref: confirmed.ProductID, Item: confirmed})
	return true
}

// Update edits a wishlist item's notes, tags or collection. Unlike Remove,
// a newer Update for the same item supersedes the in-flight one: the older
// call's response is recognized as stale and dropped, so the cache always
// converges on the newest edit no matter which response lands last.
func (m *Manager) Update(ctx context.Context, itemID string, updates api.SavedItemUpdate) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	snapshot, found := findByID(m.items, itemID)
	if !found {
		m.mu.Unlock()
		return false
	}
	// When this update supersedes one still in flight, the cache holds that
	// op's unconfirmed optimistic value; the inherited baseline is the last
	// state the backend actually confirmed, and rollback targets that.
	op, base := m.pending.Supersede(itemID, logic.OpUpdate, snapshot)
	if confirmed, ok := base.(domain.SavedItem); ok {
		snapshot = confirmed
	}
	patchInPlace(&m.items, itemID, updates)
	m.mu.Unlock()

	item, err := m.client.UpdateSaved(ctx, itemID, updates)

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			replaceByID(&m.items, itemID, snapshot)
		}
		m.lastErr = errState(err)
		m.mu.Unlock()
		log.Printf("wishlist: update %s failed: %v", itemID, err)
		return false
	}
	if !current {
		// Superseded by a newer update; its handler owns the cache now
		m.mu.Unlock()
		return true
	}
	replaceByID(&m.items, itemID, *item)
	confirmed := *item
	m.mu.Unlock()

	m.coord.Publish(domain.ItemUpdatedEvent{Ref: confirmed.ID, Item: confirmed})
	return true
}

// BulkResult reports the outcome of a bulk mutation. Partial failure is a
// normal outcome: Failed lists the refs whose call failed, and the two
// slices together cover every requested ref.
type BulkResult struct {
	Succeeded []string
	Failed    []string
}

// BulkRemove deletes several products. Per-item calls are issued
// independently; one failing never aborts the rest.
func (m *Manager) BulkRemove(ctx context.Context, productIDs []string) BulkResult {
	m.coord.Publish(domain.BulkDeleteStartedEvent{Refs: append([]string(nil), productIDs...)})

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		r  BulkResult
	)
	for _, id := range productIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ok := m.removeQuiet(ctx, id)
			mu.Lock()
			if ok {
				r.Succeeded = append(r.Succeeded, id)
			} else {
				r.Failed = append(r.Failed, id)
			}
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	m.coord.Publish(domain.BulkDeleteCompletedEvent{Succeeded: r.Succeeded, Failed: r.Failed})
	return r
}

// removeQuiet is Remove without the per-item confirmation event; bulk
// completion reports the whole outcome instead.
func (m *Manager) removeQuiet(ctx context.Context, productID string) bool {
	op, ok := m.pending.Begin(productID, logic.OpRemove)
	if !ok {
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	removed, index, found := removeByProduct(&m.items, productID)
	m.mu.Unlock()

	if !found {
		m.pending.End(op)
		return false
	}

	m.coord.MarkDeleting(productID)
	err := m.client.RemoveSaved(ctx, productID)
	m.coord.UnmarkDeleting(productID)

	current := m.pending.End(op)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return err == nil
	}
	if err != nil {
		if current {
			insertAt(&m.items, removed, index)
		}
		return false
	}
	delete(m.saved, productID)
	if m.totalCount > 0 {
		m.totalCount--
	}
	return true
}

// WarmMembership asks the backend which of the given products are saved
// and caches the answers for IsSaved.
func (m *Manager) WarmMembership(ctx context.Context, productIDs []string) error {
	status, err := m.client.CheckSaved(ctx, productIDs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	for id, saved := range status {
		m.saved[id] = saved
	}
	return nil
}

// IsSaved reports whether a product is known to be in the wishlist.
func (m *Manager) IsSaved(productID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[productID]
}

// SetFilters merges a partial filter update. No refetch happens: filtering
// and sorting are applied client-side over the cached list.
func (m *Manager) SetFilters(patch logic.FilterPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = logic.Apply(m.filters, patch)
}

// ResetFilters restores the default filter configuration.
func (m *Manager) ResetFilters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = logic.DefaultFilters()
}

// Filters returns the active filter configuration.
func (m *Manager) Filters() logic.Filters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filters
}

// State snapshots everything a view needs. VisibleItems is derived fresh
// from the cached list on every call; the cache itself is never reordered
// by filtering.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]domain.SavedItem(nil), m.items...)
	return State{
		Items:        items,
		VisibleItems: logic.VisibleItems(items, m.filters),
		Loading:      m.loading,
		Error:        m.lastErr,
		HasMore:      m.hasMore,
		TotalCount:   m.totalCount,
	}
}

// Items returns a copy of the cached list.
func (m *Manager) Items() []domain.SavedItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SavedItem(nil), m.items...)
}

// Close detaches the manager from the bus and marks it torn down. In-flight
// mutations finish their backend calls but no longer write into the cache.
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

// dropByProduct removes a product's item from the cache if present. Used
// by bus handlers; idempotent so the originating instance's own event is
// harmless.
func (m *Manager) dropByProduct(productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, _, found := removeByProduct(&m.items, productID); found {
		if m.totalCount > 0 {
			m.totalCount--
		}
	}
	delete(m.saved, productID)
}

func (m *Manager) warmItem(item domain.SavedItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.saved[item.ProductID] = true
	for _, existing := range m.items {
		if existing.ProductID == item.ProductID {
			return
		}
	}
	// Only warm a cache that has been fetched; an idle manager would
	// otherwise show a single stray item. A fetched-but-empty list is a
	// real list and does get warmed.
	if m.fetched {
		m.items = append([]domain.SavedItem{item}, m.items...)
		m.totalCount++
	}
}

func (m *Manager) patchItem(item domain.SavedItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	replaceByID(&m.items, item.ID, item)
}

func errState(err error) logic.ErrorState {
	return logic.ErrorState{HasError: true, Message: err.Error()}
}

func appendNew(items, page []domain.SavedItem) []domain.SavedItem {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		seen[item.ID] = true
	}
	for _, item := range page {
		if !seen[item.ID] {
			items = append(items, item)
		}
	}
	return items
}

func removeByProduct(items *[]domain.SavedItem, productID string) (domain.SavedItem, int, bool) {
	for i, item := range *items {
		if item.ProductID == productID {
			removed := item
			*items = append((*items)[:i], (*items)[i+1:]...)
			return removed, i, true
		}
	}
	return domain.SavedItem{}, 0, false
}

func insertAt(items *[]domain.SavedItem, item domain.SavedItem, index int) {
	if index > len(*items) {
		index = len(*items)
	}
	*items = append(*items, domain.SavedItem{})
	copy((*items)[index+1:], (*items)[index:])
	(*items)[index] = item
}

func findByID(items []domain.SavedItem, id string) (domain.SavedItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.SavedItem{}, false
}

func dropByID(items *[]domain.SavedItem, id string) {
	for i, item := range *items {
		if item.ID == id {
			*items = append((*items)[:i], (*items)[i+1:]...)
			return
		}
	}
}

func replaceByID(items *[]domain.SavedItem, id string, replacement domain.SavedItem) {
	for i, item := range *items {
		if item.ID == id {
			(*items)[i] = replacement
			return
		}
	}
}

func patchInPlace(items *[]domain.SavedItem, id string, updates api.SavedItemUpdate) {
	for i, item := range *items {
		if item.ID != id {
			continue
		}
		if updates.Notes != nil {
			item.Notes = *updates.Notes
		}
		if updates.Tags != nil {
			item.Tags = updates.Tags
		}
		if updates.CollectionID != nil {
			item.CollectionID = *updates.CollectionID
		}
		(*items)[i] = item
		return
	}
}
