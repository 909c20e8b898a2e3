// Package history is the stateful controller for the user's search
// history. It follows the same optimistic-mutation pattern as the wishlist
// manager; deletions are soft on the backend, so a delete can be undone
// with Restore as a separate user action.
package history

import (
	"context"
	"log"
	"sync"

	"stylesync/internal/api"
	"stylesync/internal/coordination"
	"stylesync/internal/domain"
	"stylesync/internal/logic"
)

// State is the snapshot a view renders from.
type State struct {
	Entries        []domain.HistoryEntry
	VisibleEntries []domain.HistoryEntry
	Loading        logic.LoadingState
	Error          logic.ErrorState
	HasMore        bool
	TotalCount     int
}

// Manager is one history hook instance.
type Manager struct {
	client *api.Client
	coord  *coordination.Context

	mu          sync.Mutex
	entries     []domain.HistoryEntry
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

// NewManager creates a history manager wired to the coordination context.
func NewManager(client *api.Client, coord *coordination.Context) *Manager {
	m := &Manager{
		client:  client,
		coord:   coord,
		pending: logic.NewPendingOps(),
	}

	m.unsubs = append(m.unsubs,
		coord.Subscribe(domain.EventItemDeleted, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.ItemDeletedEvent); ok {
				m.dropEntry(ev.Ref)
			}
		}),
		coord.Subscribe(domain.EventItemRestored, func(e domain.DomainEvent) {
			if ev, ok := e.(domain.ItemRestoredEvent); ok {
				m.warmEntry(ev.Entry)
			}
		}),
	)
	return m
}

// Fetch loads one page of history. Offset 0 replaces the cache and
// publishes HistoryRefreshed; pagination appends publish nothing.
func (m *Manager) Fetch(ctx context.Context, limit, offset int, includeDetails bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.loading = logic.LoadingState{IsLoading: true, Message: "Loading search history..."}
	m.lastErr = logic.ErrorState{}
	m.mu.Unlock()

	page, err := m.client.ListHistory(ctx, limit, offset, includeDetails)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err
	}
	m.loading = logic.LoadingState{}
	if err != nil {
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		m.mu.Unlock()
		return err
	}

	reset := offset == 0
	if reset {
		m.entries = append([]domain.HistoryEntry(nil), page.Entries...)
	} else {
		m.entries = appendNew(m.entries, page.Entries)
	}
	m.totalCount = page.Pagination.TotalCount
	m.hasMore = len(m.entries) < m.totalCount
	m.fetched = true
	entries := append([]domain.HistoryEntry(nil), m.entries...)
	total := m.totalCount
	m.mu.Unlock()

	if reset {
		m.coord.Publish(domain.HistoryRefreshedEvent{Entries: entries, Total: total})
	}
	return nil
}

// Delete soft-deletes one history entry with optimistic removal and
// rollback, coalescing duplicate in-flight deletions.
func (m *Manager) Delete(ctx context.Context, historyID string) bool {
	op, ok := m.pending.Begin(historyID, logic.OpRemove)
	if !ok {
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	removed, index, found := removeEntry(&m.entries, historyID)
	m.mu.Unlock()

	if !found {
		m.pending.End(op)
		return false
	}

	m.coord.MarkDeleting(historyID)
	err := m.client.DeleteHistory(ctx, historyID)
	m.coord.UnmarkDeleting(historyID)

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			insertEntry(&m.entries, removed, index)
		}
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		m.mu.Unlock()
		log.Printf("history: delete %s failed: %v", historyID, err)
		return false
	}
	if m.totalCount > 0 {
		m.totalCount--
	}
	m.mu.Unlock()

	m.coord.Publish(domain.ItemDeletedEvent{Ref: historyID})
	return true
}

// Restore undoes a soft deletion. The entry reappears in the cache
// immediately and is removed again if the backend rejects the restore.
func (m *Manager) Restore(ctx context.Context, entry domain.HistoryEntry) bool {
	op, ok := m.pending.Begin(entry.ID, logic.OpRestore)
	if !ok {
		return false
	}

	restored := entry
	restored.DeletedAt = nil

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	insertByCreatedAt(&m.entries, restored)
	m.mu.Unlock()

	err := m.client.RestoreHistory(ctx, entry.ID)

	current := m.pending.End(op)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err == nil
	}
	if err != nil {
		if current {
			removeEntry(&m.entries, entry.ID)
		}
		m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		m.mu.Unlock()
		log.Printf("history: restore %s failed: %v", entry.ID, err)
		return false
	}
	m.totalCount++
	m.mu.Unlock()

	m.coord.Publish(domain.ItemRestoredEvent{Ref: entry.ID, Entry: restored})
	return true
}

// BulkDelete soft-deletes several entries, per-item calls issued
// independently; partial failure is a normal, reported outcome.
func (m *Manager) BulkDelete(ctx context.Context, historyIDs []string) (succeeded, failed []string) {
	m.coord.Publish(domain.BulkDeleteStartedEvent{Refs: append([]string(nil), historyIDs...)})

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range historyIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ok := m.deleteQuiet(ctx, id)
			mu.Lock()
			if ok {
				succeeded = append(succeeded, id)
			} else {
				failed = append(failed, id)
			}
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	m.coord.Publish(domain.BulkDeleteCompletedEvent{Succeeded: succeeded, Failed: failed})
	return succeeded, failed
}

func (m *Manager) deleteQuiet(ctx context.Context, historyID string) bool {
	op, ok := m.pending.Begin(historyID, logic.OpRemove)
	if !ok {
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.pending.End(op)
		return false
	}
	removed, index, found := removeEntry(&m.entries, historyID)
	m.mu.Unlock()

	if !found {
		m.pending.End(op)
		return false
	}

	m.coord.MarkDeleting(historyID)
	err := m.client.DeleteHistory(ctx, historyID)
	m.coord.UnmarkDeleting(historyID)

	current := m.pending.End(op)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return err == nil
	}
	if err != nil {
		if current {
			insertEntry(&m.entries, removed, index)
		}
		return false
	}
	if m.totalCount > 0 {
		m.totalCount--
	}
	return true
}

// OpenSession fetches the full detail graph for one session and records it
// as the active detail record, so actions elsewhere ("redo this search",
// "delete this search") can identify it without prop drilling.
func (m *Manager) OpenSession(ctx context.Context, sessionID string) (*domain.SessionDetail, error) {
	detail, err := m.client.SessionDetail(ctx, sessionID)
	if err != nil {
		m.mu.Lock()
		if !m.closed {
			m.lastErr = logic.ErrorState{HasError: true, Message: err.Error()}
		}
		m.mu.Unlock()
		return nil, err
	}
	m.coord.SetActiveDetail(detail)
	return detail, nil
}

// CloseSession clears the active detail record if it is this session.
func (m *Manager) CloseSession(sessionID string) {
	if d := m.coord.ActiveDetail(); d != nil && d.SessionID == sessionID {
		m.coord.SetActiveDetail(nil)
	}
}

// SetSearchQuery filters the visible list client-side; no refetch.
func (m *Manager) SetSearchQuery(query string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchQuery = query
}

// ResetFilters clears the search query. History has only the one facet.
func (m *Manager) ResetFilters() {
	m.SetSearchQuery("")
}

// State snapshots everything a view needs.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := append([]domain.HistoryEntry(nil), m.entries...)
	return State{
		Entries:        entries,
		VisibleEntries: logic.VisibleHistory(entries, m.searchQuery),
		Loading:        m.loading,
		Error:          m.lastErr,
		HasMore:        m.hasMore,
		TotalCount:     m.totalCount,
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

func (m *Manager) dropEntry(historyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, _, found := removeEntry(&m.entries, historyID); found {
		if m.totalCount > 0 {
			m.totalCount--
		}
	}
}

func (m *Manager) warmEntry(entry domain.HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for _, existing := range m.entries {
		if existing.ID == entry.ID {
			return
		}
	}
	// A fetched-but-empty list is a real list and still gets warmed; only
	// a never-fetched manager stays idle.
	if m.fetched {
		insertByCreatedAt(&m.entries, entry)
		m.totalCount++
	}
}

func appendNew(entries, page []domain.HistoryEntry) []domain.HistoryEntry {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.ID] = true
	}
	for _, e := range page {
		if !seen[e.ID] {
			entries = append(entries, e)
		}
	}
	return entries
}

func removeEntry(entries *[]domain.HistoryEntry, id string) (domain.HistoryEntry, int, bool) {
	for i, e := range *entries {
		if e.ID == id {
			removed := e
			*entries = append((*entries)[:i], (*entries)[i+1:]...)
			return removed, i, true
		}
	}
	return domain.HistoryEntry{}, 0, false
}

func insertEntry(entries *[]domain.HistoryEntry, entry domain.HistoryEntry, index int) {
	if index > len(*entries) {
		index = len(*entries)
	}
	*entries = append(*entries, domain.HistoryEntry{})
	copy((*entries)[index+1:], (*entries)[index:])
	(*entries)[index] = entry
}

// insertByCreatedAt keeps the cache in the newest-first order the backend
// returns it in.
func insertByCreatedAt(entries *[]domain.HistoryEntry, entry domain.HistoryEntry) {
	at := len(*entries)
	for i, e := range *entries {
		if entryBefore(entry, e) {
			continue
		}
		at = i
		break
	}
	insertEntry(entries, entry, at)
}

func entryBefore(a, b domain.HistoryEntry) bool {
	return a.CreatedAt.Before(b.CreatedAt) || (a.CreatedAt.Equal(b.CreatedAt) && a.ID < b.ID)
}
