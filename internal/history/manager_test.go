package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stylesync/internal/api"
	"stylesync/internal/coordination"
	"stylesync/internal/domain"
	"stylesync/internal/identity"
)

func newTestManager(t *testing.T, handler http.Handler) (*Manager, *coordination.Context) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	coord := coordination.NewContext()
	client := api.New(srv.URL, identity.NewStatic("tok", ""))
	m := NewManager(client, coord)
	t.Cleanup(m.Close)
	return m, coord
}

func writeOK(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	payload["success"] = true
	json.NewEncoder(w).Encode(payload)
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg, "error_code": code})
}

func makeEntries(start, n int) []domain.HistoryEntry {
	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	entries := make([]domain.HistoryEntry, 0, n)
	// Newest first, the order the backend returns.
	for i := start; i < start+n; i++ {
		entries = append(entries, domain.HistoryEntry{
			ID:            fmt.Sprintf("hist-%d", i),
			SessionID:     fmt.Sprintf("sess-%d", i),
			ImageFilename: fmt.Sprintf("outfit-%d.jpg", i),
			ItemCount:     2,
			ProductCount:  10,
			CreatedAt:     base.Add(-time.Duration(i) * time.Hour),
		})
	}
	return entries
}

func TestFetchPublishesRefreshOnlyOnReset(t *testing.T) {
	m, coord := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "0":
			writeOK(w, map[string]any{
				"history":    makeEntries(0, 10),
				"pagination": domain.Pagination{TotalCount: 20},
			})
		case "10":
			writeOK(w, map[string]any{
				"history":    makeEntries(10, 10),
				"pagination": domain.Pagination{TotalCount: 20},
			})
		}
	}))

	var refreshes atomic.Int32
	coord.Subscribe(domain.EventHistoryRefreshed, func(domain.DomainEvent) {
		refreshes.Add(1)
	})

	ctx := context.Background()
	require.NoError(t, m.Fetch(ctx, 10, 0, false))
	require.Equal(t, int32(1), refreshes.Load())

	require.NoError(t, m.Fetch(ctx, 10, 10, false))
	require.Equal(t, int32(1), refreshes.Load(), "pagination append publishes nothing")

	st := m.State()
	require.Len(t, st.Entries, 20)
	require.False(t, st.HasMore)

	require.NoError(t, m.Fetch(ctx, 10, 0, false))
	require.Equal(t, int32(2), refreshes.Load())
	require.Len(t, m.State().Entries, 10)
}

func TestDeleteRollbackRestoresOrder(t *testing.T) {
	var fail atomic.Bool
	m, _ := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/history":
			writeOK(w, map[string]any{
				"history":    makeEntries(0, 4),
				"pagination": domain.Pagination{TotalCount: 4},
			})
		case r.Method == http.MethodDelete:
			if fail.Load() {
				writeErr(w, 500, "query failed", "DB_QUERY_ERROR")
				return
			}
			writeOK(w, map[string]any{})
		}
	}))

	ctx := context.Background()
	require.NoError(t, m.Fetch(ctx, 4, 0, false))
	before := m.State().Entries

	fail.Store(true)
	require.False(t, m.Delete(ctx, "hist-1"))
	require.Equal(t, before, m.State().Entries)

	fail.Store(false)
	require.True(t, m.Delete(ctx, "hist-1"))
	st := m.State()
	require.Len(t, st.Entries, 3)
	require.Equal(t, 3, st.TotalCount)
}

func TestRestoreReinsertsByCreatedAt(t *testing.T) {
	var fail atomic.Bool
	m, _ := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/history":
			entries := makeEntries(0, 4)
			// Entry 2 was soft-deleted earlier and is absent from the page.
			entries = append(entries[:2], entries[3:]...)
			writeOK(w, map[string]any{
				"history":    entries,
				"pagination": domain.Pagination{TotalCount: 3},
			})
		case strings.HasSuffix(r.URL.Path, "/restore"):
			if fail.Load() {
				writeErr(w, 404, "history entry not found", "")
				return
			}
			writeOK(w, map[string]any{})
		}
	}))

	ctx := context.Background()
	require.NoError(t, m.Fetch(ctx, 10, 0, false))

	deletedAt := time.Now().UTC()
	tombstone := makeEntries(2, 1)[0]
	tombstone.DeletedAt = &deletedAt

	// Failed restore takes the entry back out.
	fail.Store(true)
	require.False(t, m.Restore(ctx, tombstone))
	require.Len(t, m.State().Entries, 3)

	fail.Store(false)
	require.True(t, m.Restore(ctx, tombstone))
	st := m.State()
	require.Len(t, st.Entries, 4)
	require.Equal(t, 4, st.TotalCount)

	// Back in its chronological slot, tombstone cleared.
	ids := make([]string, len(st.Entries))
	for i, e := range st.Entries {
		ids[i] = e.ID
	}
	require.Equal(t, []string{"hist-0", "hist-1", "hist-2", "hist-3"}, ids)
	require.Nil(t, st.Entries[2].DeletedAt)
}

func TestBulkDeletePartialFailure(t *testing.T) {
	m, _ := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/history":
			writeOK(w, map[string]any{
				"history":    makeEntries(0, 5),
				"pagination": domain.Pagination{TotalCount: 5},
			})
		case r.Method == http.MethodDelete:
			if strings.Contains(r.URL.Path, "hist-0") || strings.Contains(r.URL.Path, "hist-4") {
				writeErr(w, 500, "timed out", "TIMEOUT")
				return
			}
			writeOK(w, map[string]any{})
		}
	}))

	ctx := context.Background()
	require.NoError(t, m.Fetch(ctx, 5, 0, false))

	succeeded, failed := m.BulkDelete(ctx, []string{"hist-0", "hist-1", "hist-2", "hist-3", "hist-4"})
	require.ElementsMatch(t, []string{"hist-1", "hist-2", "hist-3"}, succeeded)
	require.ElementsMatch(t, []string{"hist-0", "hist-4"}, failed)

	st := m.State()
	require.Len(t, st.Entries, 2)
	require.Equal(t, 2, st.TotalCount)
}

func TestOpenAndCloseSession(t *testing.T) {
	m, coord := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/session") {
			writeOK(w, map[string]any{
				"session": domain.SessionDetail{
					SessionID:     "sess-1",
					ImageFilename: "outfit-1.jpg",
					ClothingItems: []domain.ClothingItem{
						{Query: "red jacket", ItemType: "jacket"},
					},
				},
			})
		}
	}))

	detail, err := m.OpenSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", detail.SessionID)
	require.Equal(t, detail, coord.ActiveDetail(), "detail recorded on the shared context")

	// Closing a different session leaves the record alone.
	m.CloseSession("sess-other")
	require.NotNil(t, coord.ActiveDetail())

	m.CloseSession("sess-1")
	require.Nil(t, coord.ActiveDetail())
}

func TestOpenSessionErrorLeavesNoActiveDetail(t *testing.T) {
	m, coord := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, 404, "session not found", "")
	}))

	_, err := m.OpenSession(context.Background(), "sess-missing")
	require.True(t, api.IsKind(err, api.KindNotFound))
	require.Nil(t, coord.ActiveDetail())
	require.True(t, m.State().Error.HasError)
}

func TestRestorePropagatesAcrossInstances(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/history":
			entries := makeEntries(0, 3)
			entries = append(entries[:1], entries[2:]...)
			writeOK(w, map[string]any{
				"history":    entries,
				"pagination": domain.Pagination{TotalCount: 2},
			})
		case strings.HasSuffix(r.URL.Path, "/restore"):
			writeOK(w, map[string]any{})
		}
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	coord := coordination.NewContext()
	client := api.New(srv.URL, identity.NewStatic("tok", ""))
	a := NewManager(client, coord)
	defer a.Close()
	b := NewManager(client, coord)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, a.Fetch(ctx, 10, 0, false))
	require.NoError(t, b.Fetch(ctx, 10, 0, false))

	deletedAt := time.Now().UTC()
	tombstone := makeEntries(1, 1)[0]
	tombstone.DeletedAt = &deletedAt
	require.True(t, a.Restore(ctx, tombstone))

	require.Len(t, b.State().Entries, 3, "restore reached the other instance over the bus")
	require.Equal(t, 3, b.State().TotalCount)
}

func TestRestoreReachesInstanceWithEmptyFetchedList(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/history":
			writeOK(w, map[string]any{
				"history":    []domain.HistoryEntry{},
				"pagination": domain.Pagination{TotalCount: 0},
			})
		case strings.HasSuffix(r.URL.Path, "/restore"):
			writeOK(w, map[string]any{})
		}
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	coord := coordination.NewContext()
	client := api.New(srv.URL, identity.NewStatic("tok", ""))
	a := NewManager(client, coord)
	defer a.Close()
	b := NewManager(client, coord)
	defer b.Close()
	idle := NewManager(client, coord)
	defer idle.Close()

	ctx := context.Background()
	require.NoError(t, a.Fetch(ctx, 10, 0, false))
	require.NoError(t, b.Fetch(ctx, 10, 0, false))
	require.Empty(t, b.State().Entries, "fetched and genuinely empty")

	deletedAt := time.Now().UTC()
	tombstone := makeEntries(0, 1)[0]
	tombstone.DeletedAt = &deletedAt
	require.True(t, a.Restore(ctx, tombstone))

	require.Len(t, b.State().Entries, 1, "empty-but-fetched list still warms")
	require.Equal(t, 1, b.State().TotalCount)
	require.Empty(t, idle.State().Entries, "never-fetched manager stays idle")
}

func TestSearchQueryShapesVisibleOnly(t *testing.T) {
	m, _ := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]any{
			"history": []domain.HistoryEntry{
				{ID: "h1", ImageFilename: "beach-day.jpg", CreatedAt: time.Now()},
				{ID: "h2", ImageFilename: "office-fit.png", CreatedAt: time.Now().Add(-time.Hour)},
			},
			"pagination": domain.Pagination{TotalCount: 2},
		})
	}))

	require.NoError(t, m.Fetch(context.Background(), 10, 0, false))

	m.SetSearchQuery("beach")
	st := m.State()
	require.Len(t, st.Entries, 2)
	require.Len(t, st.VisibleEntries, 1)
	require.Equal(t, "h1", st.VisibleEntries[0].ID)

	m.ResetFilters()
	require.Len(t, m.State().VisibleEntries, 2)
}
