// Package ui is the demo browser over the state layer. It is deliberately
// thin: every piece of state it renders lives in a manager, and everything
// it learns about changes made elsewhere arrives over the event bus.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"stylesync/internal/collections"
	"stylesync/internal/coordination"
	"stylesync/internal/domain"
	"stylesync/internal/history"
	"stylesync/internal/logic"
	"stylesync/internal/wishlist"
)

// Tab identifies one of the three entity screens.
type Tab int

const (
	TabWishlist Tab = iota
	TabHistory
	TabCollections
)

// EventMsg wraps a bus event forwarded into the program by main.
type EventMsg struct {
	Event domain.DomainEvent
}

// mutationDoneMsg signals that a manager call kicked off by a keypress has
// resolved; the model re-snapshots on receipt.
type mutationDoneMsg struct{}

// Model is the bubbletea model for the demo browser.
type Model struct {
	coord  *coordination.Context
	wl     *wishlist.Manager
	hist   *history.Manager
	cols   *collections.Manager
	styles *Styles

	tab      Tab
	cursor   int
	selected map[string]bool
	filter   textinput.Model
	filterOn bool
	spin     spinner.Model
	width    int
	height   int
	pageSize int
}

// NewModel creates the browser model.
func NewModel(coord *coordination.Context, wl *wishlist.Manager, hist *history.Manager, cols *collections.Manager, pageSize int) Model {
	ti := textinput.New()
	ti.Placeholder = "filter..."
	ti.CharLimit = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		coord:    coord,
		wl:       wl,
		hist:     hist,
		cols:     cols,
		styles:   NewStyles(),
		selected: make(map[string]bool),
		filter:   ti,
		spin:     sp,
		pageSize: pageSize,
	}
}

// Init kicks off the initial fetches for all three managers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		m.cmd(func() { m.wl.Fetch(context.Background(), m.pageSize, 0) }),
		m.cmd(func() { m.hist.Fetch(context.Background(), m.pageSize, 0, false) }),
		m.cmd(func() { m.cols.Fetch(context.Background(), m.pageSize, 0) }),
	)
}

func (m Model) cmd(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return mutationDoneMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case EventMsg, mutationDoneMsg:
		// Manager state changed; the next View reads fresh snapshots
		m.clampCursor()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filterOn {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		if msg.String() == "esc" {
			m.filter.SetValue("")
		}
		m.filterOn = false
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) applyFilter() {
	q := m.filter.Value()
	switch m.tab {
	case TabWishlist:
		m.wl.SetFilters(logic.FilterPatch{SearchQuery: &q})
	case TabHistory:
		m.hist.SetSearchQuery(q)
	case TabCollections:
		m.cols.SetSearchQuery(q)
	}
	m.clampCursor()
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.tab = (m.tab + 1) % 3
		m.cursor = 0
		m.selected = make(map[string]bool)
		return m, nil

	case "j", "down":
		m.cursor++
		m.clampCursor()
		return m, nil

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "/":
		m.filterOn = true
		m.filter.Focus()
		return m, textinput.Blink

	case " ":
		if ref := m.refUnderCursor(); ref != "" {
			if m.selected[ref] {
				delete(m.selected, ref)
			} else {
				m.selected[ref] = true
			}
		}
		return m, nil

	case "s":
		if m.tab == TabWishlist {
			mode := m.wl.Filters().SortBy.Next()
			m.wl.SetFilters(logic.FilterPatch{SortBy: &mode})
		}
		return m, nil

	case "r":
		return m, m.refreshCmd()

	case "m":
		return m, m.fetchMoreCmd()

	case "d":
		return m, m.deleteCmd()

	case "u":
		return m, m.restoreCmd()

	case "D":
		return m, m.bulkDeleteCmd()
	}
	return m, nil
}

func (m Model) refreshCmd() tea.Cmd {
	switch m.tab {
	case TabWishlist:
		return m.cmd(func() { m.wl.Fetch(context.Background(), m.pageSize, 0) })
	case TabHistory:
		return m.cmd(func() { m.hist.Fetch(context.Background(), m.pageSize, 0, false) })
	default:
		return m.cmd(func() { m.cols.Fetch(context.Background(), m.pageSize, 0) })
	}
}

func (m Model) fetchMoreCmd() tea.Cmd {
	switch m.tab {
	case TabWishlist:
		st := m.wl.State()
		if !st.HasMore {
			return nil
		}
		offset := len(st.Items)
		return m.cmd(func() { m.wl.Fetch(context.Background(), m.pageSize, offset) })
	case TabHistory:
		st := m.hist.State()
		if !st.HasMore {
			return nil
		}
		offset := len(st.Entries)
		return m.cmd(func() { m.hist.Fetch(context.Background(), m.pageSize, offset, false) })
	default:
		st := m.cols.State()
		if !st.HasMore {
			return nil
		}
		offset := len(st.Collections)
		return m.cmd(func() { m.cols.Fetch(context.Background(), m.pageSize, offset) })
	}
}

func (m Model) deleteCmd() tea.Cmd {
	ref := m.refUnderCursor()
	if ref == "" {
		return nil
	}
	switch m.tab {
	case TabWishlist:
		return m.cmd(func() { m.wl.Remove(context.Background(), ref) })
	case TabHistory:
		return m.cmd(func() { m.hist.Delete(context.Background(), ref) })
	default:
		return m.cmd(func() { m.cols.Delete(context.Background(), ref) })
	}
}

func (m Model) restoreCmd() tea.Cmd {
	if m.tab != TabHistory {
		return nil
	}
	st := m.hist.State()
	// Restore is a distinct user action on the most recently removed
	// entry the backend still knows about; the demo keys it off the
	// cursor row's entry when it is marked deleted
	if m.cursor >= len(st.VisibleEntries) {
		return nil
	}
	entry := st.VisibleEntries[m.cursor]
	if entry.DeletedAt == nil {
		return nil
	}
	return m.cmd(func() { m.hist.Restore(context.Background(), entry) })
}

func (m Model) bulkDeleteCmd() tea.Cmd {
	if len(m.selected) == 0 {
		return nil
	}
	refs := make([]string, 0, len(m.selected))
	for ref := range m.selected {
		refs = append(refs, ref)
	}
	switch m.tab {
	case TabWishlist:
		return m.cmd(func() { m.wl.BulkRemove(context.Background(), refs) })
	case TabHistory:
		return m.cmd(func() { m.hist.BulkDelete(context.Background(), refs) })
	default:
		return nil
	}
}

func (m Model) refUnderCursor() string {
	switch m.tab {
	case TabWishlist:
		items := m.wl.State().VisibleItems
		if m.cursor < len(items) {
			return items[m.cursor].ProductID
		}
	case TabHistory:
		entries := m.hist.State().VisibleEntries
		if m.cursor < len(entries) {
			return entries[m.cursor].ID
		}
	case TabCollections:
		cols := m.cols.State().VisibleCollections
		if m.cursor < len(cols) {
			return cols[m.cursor].ID
		}
	}
	return ""
}

func (m *Model) clampCursor() {
	max := 0
	switch m.tab {
	case TabWishlist:
		max = len(m.wl.State().VisibleItems) - 1
	case TabHistory:
		max = len(m.hist.State().VisibleEntries) - 1
	case TabCollections:
		max = len(m.cols.State().VisibleCollections) - 1
	}
	if max < 0 {
		max = 0
	}
	if m.cursor > max {
		m.cursor = max
	}
}

// View renders the active tab.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("stylesync"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.tab {
	case TabWishlist:
		b.WriteString(m.renderWishlist())
	case TabHistory:
		b.WriteString(m.renderHistory())
	case TabCollections:
		b.WriteString(m.renderCollections())
	}

	if m.filterOn {
		b.WriteString("\n")
		b.WriteString(m.styles.Filter.Render("/" + m.filter.View()))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("tab: switch · j/k: move · space: select · d: delete · D: bulk delete · u: restore · s: sort · /: filter · m: more · r: refresh · q: quit"))
	return b.String()
}

func (m Model) renderTabs() string {
	names := []string{"Wishlist", "History", "Collections"}
	parts := make([]string, len(names))
	for i, name := range names {
		if Tab(i) == m.tab {
			parts[i] = m.styles.ActiveTab.Render(name)
		} else {
			parts[i] = m.styles.Tab.Render(name)
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderWishlist() string {
	st := m.wl.State()
	var b strings.Builder

	if st.Loading.IsLoading {
		b.WriteString(m.spin.View() + " " + st.Loading.Message + "\n")
	}
	if st.Error.HasError {
		b.WriteString(m.styles.Error.Render(st.Error.Message) + "\n")
	}

	for i, item := range st.VisibleItems {
		line := fmt.Sprintf("%-50s %s %s",
			truncate(item.Product.Title, 50),
			m.styles.Price.Render(item.Product.Price),
			m.styles.Dim.Render(item.Product.Source))
		b.WriteString(m.renderRow(line, i, item.ProductID))
	}

	b.WriteString(m.styles.Status.Render(fmt.Sprintf(
		"%s saved · showing %d · sort: %s%s",
		humanize.Comma(int64(st.TotalCount)), len(st.VisibleItems),
		m.wl.Filters().SortBy, moreHint(st.HasMore))))
	return b.String()
}

func (m Model) renderHistory() string {
	st := m.hist.State()
	var b strings.Builder

	if st.Loading.IsLoading {
		b.WriteString(m.spin.View() + " " + st.Loading.Message + "\n")
	}
	if st.Error.HasError {
		b.WriteString(m.styles.Error.Render(st.Error.Message) + "\n")
	}

	for i, entry := range st.VisibleEntries {
		line := fmt.Sprintf("%-40s %3d items %4d products  %s",
			truncate(entry.ImageFilename, 40), entry.ItemCount, entry.ProductCount,
			m.styles.Dim.Render(humanize.Time(entry.CreatedAt)))
		b.WriteString(m.renderRow(line, i, entry.ID))
	}

	b.WriteString(m.styles.Status.Render(fmt.Sprintf(
		"%s searches%s", humanize.Comma(int64(st.TotalCount)), moreHint(st.HasMore))))
	return b.String()
}

func (m Model) renderCollections() string {
	st := m.cols.State()
	var b strings.Builder

	if st.Loading.IsLoading {
		b.WriteString(m.spin.View() + " " + st.Loading.Message + "\n")
	}
	if st.Error.HasError {
		b.WriteString(m.styles.Error.Render(st.Error.Message) + "\n")
	}

	for i, col := range st.VisibleCollections {
		name := col.Name
		if col.IsDefault {
			name += " (default)"
		}
		line := fmt.Sprintf("%-40s %s", truncate(name, 40),
			m.styles.Dim.Render(fmt.Sprintf("%d items", col.ItemCount)))
		b.WriteString(m.renderRow(line, i, col.ID))
	}

	b.WriteString(m.styles.Status.Render(fmt.Sprintf(
		"%s collections%s", humanize.Comma(int64(st.TotalCount)), moreHint(st.HasMore))))
	return b.String()
}

func (m Model) renderRow(line string, index int, ref string) string {
	prefix := "  "
	if index == m.cursor {
		prefix = m.styles.Highlight.Render("> ")
	}
	if m.selected[ref] {
		prefix = m.styles.Highlight.Render("* ")
	}
	if m.coord.IsDeleting(ref) {
		line = m.styles.Deleting.Render(line)
	} else if index == m.cursor {
		line = m.styles.SelectionBg.Render(line)
	}
	return prefix + line + "\n"
}

func moreHint(hasMore bool) string {
	if hasMore {
		return " · m: load more"
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
