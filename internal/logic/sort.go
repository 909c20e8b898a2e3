package logic

import (
	"sort"
	"strings"

	"stylesync/internal/domain"
)

// SortMode represents different sort modes for the visible list.
type SortMode int

const (
	SortByDateDesc SortMode = iota
	SortByDateAsc
	SortByPriceAsc
	SortByPriceDesc
	SortByTitle
	SortBySource
)

func (m SortMode) String() string {
	switch m {
	case SortByDateDesc:
		return "Newest"
	case SortByDateAsc:
		return "Oldest"
	case SortByPriceAsc:
		return "Price ↑"
	case SortByPriceDesc:
		return "Price ↓"
	case SortByTitle:
		return "Title"
	case SortBySource:
		return "Store"
	default:
		return "Newest"
	}
}

// Next cycles to the following sort mode, wrapping around.
func (m SortMode) Next() SortMode {
	if m >= SortBySource {
		return SortByDateDesc
	}
	return m + 1
}

// VisibleItems derives the view of a cached wishlist: filter predicate
// first, then the comparator named by SortBy. The input slice is never
// mutated; ties keep their cached relative order.
func VisibleItems(items []domain.SavedItem, f Filters) []domain.SavedItem {
	visible := make([]domain.SavedItem, 0, len(items))
	for _, item := range items {
		if Matches(item, f) {
			visible = append(visible, item)
		}
	}
	sort.SliceStable(visible, savedItemLess(visible, f.SortBy))
	return visible
}

func savedItemLess(items []domain.SavedItem, mode SortMode) func(i, j int) bool {
	switch mode {
	case SortByDateAsc:
		return func(i, j int) bool { return items[i].SavedAt.Before(items[j].SavedAt) }
	case SortByPriceAsc:
		return func(i, j int) bool { return priceOf(items[i], 1e12) < priceOf(items[j], 1e12) }
	case SortByPriceDesc:
		return func(i, j int) bool { return priceOf(items[i], -1) > priceOf(items[j], -1) }
	case SortByTitle:
		return func(i, j int) bool {
			return strings.ToLower(items[i].Product.Title) < strings.ToLower(items[j].Product.Title)
		}
	case SortBySource:
		return func(i, j int) bool {
			return strings.ToLower(items[i].Product.Source) < strings.ToLower(items[j].Product.Source)
		}
	default: // SortByDateDesc
		return func(i, j int) bool { return items[i].SavedAt.After(items[j].SavedAt) }
	}
}

// Items without a parseable price sort to the end in both directions.
func priceOf(item domain.SavedItem, missing float64) float64 {
	if item.Product.PriceNumeric == nil {
		return missing
	}
	return *item.Product.PriceNumeric
}

// VisibleHistory derives the view of cached history entries: query filter,
// then newest first (history has a single natural order).
func VisibleHistory(entries []domain.HistoryEntry, query string) []domain.HistoryEntry {
	visible := make([]domain.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if MatchesHistory(e, query) {
			visible = append(visible, e)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})
	return visible
}

// VisibleCollections derives the view of cached collections: query filter,
// default collection pinned first, then by name.
func VisibleCollections(cols []domain.Collection, query string) []domain.Collection {
	visible := make([]domain.Collection, 0, len(cols))
	for _, c := range cols {
		if MatchesCollection(c, query) {
			visible = append(visible, c)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].IsDefault != visible[j].IsDefault {
			return visible[i].IsDefault
		}
		return strings.ToLower(visible[i].Name) < strings.ToLower(visible[j].Name)
	})
	return visible
}
