package logic

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"stylesync/internal/domain"
)

// ViewMode selects how a list screen lays items out.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// PriceBounds restricts visible items to a numeric price window.
type PriceBounds struct {
	Min float64
	Max float64
}

// Filters is the full filter/sort configuration of one manager instance.
// It only ever shapes the derived visible list; the cached list itself is
// never touched by filtering.
type Filters struct {
	SearchQuery string
	SortBy      SortMode
	PriceRange  *PriceBounds
	Sources     map[string]bool
	Tags        map[string]bool
	ViewMode    ViewMode
}

// DefaultFilters returns the configuration every manager starts with.
func DefaultFilters() Filters {
	return Filters{
		SortBy:   SortByDateDesc,
		ViewMode: ViewGrid,
	}
}

// FilterPatch is a partial filter update. Nil fields leave the current
// value alone; the Clear flags reset an optional field to absent.
type FilterPatch struct {
	SearchQuery     *string
	SortBy          *SortMode
	PriceRange      *PriceBounds
	ClearPriceRange bool
	Sources         []string
	ClearSources    bool
	Tags            []string
	ClearTags       bool
	ViewMode        *ViewMode
}

// Apply merges a patch into f and returns the result.
func Apply(f Filters, p FilterPatch) Filters {
	if p.SearchQuery != nil {
		f.SearchQuery = *p.SearchQuery
	}
	if p.SortBy != nil {
		f.SortBy = *p.SortBy
	}
	if p.ClearPriceRange {
		f.PriceRange = nil
	} else if p.PriceRange != nil {
		b := *p.PriceRange
		f.PriceRange = &b
	}
	if p.ClearSources {
		f.Sources = nil
	} else if p.Sources != nil {
		f.Sources = toSet(p.Sources)
	}
	if p.ClearTags {
		f.Tags = nil
	} else if p.Tags != nil {
		f.Tags = toSet(p.Tags)
	}
	if p.ViewMode != nil {
		f.ViewMode = *p.ViewMode
	}
	return f
}

func toSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}

// Matches checks whether a saved item passes the filter configuration.
func Matches(item domain.SavedItem, f Filters) bool {
	if f.SearchQuery != "" && !matchesQuery(item, f.SearchQuery) {
		return false
	}
	if f.PriceRange != nil {
		p := item.Product.PriceNumeric
		if p == nil || *p < f.PriceRange.Min || *p > f.PriceRange.Max {
			return false
		}
	}
	if len(f.Sources) > 0 && !f.Sources[item.Product.Source] {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(item, f.Tags) {
		return false
	}
	return true
}

func matchesQuery(item domain.SavedItem, query string) bool {
	targets := []string{item.Product.Title, item.Product.Source, item.Notes}
	targets = append(targets, item.Tags...)
	matches := fuzzy.Find(query, targets)
	return len(matches) > 0
}

func hasAnyTag(item domain.SavedItem, want map[string]bool) bool {
	for _, t := range item.Tags {
		if want[t] {
			return true
		}
	}
	for _, t := range item.Product.Tags {
		if want[t] {
			return true
		}
	}
	return false
}

// MatchesHistory checks whether a history entry passes a search query.
// History has no price or source facets, only text.
func MatchesHistory(entry domain.HistoryEntry, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(entry.ImageFilename), strings.ToLower(query)) {
		return true
	}
	return len(fuzzy.Find(query, []string{entry.ImageFilename, entry.SessionID})) > 0
}

// MatchesCollection checks whether a collection passes a search query.
func MatchesCollection(c domain.Collection, query string) bool {
	if query == "" {
		return true
	}
	return len(fuzzy.Find(query, []string{c.Name, c.Description})) > 0
}
