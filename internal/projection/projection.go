// Package projection reshapes backend entity graphs into flat view-ready
// records. Everything here is pure and synchronous: no network, no state,
// and malformed-but-present fields degrade to nil instead of failing.
package projection

import (
	"strings"

	"stylesync/internal/domain"
)

// ViewRecord is one product flattened for a grid or list cell, with its
// originating garment attached.
type ViewRecord struct {
	ID              string
	Title           string
	Price           string
	PriceNumeric    *float64
	OldPrice        string
	OldPriceNumeric *float64
	Discount        string
	ImageURL        string
	ProductURL      string
	Source          string
	SourceIcon      string
	Rating          *float64
	ReviewCount     *int
	Tags            []string
	Classification  string
	Query           string
}

// Group is the set of view records sharing one clothing classification.
// PriceRange is the backend-reported statistic; it is nil whenever the
// backend did not supply one unambiguously, never recomputed client-side.
type Group struct {
	Key        string
	Label      string
	Items      []ViewRecord
	PriceRange *domain.PriceRange
}

// Summary describes a whole projected graph.
type Summary struct {
	TotalItems    int
	TotalProducts int
	HasErrors     bool
	ErrorQueries  []string
}

const maxTitleLen = 100

// ProjectEntityGraph flattens a session's clothing items into view records,
// in input order. It is total: any malformed field projects to its zero or
// nil form.
func ProjectEntityGraph(items []domain.ClothingItem) []ViewRecord {
	var records []ViewRecord
	for _, item := range items {
		classification := NormalizeClassification(item.ItemType)
		for _, p := range item.Products {
			records = append(records, projectProduct(p, classification, item.Query))
		}
	}
	return records
}

// GroupByClassification groups a session's products by normalized
// classification. Groups are ordered by first appearance and item order
// within a group equals input order, so repeated calls on the same input
// yield identical output.
func GroupByClassification(items []domain.ClothingItem) []Group {
	index := make(map[string]int)
	ranges := make(map[string][]*domain.PriceRange)
	var groups []Group

	for _, item := range items {
		key := NormalizeClassification(item.ItemType)
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, Group{Key: key, Label: labelFor(key)})
		}
		for _, p := range item.Products {
			groups[gi].Items = append(groups[gi].Items, projectProduct(p, key, item.Query))
		}
		ranges[key] = append(ranges[key], item.PriceRange)
	}

	// A group's range is the backend-reported one. When several garments
	// land in the same group there is no backend figure for the merged
	// set, so the group shows none rather than a client-computed guess.
	for i := range groups {
		rs := ranges[groups[i].Key]
		if len(rs) == 1 && rs[0] != nil {
			r := *rs[0]
			groups[i].PriceRange = &r
		}
	}
	return groups
}

// Summarize counts a projected graph the way the backend's summary block
// does. errorQueries carries the queries whose search failed upstream.
func Summarize(items []domain.ClothingItem, errorQueries []string) Summary {
	total := 0
	for _, item := range items {
		total += len(item.Products)
	}
	return Summary{
		TotalItems:    len(items),
		TotalProducts: total,
		HasErrors:     len(errorQueries) > 0,
		ErrorQueries:  errorQueries,
	}
}

func projectProduct(p domain.Product, classification, query string) ViewRecord {
	return ViewRecord{
		ID:              p.ID,
		Title:           cleanTitle(p.Title),
		Price:           strings.TrimSpace(p.Price),
		PriceNumeric:    cleanPrice(p.PriceNumeric),
		OldPrice:        cleanOldPrice(p.OldPrice),
		OldPriceNumeric: cleanPrice(p.OldPriceNumeric),
		Discount:        p.DiscountPercentage,
		ImageURL:        p.ImageURL,
		ProductURL:      p.ProductURL,
		Source:          p.Source,
		SourceIcon:      p.SourceIcon,
		Rating:          cleanRating(p.Rating),
		ReviewCount:     cleanReviewCount(p.ReviewCount),
		Tags:            p.Tags,
		Classification:  classification,
		Query:           query,
	}
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled Product"
	}
	runes := []rune(title)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen-3]) + "..."
	}
	return title
}

func cleanOldPrice(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 4 && strings.EqualFold(s[:4], "was ") {
		return strings.TrimSpace(s[4:])
	}
	return s
}

func cleanPrice(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	out := *v
	return &out
}

func cleanRating(v *float64) *float64 {
	if v == nil || *v < 0 || *v > 5 {
		return nil
	}
	// One decimal, like the backend reports
	out := float64(int(*v*10+0.5)) / 10
	return &out
}

func cleanReviewCount(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	out := *v
	return &out
}

func labelFor(key string) string {
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// classificationAliases folds specific garment names into broader buckets
// so one screen section covers, say, every kind of shoe.
var classificationAliases = map[string]string{
	"sneakers": "shoes", "trainers": "shoes", "runners": "shoes",
	"heels": "shoes", "stilettos": "shoes", "pumps": "shoes",
	"platforms": "shoes", "wedges": "shoes", "flats": "shoes",
	"loafers": "shoes", "moccasins": "shoes", "oxfords": "shoes",
	"brogues": "shoes", "derbies": "shoes", "espadrilles": "shoes",
	"mules": "shoes", "clogs": "shoes", "slides": "shoes",
	"sandals": "shoes", "flip-flops": "shoes", "thongs": "shoes",

	"booties": "boots", "wellies": "boots", "uggs": "boots",

	"blazer": "jacket", "bomber": "jacket", "puffer": "jacket",
	"varsity": "jacket", "windbreaker": "jacket",

	"parka": "coat", "peacoat": "coat", "overcoat": "coat",
	"raincoat": "coat", "anorak": "coat",

	"jeans": "pants", "chinos": "pants", "khakis": "pants",
	"trousers": "pants", "slacks": "pants", "joggers": "pants",
	"sweatpants": "pants", "leggings": "pants", "tights": "pants",

	"panties": "underwear", "briefs": "underwear", "boxers": "underwear",
	"thong": "underwear", "boyshorts": "underwear",
}

// NormalizeClassification folds an extracted item type into its broader
// category. Unknown types pass through lowercased; empty becomes "clothing".
func NormalizeClassification(itemType string) string {
	key := strings.ToLower(strings.TrimSpace(itemType))
	if key == "" {
		return "clothing"
	}
	if normalized, ok := classificationAliases[key]; ok {
		return normalized
	}
	return key
}
