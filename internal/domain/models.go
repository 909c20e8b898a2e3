package domain

import "time"

// Product is one recommended product as the backend returns it. Numeric
// fields are pointers because the backend omits them when a retailer listing
// had no parseable value.
type Product struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Price              string   `json:"price"`
	PriceNumeric       *float64 `json:"price_numeric"`
	OldPrice           string   `json:"old_price,omitempty"`
	OldPriceNumeric    *float64 `json:"old_price_numeric,omitempty"`
	DiscountPercentage string   `json:"discount_percentage,omitempty"`
	ImageURL           string   `json:"image_url"`
	ProductURL         string   `json:"product_url"`
	Source             string   `json:"source"`
	SourceIcon         string   `json:"source_icon,omitempty"`
	Rating             *float64 `json:"rating,omitempty"`
	ReviewCount        *int     `json:"review_count,omitempty"`
	DeliveryInfo       string   `json:"delivery_info,omitempty"`
	Tags               []string `json:"tags,omitempty"`
}

// SavedItem is a wishlist entry: a product the user saved, plus their notes.
type SavedItem struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	Product      Product   `json:"product"`
	Notes        string    `json:"notes,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	CollectionID string    `json:"collection_id,omitempty"`
	Position     int       `json:"position,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// HistoryEntry is one search the user performed (one uploaded photo).
type HistoryEntry struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	ImageFilename string     `json:"image_filename"`
	ItemCount     int        `json:"item_count"`
	ProductCount  int        `json:"product_count"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Collection is a user-named grouping of saved items.
type Collection struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	IsDefault     bool      `json:"is_default"`
	ItemCount     int       `json:"item_count"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ClothingItem is one detected garment from a search session together with
// the products matched to it.
type ClothingItem struct {
	Query         string      `json:"query"`
	ItemType      string      `json:"item_type"`
	Products      []Product   `json:"products"`
	TotalProducts int         `json:"total_products"`
	PriceRange    *PriceRange `json:"price_range,omitempty"`
}

// PriceRange is a backend-computed price statistic for a group of products.
// The average is never recomputed client-side; when the backend omits the
// range the group simply has none.
type PriceRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// SessionDetail is the full entity graph for one search session.
type SessionDetail struct {
	SessionID     string         `json:"session_id"`
	ImageFilename string         `json:"image_filename"`
	ClothingItems []ClothingItem `json:"clothing_items"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Pagination is the envelope the backend attaches to every list response.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
	TotalCount int  `json:"total_count"`
}
