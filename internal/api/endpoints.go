package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"stylesync/internal/domain"
)

// SavedPage is one page of the user's wishlist.
type SavedPage struct {
	Items      []domain.SavedItem `json:"wishlist"`
	Pagination domain.Pagination  `json:"pagination"`
}

// HistoryPage is one page of the user's search history.
type HistoryPage struct {
	Entries    []domain.HistoryEntry `json:"history"`
	Pagination domain.Pagination     `json:"pagination"`
}

// CollectionPage is one page of the user's collections.
type CollectionPage struct {
	Collections []domain.Collection `json:"collections"`
	Pagination  domain.Pagination   `json:"pagination"`
}

// CollectionItemsPage is one page of the items inside a collection.
type CollectionItemsPage struct {
	Items      []domain.SavedItem `json:"items"`
	Pagination domain.Pagination  `json:"pagination"`
}

// SavedItemUpdate is a partial edit of a wishlist item. Nil fields are
// left untouched by the backend.
type SavedItemUpdate struct {
	Notes        *string  `json:"notes,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	CollectionID *string  `json:"collection_id,omitempty"`
}

// CollectionUpdate is a partial edit of a collection.
type CollectionUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ItemPosition names a saved item's new position within a collection.
type ItemPosition struct {
	SavedItemID string `json:"saved_item_id"`
	Position    int    `json:"position"`
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}

// ListSaved fetches one page of the wishlist.
func (c *Client) ListSaved(ctx context.Context, limit, offset int) (*SavedPage, error) {
	var page SavedPage
	if err := c.do(ctx, http.MethodGet, "/api/wishlist", pageQuery(limit, offset), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AddSaved adds a product to the wishlist and returns the created item.
func (c *Client) AddSaved(ctx context.Context, productID, notes string, tags []string, collectionID string) (*domain.SavedItem, error) {
	body := map[string]any{"product_id": productID}
	if notes != "" {
		body["notes"] = notes
	}
	if len(tags) > 0 {
		body["tags"] = tags
	}
	if collectionID != "" {
		body["collection_id"] = collectionID
	}
	var resp struct {
		Item domain.SavedItem `json:"item"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/wishlist/add", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// RemoveSaved removes a product from the wishlist.
func (c *Client) RemoveSaved(ctx context.Context, productID string) error {
	body := map[string]any{"product_id": productID}
	return c.do(ctx, http.MethodPost, "/api/wishlist/remove", nil, body, nil)
}

// UpdateSaved applies a partial edit to a wishlist item and returns the
// final backend state.
func (c *Client) UpdateSaved(ctx context.Context, itemID string, updates SavedItemUpdate) (*domain.SavedItem, error) {
	body := map[string]any{
		"wishlist_item_id": itemID,
		"updates":          updates,
	}
	var resp struct {
		Item domain.SavedItem `json:"item"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/wishlist/update", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// CheckSaved reports, per product id, whether it is in the wishlist.
func (c *Client) CheckSaved(ctx context.Context, productIDs []string) (map[string]bool, error) {
	body := map[string]any{"product_ids": productIDs}
	var resp struct {
		Status map[string]bool `json:"wishlist_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/wishlist/check", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.Status, nil
}

// ListHistory fetches one page of search history.
func (c *Client) ListHistory(ctx context.Context, limit, offset int, includeDetails bool) (*HistoryPage, error) {
	q := pageQuery(limit, offset)
	if includeDetails {
		q.Set("include_details", "true")
	}
	var page HistoryPage
	if err := c.do(ctx, http.MethodGet, "/api/history", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// DeleteHistory soft-deletes one history entry.
func (c *Client) DeleteHistory(ctx context.Context, historyID string) error {
	return c.do(ctx, http.MethodDelete, "/api/history/"+historyID, nil, nil, nil)
}

// RestoreHistory restores a soft-deleted history entry.
func (c *Client) RestoreHistory(ctx context.Context, historyID string) error {
	return c.do(ctx, http.MethodPost, "/api/history/"+historyID+"/restore", nil, nil, nil)
}

// SessionDetail fetches the full entity graph for one search session.
func (c *Client) SessionDetail(ctx context.Context, sessionID string) (*domain.SessionDetail, error) {
	var resp struct {
		Session domain.SessionDetail `json:"session"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/history/"+sessionID+"/session", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// ListCollections fetches one page of collections.
func (c *Client) ListCollections(ctx context.Context, limit, offset int) (*CollectionPage, error) {
	var page CollectionPage
	if err := c.do(ctx, http.MethodGet, "/api/collections", pageQuery(limit, offset), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateCollection creates a named collection.
func (c *Client) CreateCollection(ctx context.Context, name, description string) (*domain.Collection, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	var resp struct {
		Collection domain.Collection `json:"collection"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/collections", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Collection, nil
}

// UpdateCollection applies a partial edit to a collection.
func (c *Client) UpdateCollection(ctx context.Context, collectionID string, updates CollectionUpdate) (*domain.Collection, error) {
	var resp struct {
		Collection domain.Collection `json:"collection"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/collections/"+collectionID, nil, map[string]any{"updates": updates}, &resp); err != nil {
		return nil, err
	}
	return &resp.Collection, nil
}

// DeleteCollection deletes a collection. Items in it fall back to the
// default collection on the backend side.
func (c *Client) DeleteCollection(ctx context.Context, collectionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/collections/"+collectionID, nil, nil, nil)
}

// CollectionItems fetches one page of a collection's items.
func (c *Client) CollectionItems(ctx context.Context, collectionID string, limit, offset int) (*CollectionItemsPage, error) {
	var page CollectionItemsPage
	if err := c.do(ctx, http.MethodGet, "/api/collections/"+collectionID+"/items", pageQuery(limit, offset), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ReorderCollection persists a new ordering of a collection's items.
func (c *Client) ReorderCollection(ctx context.Context, collectionID string, positions []ItemPosition) error {
	body := map[string]any{"item_positions": positions}
	return c.do(ctx, http.MethodPut, "/api/collections/"+collectionID+"/reorder", nil, body, nil)
}

// MoveItem moves a saved item from one collection to another.
func (c *Client) MoveItem(ctx context.Context, savedItemID, fromCollectionID, toCollectionID string) error {
	body := map[string]any{
		"saved_item_id":      savedItemID,
		"from_collection_id": fromCollectionID,
		"to_collection_id":   toCollectionID,
	}
	return c.do(ctx, http.MethodPost, "/api/collections/move", nil, body, nil)
}
