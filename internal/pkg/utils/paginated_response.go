package utils

type PageResponse[T any] struct {
	Items         []T   `json:"items"`
	NextPageToken int64 `json:"nextPageToken,omitempty"`
	ItemCount     int64 `json:"itemCount"`
}

// NewPageResponse wraps one page of items. itemCount is the total across all
// pages and decides whether a next token is sent.
func NewPageResponse[T any](page PageRequest, items []T, itemCount int64) PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	response := PageResponse[T]{Items: items, ItemCount: itemCount}
	if next := page.NextPageToken(itemCount); next != nil {
		response.NextPageToken = *next
	}
	return response
}
