package models

// MaxPageSize bounds a single page
const MaxPageSize = 200

// PageRequest selects a page of a listing. Page 0 with PageSize 0 requests
// every row in a single page.
type PageRequest struct {
	Page     int `form:"page"`
	PageSize int `form:"pageSize"`
}

// All reports whether the unpaged sentinel was requested
func (p PageRequest) All() bool {
	return p.Page == 0 && p.PageSize == 0
}

// Validate rejects partial or out-of-range page requests
func (p PageRequest) Validate() error {
	if p.All() {
		return nil
	}
	if p.Page < 1 {
		return NewValidationError("page", "must be at least 1 (or 0 together with pageSize=0)")
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return NewValidationError("pageSize", "must be between 1 and 200 (or 0 together with page=0)")
	}
	return nil
}

// Offset is the number of rows to skip
func (p PageRequest) Offset() int {
	if p.All() {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Page is a slice of a listing plus its position
type Page[T any] struct {
	Items       []T `json:"items"`
	TotalItems  int `json:"total_items"`
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalPages  int `json:"total_pages"`
}

// NewPage builds the page envelope for the request
func NewPage[T any](items []T, totalItems int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	if req.All() {
		return Page[T]{
			Items:       items,
			TotalItems:  totalItems,
			CurrentPage: 1,
			PageSize:    len(items),
			TotalPages:  1,
		}
	}
	totalPages := (totalItems + req.PageSize - 1) / req.PageSize
	return Page[T]{
		Items:       items,
		TotalItems:  totalItems,
		CurrentPage: req.Page,
		PageSize:    req.PageSize,
		TotalPages:  totalPages,
	}
}
