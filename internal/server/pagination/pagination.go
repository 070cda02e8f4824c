package pagination

import (
	"fmt"
	"strconv"
)

// DefaultPageSize is the archive page size.
const DefaultPageSize = 50

// Info describes one page of a listing.
type Info struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	PageSize    int `json:"pageSize"`
	TotalItems  int `json:"totalItems"`
}

// ParsePage reads a 1-based page number. An empty value is page 1 and values
// below 1 are clamped to 1; anything non-numeric is an error.
func ParsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid page %q: must be an integer", raw)
	}
	if page < 1 {
		page = 1
	}
	return page, nil
}

// Describe returns the metadata for page of total items without slicing.
func Describe(total, page, pageSize int) Info {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Info{
		CurrentPage: page,
		TotalPages:  (total + pageSize - 1) / pageSize,
		PageSize:    pageSize,
		TotalItems:  total,
	}
}

// Paginate returns the items on page (1-based). A page past the end is empty.
func Paginate[T any](items []T, page, pageSize int) ([]T, Info) {
	info := Describe(len(items), page, pageSize)

	start := (page - 1) * info.PageSize
	if start < 0 || start >= len(items) {
		return []T{}, info
	}
	end := min(start+info.PageSize, len(items))
	return items[start:end], info
}
