package api

import (
	"math"
	"net/http"

	"github.com/ignite/segment-insights/internal/pkg/httputil"
)

// Customer list page sizes.
const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// PaginationParams holds parsed pagination values from query params.
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// PaginationMeta contains pagination metadata for the response.
type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// ParsePagination extracts page and limit from query params with defaults.
// defaultLimit is used when no limit param is provided.
// maxLimit caps the maximum allowed limit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) PaginationParams {
	page, err := httputil.QueryInt(r, "page", 1)
	if err != nil {
		page = 1
	}
	limit, err := httputil.QueryInt(r, "limit", defaultLimit)
	if err != nil {
		limit = defaultLimit
	}
	return NewPagination(page, limit, defaultLimit, maxLimit)
}

// NewPagination clamps page and limit and derives the offset. The offset
// saturates at math.MaxInt instead of overflowing for huge pages.
func NewPagination(page, limit, defaultLimit, maxLimit int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := math.MaxInt
	if page-1 <= math.MaxInt/limit {
		offset = (page - 1) * limit
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: offset,
	}
}

// Window returns the [start, end) bounds of the page within total items.
func (p PaginationParams) Window(total int) (start, end int) {
	start = min(max(p.Offset, 0), total)
	end = total
	if p.Limit > 0 && p.Limit < total-start {
		end = start + p.Limit
	}
	return start, end
}

// Meta builds the response metadata for total items.
func (p PaginationParams) Meta(total int) PaginationMeta {
	totalPages := int(math.Ceil(float64(total) / float64(p.Limit)))
	if totalPages < 1 {
		totalPages = 1
	}

	return PaginationMeta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    p.Page < totalPages,
	}
}
