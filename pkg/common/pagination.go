package common

import (
	"net/http"
	"strconv"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageRequest describes the requested slice of a listing
type PageRequest struct {
	Page     int
	PageSize int
}

// Offset returns the row offset for this page
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit returns the row limit for this page
func (p PageRequest) Limit() int {
	return p.PageSize
}

// ParsePageRequest reads page and page_size query parameters,
// clamping out-of-range values instead of rejecting them
func ParsePageRequest(r *http.Request) PageRequest {
	page := defaultPage
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}

	pageSize := defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		pageSize = v
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return PageRequest{Page: page, PageSize: pageSize}
}

// NewPaginationInfo builds pagination metadata for a listing response
func NewPaginationInfo(req PageRequest, total int) *PaginationInfo {
	totalPages := total / req.PageSize
	if total%req.PageSize != 0 {
		totalPages++
	}
	if totalPages == 0 {
		totalPages = 1
	}

	return &PaginationInfo{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}
}
