package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/dukex/nodeflow/pkg/config"
	"github.com/dukex/nodeflow/pkg/models"
)

// Page is a bounded slice of a sorted listing together with its totals.
type Page[T any] struct {
	Items           []T   `json:"items"`
	Page            int   `json:"page"`
	PageSize        int   `json:"page_size"`
	TotalCount      int64 `json:"total_count"`
	TotalPages      int   `json:"total_pages"`
	HasNextPage     bool  `json:"has_next_page"`
	HasPreviousPage bool  `json:"has_previous_page"`
}

// NewPage computes the page totals for items out of totalCount rows.
func NewPage[T any](items []T, page, pageSize int, totalCount int64) *Page[T] {
	if items == nil {
		items = []T{}
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int((totalCount + int64(pageSize) - 1) / int64(pageSize))
	}

	return &Page[T]{
		Items:           items,
		Page:            page,
		PageSize:        pageSize,
		TotalCount:      totalCount,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// ListWorkflowsRequest contains options for listing workflows. Zero page and
// page size fall back to the configured defaults.
type ListWorkflowsRequest struct {
	Page     int
	PageSize int
	Search   string
}

// resolve applies defaults and bounds, returning the normalized request.
func (r ListWorkflowsRequest) resolve(op string, bounds config.Pagination) (ListWorkflowsRequest, error) {
	if r.Page < 0 {
		return r, NewValidationError(op, CodeInvalidPage, fmt.Sprintf("page must be at least 1, got %d", r.Page))
	}

	if r.Page == 0 {
		r.Page = bounds.DefaultPage
	}

	if r.PageSize == 0 {
		r.PageSize = bounds.DefaultPageSize
	}

	if r.PageSize < bounds.MinPageSize || r.PageSize > bounds.MaxPageSize {
		return r, NewValidationError(op, CodeInvalidPageSize, fmt.Sprintf(
			"page size must be between %d and %d, got %d", bounds.MinPageSize, bounds.MaxPageSize, r.PageSize,
		))
	}

	if r.Page-1 > math.MaxInt32/r.PageSize {
		return r, NewValidationError(op, CodeInvalidPage, fmt.Sprintf("page %d is out of range", r.Page))
	}

	r.Search = strings.TrimSpace(r.Search)
	if !models.ValidText(r.Search) {
		return r, NewValidationError(op, CodeValidation, "search must be UTF-8 text without NUL characters")
	}

	return r, nil
}

func (r ListWorkflowsRequest) offset() int {
	return (r.Page - 1) * r.PageSize
}
