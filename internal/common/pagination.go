package common

import (
	"net/http"

	"github.com/samber/lo"
)

// MaxPerPage bounds the page size clients may request.
const MaxPerPage = 100

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts page and limit query parameters.
func ParsePagination(r *http.Request, defaultPerPage int) Pagination {
	q := r.URL.Query()
	p := Pagination{
		Page:    AtoiDefault(q.Get("page"), 1),
		PerPage: AtoiDefault(q.Get("limit"), defaultPerPage),
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Paginate returns the page of items described by p and records the total.
func Paginate[T any](items []T, p Pagination) ([]T, Pagination) {
	p.TotalItems = len(items)
	offset := (p.Page - 1) * p.PerPage
	if offset >= len(items) {
		return []T{}, p
	}
	return lo.Subset(items, offset, uint(p.PerPage)), p
}
