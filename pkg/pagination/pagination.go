package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Normalize clamps page and per-page into their allowed ranges.
func Normalize(page, perPage int) Params {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage}
}

// FromRequest reads ?page= and ?per_page=, ignoring unparsable values.
func FromRequest(r *http.Request) Params {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	return Normalize(page, perPage)
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages returns the page count needed for total rows.
func (p Params) TotalPages(total int) int {
	if p.PerPage <= 0 {
		return 0
	}
	pages := total / p.PerPage
	if total%p.PerPage > 0 {
		pages++
	}
	return pages
}
