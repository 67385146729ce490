package repository

import "strings"

const (
	DefaultMessagePageSize      = 50
	DefaultConversationPageSize = 20
	MaxPageSize                 = 100
)

type Page struct {
	Page     int
	PageSize int
}

func (p Page) limitOffset(defaultSize int) (limit, offset int) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	limit = p.PageSize
	if limit < 1 {
		limit = defaultSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return limit, (page - 1) * limit
}

// Pagination selects one page of a conversation's history. Order "desc"
// returns the newest messages first; anything else is oldest-first.
type Pagination struct {
	Page
	Order string
}

func (p Pagination) Descending() bool {
	return strings.EqualFold(p.Order, "desc")
}
