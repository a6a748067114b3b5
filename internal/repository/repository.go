package repository

import "errors"

// ErrNotFound is returned by every lookup that matches no row.
var ErrNotFound = errors.New("record not found")

// ErrStaleStatus means a guarded status update matched no row because the
// record changed status after it was read.
var ErrStaleStatus = errors.New("record status changed concurrently")

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Normalize clamps page to at least 1 and substitutes def for a
// non-positive or oversized page size.
func (p Pagination) Normalize(def int) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 || p.PageSize > 100 {
		p.PageSize = def
	}
	return p
}
