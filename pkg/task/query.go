package task

import (
	"fmt"
	"strings"
)

// Sort orders recognized by the listing API.
const (
	SortCreatedDesc = "createdAt_desc"
	SortCreatedAsc  = "createdAt_asc"
)

const (
	// DefaultLimit is the page size used when none is specified.
	DefaultLimit = 20
	// MaxLimit is the largest page size the backend accepts.
	MaxLimit = 100
)

// Query describes one listing request: filter, sort, search and position.
//
// Cursors are opaque server tokens and are only valid for the exact
// (Status, Sort, Search) combination that produced them. Callers changing any
// of those must drop the cursor before the next fetch.
type Query struct {
	// Status filters to a single lifecycle state. Empty means all.
	Status Status

	// Sort is one of SortCreatedDesc or SortCreatedAsc. Empty means
	// SortCreatedDesc.
	Sort string

	// Search matches the title case-insensitively, or an id exactly.
	// Whitespace-only search is treated as absent.
	Search string

	// Limit is the page size (1..MaxLimit). Zero means DefaultLimit.
	Limit int

	// Cursor resumes listing after a previous page. Empty starts at page 1.
	Cursor string
}

// Normalized returns a copy with defaults applied and search trimmed.
func (q Query) Normalized() Query {
	q.Search = strings.TrimSpace(q.Search)
	if q.Sort == "" {
		q.Sort = SortCreatedDesc
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Criteria returns a copy with the cursor cleared. Two queries with equal
// criteria may share cursors; two queries with different criteria never may.
func (q Query) Criteria() Query {
	q = q.Normalized()
	q.Cursor = ""
	return q
}

// Key is the canonical cache key for this query, covering filter, sort,
// search and page position. Equal queries always produce equal keys.
func (q Query) Key() string {
	q = q.Normalized()
	return fmt.Sprintf("status=%s&sort=%s&q=%s&limit=%d&cursor=%s",
		q.Status, q.Sort, q.Search, q.Limit, q.Cursor)
}

// ScopePrefix is the shared prefix of every cache key produced by this
// query's criteria, regardless of cursor. Useful for selecting all cached
// pages of one listing.
func (q Query) ScopePrefix() string {
	q = q.Normalized()
	return fmt.Sprintf("status=%s&sort=%s&q=%s&limit=%d&cursor=",
		q.Status, q.Sort, q.Search, q.Limit)
}

// SameCriteria reports whether two queries agree on everything except the
// cursor, i.e. whether a cursor issued under one is valid under the other.
func (q Query) SameCriteria(other Query) bool {
	return q.Criteria() == other.Criteria()
}
