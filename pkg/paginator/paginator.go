// Package paginator tracks position in a cursor-paged listing.
//
// The backend issues opaque continuation cursors; going forward pushes the
// cursor used to reach the current page onto a history stack, so going back
// restores the exact cursor for the prior page. Cursors are only valid for
// the filter/sort/search criteria that produced them, so any criteria change
// must reset the paginator.
package paginator

import "sync"

// page-1 marker stored on the history stack, since the stack cannot hold
// "no cursor" as the empty string plays both roles on the wire.
const firstPageSentinel = ""

// Paginator is a bidirectional cursor tracker. Safe for concurrent use.
//
// The zero value is not usable; call New.
type Paginator struct {
	mu      sync.Mutex
	cursor  string   // cursor of the current page; "" means page 1
	next    string   // next-cursor recorded from the latest response
	history []string // cursors of prior pages, oldest first
}

// New returns a paginator positioned at page 1.
func New() *Paginator {
	return &Paginator{}
}

// Cursor returns the cursor for the current page. Empty means page 1.
func (p *Paginator) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// ApplyResponse records the next-cursor returned by the fetch for the
// current page. An empty cursor means the listing is exhausted.
func (p *Paginator) ApplyResponse(nextCursor string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = nextCursor
}

// HasNext reports whether the most recent response carried a next-cursor.
func (p *Paginator) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next != ""
}

// HasPrev reports whether at least one forward step can be undone.
func (p *Paginator) HasPrev() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.history) > 0
}

// CurrentPage is the 1-based page number, always history depth + 1.
func (p *Paginator) CurrentPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.history) + 1
}

// GoNext advances to the next page using the recorded next-cursor.
// Returns false without changing state when no next-cursor is known.
func (p *Paginator) GoNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next == "" {
		return false
	}
	if p.cursor == "" {
		p.history = append(p.history, firstPageSentinel)
	} else {
		p.history = append(p.history, p.cursor)
	}
	p.cursor = p.next
	p.next = ""
	return true
}

// GoPrev returns to the prior page by popping the history stack.
// Returns false without changing state when already at page 1.
func (p *Paginator) GoPrev() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return false
	}
	p.cursor = p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	p.next = ""
	return true
}

// Reset clears cursor, next-cursor and history. Must be called whenever the
// filter, sort or search criteria change.
func (p *Paginator) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = ""
	p.next = ""
	p.history = nil
}
