// Package synccache keeps fetched task pages keyed by query and merges
// optimistic mutations into them ahead of server confirmation.
//
// Entries are immutable snapshots: every mutation builds a new entry from
// pure merge functions applied under the cache lock, so a record referenced
// by several entries is never aliased through shared slices. Merges are
// keyed strictly by record id, which keeps the final state convergent no
// matter in which order a slow poll response and a fast mutation
// confirmation land.
package synccache

import (
	"sync"
	"time"

	"github.com/clipforge/vidsync/pkg/task"
)

// KeyPredicate selects cache entries by key.
type KeyPredicate func(key string) bool

// ExactKey matches a single cache key.
func ExactKey(key string) KeyPredicate {
	return func(k string) bool { return k == key }
}

// AllKeys matches every cache entry.
func AllKeys() KeyPredicate {
	return func(string) bool { return true }
}

// Entry is one cached page snapshot.
type Entry struct {
	// Records is the page content, most recent first.
	Records []task.Record

	// NextCursor is the continuation cursor for the page after this one.
	NextCursor string

	// FetchedAt is when the entry was last confirmed by a fetch.
	FetchedAt time.Time

	// Invalidated marks the entry for mandatory re-fetch on next read.
	// The data stays visible meanwhile (stale-while-revalidate).
	Invalidated bool
}

// clone returns a deep-enough copy: the records slice is copied so callers
// can never mutate cached state through a returned entry.
func (e Entry) clone() Entry {
	records := make([]task.Record, len(e.Records))
	copy(records, e.Records)
	e.Records = records
	return e
}

// Config configures cache behavior.
type Config struct {
	// TTL is how long an entry stays fresh after a successful fetch.
	// Reads of a fresh entry never trigger re-fetch. Default: 30s.
	TTL time.Duration

	// EvictAfter is how long an entry may live in the cache at all before
	// being dropped on access. Zero means entries are never evicted.
	EvictAfter time.Duration

	// Now overrides the clock, for tests. Default: time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{TTL: 30 * time.Second}
}

// Refetcher is called in the background when a stale entry is read.
// Implementations re-fetch the page for the key and call Set.
type Refetcher func(key string)

// Cache is a keyed store of fetched result pages. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]Entry
	refreshing map[string]bool
	refetch    Refetcher
	cfg        Config
}

// New creates a cache. Zero config values fall back to DefaultConfig.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		entries:    make(map[string]Entry),
		refreshing: make(map[string]bool),
		cfg:        cfg,
	}
}

// SetRefetcher installs the background re-fetch hook used by stale reads.
// Must be called before the cache is shared.
func (c *Cache) SetRefetcher(fn Refetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refetch = fn
}

// Get returns a snapshot of the entry for key.
//
// A stale or invalidated entry is still returned immediately, but a
// background re-fetch is kicked off (at most one per key at a time) so the
// caller is never blocked on a refresh. Entries past EvictAfter are dropped
// and reported as absent.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}

	now := c.cfg.Now()
	if c.cfg.EvictAfter > 0 && now.Sub(entry.FetchedAt) > c.cfg.EvictAfter {
		delete(c.entries, key)
		return Entry{}, false
	}

	if c.staleLocked(entry, now) && c.refetch != nil && !c.refreshing[key] {
		c.refreshing[key] = true
		go func() {
			defer func() {
				c.mu.Lock()
				delete(c.refreshing, key)
				c.mu.Unlock()
			}()
			c.refetch(key)
		}()
	}

	return entry.clone(), true
}

// Peek returns the entry without triggering a background re-fetch.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Fresh reports whether the entry for key exists and is within TTL and not
// invalidated.
func (c *Cache) Fresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	return !c.staleLocked(entry, c.cfg.Now())
}

func (c *Cache) staleLocked(entry Entry, now time.Time) bool {
	return entry.Invalidated || now.Sub(entry.FetchedAt) >= c.cfg.TTL
}

// Set replaces the entry for key wholesale after a successful fetch,
// clearing any invalidation mark and stamping the fetch time.
func (c *Cache) Set(key string, records []task.Record, nextCursor string) {
	copied := make([]task.Record, len(records))
	copy(copied, records)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Records:    copied,
		NextCursor: nextCursor,
		FetchedAt:  c.cfg.Now(),
	}
}

// Prepend inserts rec at the front of every matching entry, deduplicating
// by id (last write wins). Entries' fetch timestamps are untouched: an
// optimistic insert is not a fetch confirmation.
func (c *Cache) Prepend(pred KeyPredicate, rec task.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if !pred(key) {
			continue
		}
		entry.Records = mergePrepend(entry.Records, rec)
		c.entries[key] = entry
	}
}

// Remove deletes the record with id from every matching entry.
func (c *Cache) Remove(pred KeyPredicate, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if !pred(key) {
			continue
		}
		entry.Records = removeByID(entry.Records, id)
		c.entries[key] = entry
	}
}

// Invalidate marks matching entries for mandatory re-fetch on next access.
// Data is not cleared; stale data stays visible while the re-fetch runs.
func (c *Cache) Invalidate(pred KeyPredicate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if !pred(key) {
			continue
		}
		entry.Invalidated = true
		c.entries[key] = entry
	}
}

// Drop removes matching entries entirely.
func (c *Cache) Drop(pred KeyPredicate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if pred(key) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
