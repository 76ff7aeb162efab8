// Package feed composes the paginator, cache, poller and mutation client
// into the live task-list surface consumed by presentation code.
//
// A Feed owns one query (filter, sort, search) at a time and keeps the page
// it is positioned on synchronized with the backend: fetches populate the
// cache under a query-derived key, the poller re-validates the current page
// while any visible task is still settling, and optimistic mutations merge
// into the cached page ahead of confirmation. Status transitions observed
// between consecutive fetches are published on the event reporter.
package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clipforge/vidsync/pkg/events"
	"github.com/clipforge/vidsync/pkg/mutation"
	"github.com/clipforge/vidsync/pkg/paginator"
	"github.com/clipforge/vidsync/pkg/poller"
	"github.com/clipforge/vidsync/pkg/synccache"
	"github.com/clipforge/vidsync/pkg/task"
	"github.com/clipforge/vidsync/pkg/transport"
)

// Config configures a Feed.
type Config struct {
	// Query is the initial listing criteria.
	Query task.Query

	// PollInterval is the base re-validation cadence. Default: 5s.
	PollInterval time.Duration

	// PollWhenHidden keeps polling (on a slower cadence) while the host
	// reports hidden.
	PollWhenHidden bool

	// CacheTTL is how long a fetched page stays fresh. Default: 30s.
	CacheTTL time.Duration

	// Visibility supplies foreground state to the poller.
	Visibility poller.Visibility

	// Reporter receives task transition and sync error events.
	// Default: events.Discard.
	Reporter events.Reporter

	// Logger receives sync diagnostics. Default: zap.NewNop().
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.Reporter == nil {
		c.Reporter = events.Discard
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Snapshot is a point-in-time view of the feed for rendering.
type Snapshot struct {
	Records []task.Record
	Loading bool
	Err     error
	CanNext bool
	CanPrev bool
	Page    int
	Polling bool
}

// Feed is a live, self-updating view of one task listing.
// Safe for concurrent use.
type Feed struct {
	api     transport.Client
	cache   *synccache.Cache
	pager   *paginator.Paginator
	poll    *poller.Poller
	mutator *mutation.Client
	cfg     Config

	mu      sync.Mutex
	query   task.Query // criteria only; cursor comes from the paginator
	loading bool
	err     error
	closed  bool
}

// New creates a feed over the given transport. Call Start to perform the
// initial fetch and begin polling.
func New(api transport.Client, cfg Config) *Feed {
	cfg = cfg.withDefaults()

	f := &Feed{
		api:   api,
		cache: synccache.New(synccache.Config{TTL: cfg.CacheTTL}),
		pager: paginator.New(),
		cfg:   cfg,
		query: cfg.Query.Criteria(),
	}
	f.mutator = mutation.NewClient(api, f.cache, mutation.Config{
		Scope:  f.scope,
		Logger: cfg.Logger,
	})
	f.poll = poller.New(f.pollOnce, poller.Config{
		Interval:         cfg.PollInterval,
		EnableWhenHidden: cfg.PollWhenHidden,
		Visibility:       cfg.Visibility,
		Logger:           cfg.Logger,
	})
	f.cache.SetRefetcher(f.refetchStale)
	return f
}

// Start performs the initial fetch. Polling begins only if the fetched page
// holds non-terminal tasks.
func (f *Feed) Start(ctx context.Context) error {
	return f.fetch(ctx, true)
}

// Close stops polling and releases poller resources. Idempotent.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.poll.Destroy()
}

// Snapshot returns the current view of the feed.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	loading, err := f.loading, f.err
	f.mu.Unlock()

	var records []task.Record
	if entry, ok := f.cache.Peek(f.currentKey()); ok {
		records = entry.Records
	}
	return Snapshot{
		Records: records,
		Loading: loading,
		Err:     err,
		CanNext: f.pager.HasNext(),
		CanPrev: f.pager.HasPrev(),
		Page:    f.pager.CurrentPage(),
		Polling: f.poll.IsActive(),
	}
}

// IsPolling reports whether background re-validation is active.
func (f *Feed) IsPolling() bool {
	return f.poll.IsActive()
}

// GoNext advances to the next page. No-op when no next page is known or a
// foreground fetch is already in flight.
func (f *Feed) GoNext(ctx context.Context) error {
	f.mu.Lock()
	busy := f.loading
	f.mu.Unlock()
	if busy || !f.pager.GoNext() {
		return nil
	}
	return f.fetch(ctx, true)
}

// GoPrev returns to the prior page. No-op at page 1 or while a foreground
// fetch is in flight.
func (f *Feed) GoPrev(ctx context.Context) error {
	f.mu.Lock()
	busy := f.loading
	f.mu.Unlock()
	if busy || !f.pager.GoPrev() {
		return nil
	}
	return f.fetch(ctx, true)
}

// Refetch re-fetches the current page immediately.
func (f *Feed) Refetch(ctx context.Context) error {
	return f.fetch(ctx, true)
}

// SetQuery replaces the listing criteria. The cursor and history are reset:
// cursors are only valid for the criteria that produced them.
func (f *Feed) SetQuery(ctx context.Context, q task.Query) error {
	f.mu.Lock()
	f.query = q.Criteria()
	f.mu.Unlock()
	f.pager.Reset()
	return f.fetch(ctx, true)
}

// Query returns the active criteria.
func (f *Feed) Query() task.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

// Create issues an idempotent create scoped to this feed's cache entries.
// The optimistic record appears in Snapshot immediately.
func (f *Feed) Create(ctx context.Context, req task.CreateRequest, idempotencyKey string) (*task.Record, error) {
	rec, err := f.mutator.Create(ctx, req, idempotencyKey)
	if err != nil {
		f.cfg.Reporter.Report(events.SyncError{Err: err})
		return nil, err
	}
	// The new task is non-terminal; make sure polling picks it up.
	f.ensurePolling(false)
	return rec, nil
}

// Prepend optimistically inserts a record at the front of this feed's
// cached pages, deduplicating by id.
func (f *Feed) Prepend(rec task.Record) {
	f.cache.Prepend(f.scope, rec)
	if !rec.Status.Terminal() {
		f.ensurePolling(false)
	}
}

// Remove deletes a record by id from this feed's cached pages.
func (f *Feed) Remove(id string) {
	f.cache.Remove(f.scope, id)
}

// Delete removes the record on the server and from the cached pages.
func (f *Feed) Delete(ctx context.Context, id string) error {
	if err := f.api.DeleteRecord(ctx, id); err != nil {
		f.cfg.Reporter.Report(events.SyncError{Err: err})
		return err
	}
	f.Remove(id)
	return nil
}

// Invalidate marks this feed's cached pages for mandatory re-fetch on next
// read, keeping stale data visible meanwhile.
func (f *Feed) Invalidate() {
	f.cache.Invalidate(f.scope)
}

// scope selects the cache keys owned by this feed's current criteria.
func (f *Feed) scope(key string) bool {
	f.mu.Lock()
	prefix := f.query.ScopePrefix()
	f.mu.Unlock()
	return strings.HasPrefix(key, prefix)
}

func (f *Feed) currentKey() string {
	f.mu.Lock()
	q := f.query
	f.mu.Unlock()
	q.Cursor = f.pager.Cursor()
	return q.Key()
}

// pollOnce is the scheduler callback: re-validate the current page.
func (f *Feed) pollOnce(ctx context.Context) error {
	return f.fetch(ctx, false)
}

// refetchStale is the cache's stale-read hook. Only the key for the page
// the feed is positioned on can be re-fetched; other keys age out.
func (f *Feed) refetchStale(key string) {
	if key != f.currentKey() {
		return
	}
	if err := f.fetch(context.Background(), false); err != nil {
		f.cfg.Logger.Debug("stale re-fetch failed", zap.Error(err))
	}
}

// fetch retrieves the page at the current cursor and applies it to the
// cache, the paginator and the poll target. Foreground fetches toggle the
// loading flag; background re-validations do not.
func (f *Feed) fetch(ctx context.Context, foreground bool) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	q := f.query
	if foreground {
		f.loading = true
	}
	f.mu.Unlock()

	q.Cursor = f.pager.Cursor()
	key := q.Key()

	page, err := f.api.FetchPage(ctx, q)

	f.mu.Lock()
	if foreground {
		f.loading = false
	}
	if err != nil {
		f.err = err
		f.mu.Unlock()
		f.cfg.Reporter.Report(events.SyncError{Err: err})
		if transport.IsAuth(err) {
			f.cfg.Logger.Warn("fetch hit auth failure", zap.Error(err))
		} else {
			f.cfg.Logger.Debug("fetch failed", zap.String("key", key), zap.Error(err))
		}
		return err
	}
	f.err = nil
	f.mu.Unlock()

	prev, hadPrev := f.cache.Peek(key)
	f.cache.Set(key, page.Data, page.NextCursor)
	f.pager.ApplyResponse(page.NextCursor)

	if hadPrev {
		f.reportTransitions(prev.Records, page.Data)
	}

	f.ensurePolling(page.AllTerminal())
	return nil
}

// ensurePolling keeps the poll target alive exactly while the current page
// holds non-terminal tasks.
func (f *Feed) ensurePolling(allTerminal bool) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return
	}
	if allTerminal {
		if f.poll.IsActive() {
			f.cfg.Logger.Debug("all tasks settled, polling stopped")
			f.poll.Stop()
		}
		return
	}
	if !f.poll.IsActive() {
		f.cfg.Logger.Debug("non-terminal tasks present, polling started")
		f.poll.Start()
	}
}

// reportTransitions publishes events for status and progress changes
// between two consecutive fetches of the same page.
func (f *Feed) reportTransitions(before, after []task.Record) {
	prev := make(map[string]task.Record, len(before))
	for _, r := range before {
		prev[r.ID] = r
	}
	for _, r := range after {
		old, seen := prev[r.ID]
		switch {
		case r.Status == task.StatusCompleted && (!seen || old.Status != task.StatusCompleted):
			f.cfg.Reporter.Report(events.TaskCompleted{Record: r})
		case r.Status == task.StatusFailed && (!seen || old.Status != task.StatusFailed):
			f.cfg.Reporter.Report(events.TaskFailed{ID: r.ID, Message: r.ErrorMessage})
		case r.Status == task.StatusProcessing && seen && old.Progress != r.Progress:
			f.cfg.Reporter.Report(events.TaskProgress{ID: r.ID, Progress: r.Progress})
		}
	}
}
