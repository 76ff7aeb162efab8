package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/vidsync/pkg/events"
	"github.com/clipforge/vidsync/pkg/task"
	"github.com/clipforge/vidsync/pkg/transport"
)

// fakeAPI serves a fixed record set with cursor pagination and scripted
// status progression. Safe for concurrent use.
type fakeAPI struct {
	mu       sync.Mutex
	records  []task.Record
	pageSize int
	fetches  int
	err      error
}

func newFakeAPI(pageSize int, records ...task.Record) *fakeAPI {
	return &fakeAPI{records: records, pageSize: pageSize}
}

func (f *fakeAPI) setStatus(id string, status task.Status, progress int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Status = status
			f.records[i].Progress = progress
		}
	}
}

func (f *fakeAPI) FetchPage(ctx context.Context, q task.Query) (*task.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}

	start := 0
	if q.Cursor != "" {
		if _, err := fmt.Sscanf(q.Cursor, "at-%d", &start); err != nil {
			return nil, &transport.APIError{Op: "FetchPage", StatusCode: 400, Code: "INVALID_CURSOR", Err: transport.ErrCursorInvalid}
		}
	}
	end := start + f.pageSize
	if end > len(f.records) {
		end = len(f.records)
	}
	page := &task.Page{Data: append([]task.Record(nil), f.records[start:end]...)}
	if end < len(f.records) {
		page.NextCursor = fmt.Sprintf("at-%d", end)
	}
	return page, nil
}

func (f *fakeAPI) CreateRecord(ctx context.Context, req task.CreateRequest, key string) (*task.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := task.Record{
		ID:        fmt.Sprintf("srv-%d", len(f.records)+1),
		Title:     req.Title,
		Status:    task.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	f.records = append([]task.Record{rec}, f.records...)
	return &rec, nil
}

func (f *fakeAPI) GetRecord(ctx context.Context, id string) (*task.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, &transport.APIError{Op: "GetRecord", StatusCode: 404, Err: transport.ErrNotFound}
}

func (f *fakeAPI) DeleteRecord(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return &transport.APIError{Op: "DeleteRecord", StatusCode: 404, Err: transport.ErrNotFound}
}

func (f *fakeAPI) Close() error { return nil }

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func doneRecords(n int) []task.Record {
	out := make([]task.Record, n)
	for i := range out {
		out[i] = task.Record{
			ID:        fmt.Sprintf("vt_%02d", i+1),
			Status:    task.StatusCompleted,
			CreatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC).Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func snapshotIDs(s Snapshot) []string {
	out := make([]string, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.ID
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestFeed_InitialFetch(t *testing.T) {
	api := newFakeAPI(10, doneRecords(25)...)
	f := New(api, Config{Query: task.Query{Limit: 10}})
	defer f.Close()

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s := f.Snapshot()
	if len(s.Records) != 10 {
		t.Fatalf("page size: %d", len(s.Records))
	}
	if !s.CanNext || s.CanPrev || s.Page != 1 {
		t.Fatalf("pagination state: %+v", s)
	}
	if s.Polling {
		t.Fatal("all-terminal page must not poll")
	}
	if s.Err != nil {
		t.Fatalf("unexpected error: %v", s.Err)
	}
}

func TestFeed_PaginationRoundTrip(t *testing.T) {
	api := newFakeAPI(10, doneRecords(25)...)
	f := New(api, Config{Query: task.Query{Limit: 10}})
	defer f.Close()

	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	firstPage := snapshotIDs(f.Snapshot())

	if err := f.GoNext(ctx); err != nil {
		t.Fatalf("GoNext: %v", err)
	}
	s := f.Snapshot()
	if s.Page != 2 || !s.CanPrev {
		t.Fatalf("after GoNext: %+v", s)
	}
	secondPage := snapshotIDs(s)
	if firstPage[0] == secondPage[0] {
		t.Fatal("page did not advance")
	}

	// Returning must refetch with the original cursor and restore page 1.
	if err := f.GoPrev(ctx); err != nil {
		t.Fatalf("GoPrev: %v", err)
	}
	s = f.Snapshot()
	if s.Page != 1 || s.CanPrev {
		t.Fatalf("after GoPrev: %+v", s)
	}
	back := snapshotIDs(s)
	if len(back) != len(firstPage) {
		t.Fatalf("restored page size: %d", len(back))
	}
	for i := range back {
		if back[i] != firstPage[i] {
			t.Fatalf("restored page differs at %d: %q vs %q", i, back[i], firstPage[i])
		}
	}
}

func TestFeed_GoNextWithoutNextIsNoop(t *testing.T) {
	api := newFakeAPI(10, doneRecords(5)...)
	f := New(api, Config{Query: task.Query{Limit: 10}})
	defer f.Close()

	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := api.fetchCount()
	if err := f.GoNext(ctx); err != nil {
		t.Fatalf("GoNext: %v", err)
	}
	if api.fetchCount() != before {
		t.Fatal("no-op GoNext still fetched")
	}
	if err := f.GoPrev(ctx); err != nil {
		t.Fatalf("GoPrev: %v", err)
	}
	if f.Snapshot().Page != 1 {
		t.Fatal("no-op navigation moved the page")
	}
}

func TestFeed_PollsWhileProcessingStopsWhenSettled(t *testing.T) {
	records := doneRecords(3)
	records[0].Status = task.StatusProcessing
	records[0].Progress = 10
	api := newFakeAPI(10, records...)

	f := New(api, Config{Query: task.Query{Limit: 10}, PollInterval: 15 * time.Millisecond})
	defer f.Close()

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !f.IsPolling() {
		t.Fatal("processing record must keep the poll target active")
	}

	api.setStatus("vt_01", task.StatusCompleted, 100)
	waitFor(t, 2*time.Second, func() bool { return !f.IsPolling() })

	s := f.Snapshot()
	if s.Records[0].Status != task.StatusCompleted {
		t.Fatalf("completion not synced: %+v", s.Records[0])
	}
}

func TestFeed_TransitionEvents(t *testing.T) {
	records := doneRecords(2)
	records[0].Status = task.StatusProcessing
	records[0].Progress = 10
	api := newFakeAPI(10, records...)

	bus := events.NewBus()
	var mu sync.Mutex
	var seen []events.Event
	bus.Subscribe(func(e events.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})

	f := New(api, Config{
		Query:        task.Query{Limit: 10},
		PollInterval: 15 * time.Millisecond,
		Reporter:     bus,
	})
	defer f.Close()

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	api.setStatus("vt_01", task.StatusProcessing, 60)
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range seen {
			if p, ok := e.(events.TaskProgress); ok && p.Progress == 60 {
				return true
			}
		}
		return false
	})

	api.setStatus("vt_01", task.StatusCompleted, 100)
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range seen {
			if c, ok := e.(events.TaskCompleted); ok && c.Record.ID == "vt_01" {
				return true
			}
		}
		return false
	})
}

func TestFeed_CreateOptimisticThenConfirmed(t *testing.T) {
	api := newFakeAPI(10, doneRecords(3)...)
	f := New(api, Config{Query: task.Query{Limit: 10}, PollInterval: time.Hour})
	defer f.Close()

	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec, err := f.Create(ctx, task.CreateRequest{Title: "x"}, "k1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	s := f.Snapshot()
	ids := snapshotIDs(s)
	if ids[0] != rec.ID {
		t.Fatalf("confirmed record not first: %v", ids)
	}
	count := 0
	for _, id := range ids {
		if id == rec.ID || id == "pending-k1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("placeholder duplicate present: %v", ids)
	}
	if !f.IsPolling() {
		t.Fatal("new queued task must activate polling")
	}
}

func TestFeed_SetQueryResetsPagination(t *testing.T) {
	api := newFakeAPI(10, doneRecords(25)...)
	f := New(api, Config{Query: task.Query{Limit: 10}})
	defer f.Close()

	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.GoNext(ctx); err != nil {
		t.Fatalf("GoNext: %v", err)
	}
	if f.Snapshot().Page != 2 {
		t.Fatal("setup failed to advance")
	}

	if err := f.SetQuery(ctx, task.Query{Limit: 10, Search: "vt"}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}
	s := f.Snapshot()
	if s.Page != 1 || s.CanPrev {
		t.Fatalf("criteria change did not reset pagination: %+v", s)
	}
}

func TestFeed_FetchErrorSurfacesAndClears(t *testing.T) {
	api := newFakeAPI(10, doneRecords(3)...)
	f := New(api, Config{Query: task.Query{Limit: 10}})
	defer f.Close()

	ctx := context.Background()
	api.err = &transport.APIError{Op: "FetchPage", StatusCode: 503, Err: transport.ErrServer}
	if err := f.Start(ctx); err == nil {
		t.Fatal("expected fetch error")
	}
	if f.Snapshot().Err == nil {
		t.Fatal("error not surfaced in snapshot")
	}

	api.mu.Lock()
	api.err = nil
	api.mu.Unlock()
	if err := f.Refetch(ctx); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	if f.Snapshot().Err != nil {
		t.Fatal("error not cleared after successful refetch")
	}
}

func TestFeed_RemoveAndDelete(t *testing.T) {
	api := newFakeAPI(10, doneRecords(3)...)
	f := New(api, Config{Query: task.Query{Limit: 10}})
	defer f.Close()

	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.Remove("vt_02")
	ids := snapshotIDs(f.Snapshot())
	for _, id := range ids {
		if id == "vt_02" {
			t.Fatalf("record not removed: %v", ids)
		}
	}

	if err := f.Delete(ctx, "vt_01"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := api.GetRecord(ctx, "vt_01"); !transport.IsNotFound(err) {
		t.Fatal("server-side delete missing")
	}
}
