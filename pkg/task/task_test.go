package task

import (
	"testing"
	"time"
)

func TestStatus_Terminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%q should be terminal", s)
		}
	}
	for _, s := range []Status{StatusQueued, StatusProcessing} {
		if s.Terminal() {
			t.Fatalf("%q should not be terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusCompleted, true},
		{StatusQueued, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusQueued, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusFailed, true},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Fatalf("CanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestPage_AllTerminal(t *testing.T) {
	p := &Page{Data: []Record{
		{ID: "vt_1", Status: StatusCompleted},
		{ID: "vt_2", Status: StatusProcessing},
	}}
	if p.AllTerminal() {
		t.Fatal("page with processing record reported terminal")
	}
	p.Data[1].Status = StatusFailed
	if !p.AllTerminal() {
		t.Fatal("all-terminal page not reported terminal")
	}
	if !(&Page{}).AllTerminal() {
		t.Fatal("empty page should be terminal")
	}
}

func TestCreateRequest_Validate(t *testing.T) {
	long := make([]byte, MaxTitleLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := (CreateRequest{Title: string(long)}).Validate(); err == nil {
		t.Fatal("oversized title accepted")
	}
	if err := (CreateRequest{Title: "demo", Prompt: "a prompt"}).Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestCreateRequest_Projected(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rec := CreateRequest{Title: " demo "}.Projected("tmp-1", now)
	if rec.ID != "tmp-1" || rec.Status != StatusQueued {
		t.Fatalf("unexpected projection: %+v", rec)
	}
	if rec.Title != "demo" {
		t.Fatalf("title not trimmed: %q", rec.Title)
	}
	if !rec.CreatedAt.Equal(now) {
		t.Fatalf("createdAt not set: %v", rec.CreatedAt)
	}
}

func TestQuery_KeyAndCriteria(t *testing.T) {
	a := Query{Search: " demo ", Limit: 0}
	b := Query{Search: "demo", Limit: DefaultLimit}
	if a.Key() != b.Key() {
		t.Fatalf("normalized keys differ: %q vs %q", a.Key(), b.Key())
	}

	withCursor := Query{Search: "demo", Cursor: "abc"}
	if !withCursor.SameCriteria(b) {
		t.Fatal("cursor should not affect criteria equality")
	}
	if withCursor.Key() == b.Key() {
		t.Fatal("cursor must be part of the cache key")
	}

	other := Query{Search: "demo", Status: StatusProcessing}
	if other.SameCriteria(b) {
		t.Fatal("status filter change should break criteria equality")
	}
}
