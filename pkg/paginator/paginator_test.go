package paginator

import "testing"

func TestPaginator_StartState(t *testing.T) {
	p := New()
	if p.Cursor() != "" {
		t.Fatalf("fresh paginator has cursor %q", p.Cursor())
	}
	if p.HasNext() || p.HasPrev() {
		t.Fatal("fresh paginator should have no next or prev")
	}
	if p.CurrentPage() != 1 {
		t.Fatalf("fresh paginator at page %d", p.CurrentPage())
	}
}

func TestPaginator_GoNextWithoutCursorIsNoop(t *testing.T) {
	p := New()
	if p.GoNext() {
		t.Fatal("GoNext with no recorded next-cursor should be a no-op")
	}
	if p.CurrentPage() != 1 || p.Cursor() != "" {
		t.Fatal("no-op GoNext changed state")
	}
}

func TestPaginator_GoPrevAtPageOneIsNoop(t *testing.T) {
	p := New()
	if p.GoPrev() {
		t.Fatal("GoPrev at page 1 should be a no-op")
	}
}

func TestPaginator_RoundTrip(t *testing.T) {
	p := New()

	p.ApplyResponse("c1")
	if !p.HasNext() {
		t.Fatal("next-cursor not recorded")
	}
	if !p.GoNext() {
		t.Fatal("GoNext failed with recorded cursor")
	}
	if p.Cursor() != "c1" || p.CurrentPage() != 2 {
		t.Fatalf("after GoNext: cursor=%q page=%d", p.Cursor(), p.CurrentPage())
	}
	if p.HasNext() {
		t.Fatal("next-cursor must be consumed by GoNext")
	}

	p.ApplyResponse("c2")
	if !p.GoNext() {
		t.Fatal("second GoNext failed")
	}
	if p.Cursor() != "c2" || p.CurrentPage() != 3 {
		t.Fatalf("after second GoNext: cursor=%q page=%d", p.Cursor(), p.CurrentPage())
	}

	// Pop back to page 2: the exact cursor used to reach it must return.
	if !p.GoPrev() {
		t.Fatal("GoPrev failed")
	}
	if p.Cursor() != "c1" || p.CurrentPage() != 2 {
		t.Fatalf("after GoPrev: cursor=%q page=%d", p.Cursor(), p.CurrentPage())
	}

	// Pop back to page 1: sentinel maps back to the empty cursor.
	if !p.GoPrev() {
		t.Fatal("second GoPrev failed")
	}
	if p.Cursor() != "" || p.CurrentPage() != 1 {
		t.Fatalf("after returning to page 1: cursor=%q page=%d", p.Cursor(), p.CurrentPage())
	}
}

func TestPaginator_PageAlwaysHistoryPlusOne(t *testing.T) {
	p := New()
	steps := []string{"a", "b", "c", "d"}
	for i, c := range steps {
		p.ApplyResponse(c)
		if !p.GoNext() {
			t.Fatalf("GoNext %d failed", i)
		}
		if p.CurrentPage() != i+2 {
			t.Fatalf("after %d forward steps page=%d", i+1, p.CurrentPage())
		}
	}
	for i := len(steps); i > 0; i-- {
		if !p.GoPrev() {
			t.Fatalf("GoPrev at page %d failed", i+1)
		}
		if p.CurrentPage() != i {
			t.Fatalf("after popping, page=%d want %d", p.CurrentPage(), i)
		}
	}
	if p.GoPrev() {
		t.Fatal("GoPrev past page 1 succeeded")
	}
}

func TestPaginator_Reset(t *testing.T) {
	p := New()
	p.ApplyResponse("c1")
	p.GoNext()
	p.ApplyResponse("c2")

	p.Reset()
	if p.Cursor() != "" || p.HasNext() || p.HasPrev() || p.CurrentPage() != 1 {
		t.Fatal("Reset did not clear all state")
	}
}
