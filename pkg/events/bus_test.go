package events

import (
	"testing"

	"github.com/clipforge/vidsync/pkg/task"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()

	var a, b []Event
	cancelA := bus.Subscribe(func(e Event) { a = append(a, e) })
	bus.Subscribe(func(e Event) { b = append(b, e) })

	bus.Report(TaskProgress{ID: "vt_1", Progress: 40})
	bus.Report(TaskCompleted{Record: task.Record{ID: "vt_1", Status: task.StatusCompleted}})

	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("fan-out counts: a=%d b=%d", len(a), len(b))
	}

	cancelA()
	bus.Report(TaskFailed{ID: "vt_2", Message: "boom"})
	if len(a) != 2 {
		t.Fatal("unsubscribed listener still notified")
	}
	if len(b) != 3 {
		t.Fatalf("remaining listener missed event: %d", len(b))
	}

	switch e := b[2].(type) {
	case TaskFailed:
		if e.ID != "vt_2" {
			t.Fatalf("wrong payload: %+v", e)
		}
	default:
		t.Fatalf("wrong variant: %T", b[2])
	}
}

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 0; i < 8; i++ {
		n := i
		bus.Subscribe(func(Event) { order = append(order, n) })
	}

	bus.Report(TaskProgress{ID: "vt_1", Progress: 10})

	if len(order) != 8 {
		t.Fatalf("delivered to %d of 8 listeners", len(order))
	}
	for i, n := range order {
		if n != i {
			t.Fatalf("delivery out of subscription order: %v", order)
		}
	}

	// Order survives an unsubscribe in the middle.
	order = nil
	bus2 := NewBus()
	bus2.Subscribe(func(Event) { order = append(order, 0) })
	cancel := bus2.Subscribe(func(Event) { order = append(order, 1) })
	bus2.Subscribe(func(Event) { order = append(order, 2) })
	cancel()
	bus2.Report(TaskFailed{ID: "vt_2", Message: "boom"})
	if len(order) != 2 || order[0] != 0 || order[1] != 2 {
		t.Fatalf("unexpected delivery order after unsubscribe: %v", order)
	}
}

func TestDiscard(t *testing.T) {
	// Must simply not panic.
	Discard.Report(SyncError{})
}
