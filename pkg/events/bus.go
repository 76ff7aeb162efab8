// Package events carries sync-core notifications to interested collaborators.
//
// The core only ever publishes through the narrow Reporter interface; it
// never holds a reference to whatever presentation state consumes the
// events. Events are tagged variants so consumers can switch on type.
package events

import (
	"sync"

	"github.com/clipforge/vidsync/pkg/task"
)

// Event is the marker interface for bus payloads.
type Event interface {
	event()
}

// TaskProgress reports a progress change observed for a processing task.
type TaskProgress struct {
	ID       string
	Progress int
}

// TaskCompleted reports a task reaching the completed status.
type TaskCompleted struct {
	Record task.Record
}

// TaskFailed reports a task reaching the failed status.
type TaskFailed struct {
	ID      string
	Message string
}

// SyncError reports a non-fatal sync failure (a failed poll or mutation).
type SyncError struct {
	Err error
}

func (TaskProgress) event()  {}
func (TaskCompleted) event() {}
func (TaskFailed) event()    {}
func (SyncError) event()     {}

// Reporter is the narrow publishing surface handed to the sync core.
type Reporter interface {
	Report(e Event)
}

// Discard is a Reporter that drops every event.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Event) {}

// Bus fans events out to subscribers. Safe for concurrent use.
//
// Delivery is synchronous and in subscription order; subscribers must not
// block. A Bus also implements Reporter.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener and returns an unsubscribe function.
func (b *Bus) Subscribe(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, listener{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Report implements Reporter.
func (b *Bus) Report(e Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.listeners))
	for _, l := range b.listeners {
		fns = append(fns, l.fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
