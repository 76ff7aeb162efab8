package poller

import "sync"

// Visibility reports whether the host application is in the foreground.
// The scheduler throttles or pauses polling while hidden.
type Visibility interface {
	// Visible reports the current visibility state.
	Visible() bool

	// Subscribe registers a listener for visibility transitions and returns
	// an unsubscribe function. The listener is called with the new state.
	Subscribe(fn func(visible bool)) (cancel func())
}

// alwaysVisible is the default Visibility for headless use.
type alwaysVisible struct{}

func (alwaysVisible) Visible() bool                        { return true }
func (alwaysVisible) Subscribe(func(bool)) (cancel func()) { return func() {} }

// AlwaysVisible returns a Visibility that never reports hidden.
func AlwaysVisible() Visibility {
	return alwaysVisible{}
}

// Switch is a manually toggled Visibility source. Hosts flip it when the
// application moves between foreground and background. Safe for concurrent
// use.
type Switch struct {
	mu        sync.Mutex
	visible   bool
	nextID    int
	listeners map[int]func(bool)
}

// NewSwitch returns a Switch in the visible state.
func NewSwitch() *Switch {
	return &Switch{visible: true, listeners: make(map[int]func(bool))}
}

// Visible reports the current state.
func (s *Switch) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Set flips the state and notifies listeners on change.
func (s *Switch) Set(visible bool) {
	s.mu.Lock()
	if s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	fns := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(visible)
	}
}

// Subscribe implements Visibility.
func (s *Switch) Subscribe(fn func(visible bool)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
