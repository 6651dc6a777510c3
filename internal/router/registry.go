package router

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Listener wraps a callback so it can be unregistered by identity.
type Listener struct {
	fn func(Envelope)
}

// NewListener returns a listener that calls fn for every matching envelope.
func NewListener(fn func(Envelope)) *Listener {
	return &Listener{fn: fn}
}

// ListenerFailure records a listener that panicked during Dispatch.
type ListenerFailure struct {
	Type      string
	Index     int
	Recovered any
}

func (f ListenerFailure) Error() string {
	return fmt.Sprintf("listener %d for %q panicked: %v", f.Index, f.Type, f.Recovered)
}

type entry struct {
	listener *Listener
	active   atomic.Bool
}

// Registry maps event types to ordered listener lists.
//
// Lists are copy-on-write: On, Off and Clear replace the slice for a type, so
// a Dispatch already running keeps iterating the slice it started with.
// Entries removed after that snapshot are marked inactive and skipped.
type Registry struct {
	mu     sync.Mutex
	byType map[string][]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string][]*entry)}
}

// On appends l to the list for eventType. Registering the same listener twice
// makes it run twice.
func (r *Registry) On(eventType string, l *Listener) {
	if l == nil || l.fn == nil {
		return
	}

	e := &entry{listener: l}
	e.active.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.byType[eventType]
	next := make([]*entry, len(old), len(old)+1)
	copy(next, old)
	r.byType[eventType] = append(next, e)
}

// Off removes the first registration of l for eventType. Unknown types and
// listeners are ignored.
func (r *Registry) Off(eventType string, l *Listener) {
	if l == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byType[eventType]
	if !ok {
		return
	}
	for i, e := range old {
		if e.listener != l {
			continue
		}
		e.active.Store(false)

		if len(old) == 1 {
			delete(r.byType, eventType)
			return
		}
		next := make([]*entry, 0, len(old)-1)
		next = append(next, old[:i]...)
		next = append(next, old[i+1:]...)
		r.byType[eventType] = next
		return
	}
}

// Clear removes every listener.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entries := range r.byType {
		for _, e := range entries {
			e.active.Store(false)
		}
	}
	r.byType = make(map[string][]*entry)
}

// Len returns the number of listeners registered for eventType.
func (r *Registry) Len(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byType[eventType])
}

// Dispatch calls every listener registered for env.Type, in registration
// order, and returns the number of listeners called. Panics are recovered and
// reported; the remaining listeners still run.
func (r *Registry) Dispatch(env Envelope) (int, []ListenerFailure) {
	r.mu.Lock()
	snapshot := r.byType[env.Type]
	r.mu.Unlock()

	var (
		called   int
		failures []ListenerFailure
	)
	for i, e := range snapshot {
		if !e.active.Load() {
			continue
		}
		called++
		if rec, panicked := invoke(e.listener, env); panicked {
			failures = append(failures, ListenerFailure{Type: env.Type, Index: i, Recovered: rec})
		}
	}
	return called, failures
}

func invoke(l *Listener, env Envelope) (rec any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			rec, panicked = r, true
		}
	}()
	l.fn(env)
	return nil, false
}
