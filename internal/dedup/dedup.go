package dedup

import (
	"sync"

	"github.com/rickgao/camwatch/internal/model"
	"github.com/rickgao/camwatch/internal/router"
)

// DefaultCapacity is the number of ids remembered when New is given zero.
const DefaultCapacity = 1024

// Filter is a bounded, insertion-ordered set of seen alert ids.
type Filter struct {
	mu    sync.Mutex
	seen  map[int64]struct{}
	order []int64 // Ring of ids in insertion order
	next  int     // Slot the next id overwrites once the ring is full
}

// New creates a Filter remembering up to capacity ids.
func New(capacity int) *Filter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Filter{
		seen:  make(map[int64]struct{}, capacity),
		order: make([]int64, 0, capacity),
	}
}

// Accept reports whether id is new, recording it if so.
func (f *Filter) Accept(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[id]; ok {
		return false
	}

	if len(f.order) < cap(f.order) {
		f.order = append(f.order, id)
	} else {
		delete(f.seen, f.order[f.next])
		f.order[f.next] = id
		f.next = (f.next + 1) % len(f.order)
	}
	f.seen[id] = struct{}{}
	return true
}

// Seen reports whether id is currently remembered.
func (f *Filter) Seen(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[id]
	return ok
}

// Len returns the number of remembered ids.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// AcceptEnvelope applies the filter to an alert envelope. Envelopes that are
// not alert creations, or carry no id, are always accepted.
func (f *Filter) AcceptEnvelope(env router.Envelope) bool {
	id, ok := Key(env)
	if !ok {
		return true
	}
	return f.Accept(id)
}

// Key returns the dedup key of a creation notice.
func Key(env router.Envelope) (int64, bool) {
	ev, ok := env.Event.(router.AlertEvent)
	if !ok {
		return 0, false
	}
	switch ev.Notice.Action {
	case "", model.AlertCreated:
	default:
		return 0, false
	}
	return ev.Notice.AlertID()
}
