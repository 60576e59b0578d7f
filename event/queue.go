package event

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Queue is the future-event priority structure (spec §3.2/§4.2). Events
// whose dependencies are not yet satisfied are held pending; once their
// last dependency completes they become ready and enter the time-ordered
// heap. Ready events pop out by (Time, insertion order).
//
// Queue is safe for concurrent use: the event loop pops from it while the
// controller may Put new events between ticks (spec §5, "a coarse guard
// suffices").
type Queue struct {
	mu sync.Mutex

	all     map[string]*Event
	pending map[string]*Event
	byDep   map[string][]string // dependency event ID -> waiting successor IDs

	ready readyHeap

	startTime time.Time
	seq       int
}

// NewQueue constructs an empty Queue anchored at startTime, used to
// resolve the Time of dependency-free events.
func NewQueue(startTime time.Time) *Queue {
	return &Queue{
		all:       make(map[string]*Event),
		pending:   make(map[string]*Event),
		byDep:     make(map[string][]string),
		startTime: startTime,
	}
}

// Put inserts an event, rejecting duplicate IDs. completedTime resolves
// an already-completed dependency's Time (normally EventLog.TimeOf); it
// may be nil if no events have completed yet.
func (q *Queue) Put(e *Event, completedTime func(id string) (time.Time, bool)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.putLocked(e, completedTime)
}

func (q *Queue) putLocked(e *Event, completedTime func(id string) (time.Time, bool)) error {
	if _, dup := q.all[e.ID]; dup {
		return fmt.Errorf("event %q already scheduled", e.ID)
	}
	e.initUnresolved()
	q.all[e.ID] = e

	lookup := completedTime
	if lookup == nil {
		lookup = func(string) (time.Time, bool) { return time.Time{}, false }
	}

	// Any dependency already completed counts down immediately.
	for _, dep := range e.Dependencies {
		if _, ok := lookup(dep); ok {
			e.unresolved--
		}
	}

	if e.unresolved == 0 && e.ResolveTime(q.startTime, lookup) {
		q.pushReady(e)
		return nil
	}

	q.pending[e.ID] = e
	for _, dep := range e.Dependencies {
		if _, ok := lookup(dep); !ok {
			q.byDep[dep] = append(q.byDep[dep], e.ID)
		}
	}
	return nil
}

// PutMany schedules a batch of events in one locked section. See Put.
func (q *Queue) PutMany(events []*Event, completedTime func(id string) (time.Time, bool)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range events {
		if err := q.putLocked(e, completedTime); err != nil {
			return err
		}
	}
	return nil
}

// NotifyDependencyCompleted is called once per completed event; it
// advances every pending successor waiting on depID, moving it into the
// ready heap once its own dependencies are all satisfied.
func (q *Queue) NotifyDependencyCompleted(depID string, depTime time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	waiters := q.byDep[depID]
	delete(q.byDep, depID)
	for _, id := range waiters {
		e, ok := q.pending[id]
		if !ok {
			continue
		}
		if !e.MarkDependencyDone() {
			continue
		}
		lookup := func(id string) (time.Time, bool) {
			if id == depID {
				return depTime, true
			}
			return time.Time{}, false
		}
		if e.ResolveTime(q.startTime, lookup) {
			delete(q.pending, e.ID)
			q.pushReady(e)
		}
	}
}

// PopEventsToProcess removes and returns, in priority order, every ready
// event whose Time is <= now.
func (q *Queue) PopEventsToProcess(now time.Time) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*Event
	for len(q.ready) > 0 && !q.ready[0].event.Time.After(now) {
		item := heap.Pop(&q.ready).(*readyItem)
		delete(q.all, item.event.ID)
		due = append(due, item.event)
	}
	return due
}

// Peek returns the earliest ready future event without removing it, or
// nil if the queue has no ready events.
func (q *Queue) Peek() *Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return nil
	}
	return q.ready[0].event
}

// PeekTime returns the earliest ready future event's Time, implementing
// notify.QueuePeeker for the wait-for-notification primitive.
func (q *Queue) PeekTime() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return time.Time{}, false
	}
	return *q.ready[0].event.Time, true
}

// Len returns the total number of events still tracked by the queue
// (ready plus pending on unresolved dependencies).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.all)
}

// HasPendingValidation reports whether any KindValidation event remains
// tracked by the queue (ready or pending), for the final validation
// check at loop exit (spec §4.4).
func (q *Queue) HasPendingValidation() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.all {
		if e.Kind == KindValidation {
			return true
		}
	}
	return false
}

// All returns a snapshot of every event still tracked by the queue
// (ready or pending), for introspection (spec §6's event_queue_json).
// Ordered by resolved time then ID (unresolved events last) so snapshots
// are deterministic.
func (q *Queue) All() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Event, 0, len(q.all))
	for _, e := range q.all {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Time, out[j].Time
		switch {
		case ti != nil && tj != nil && !ti.Equal(*tj):
			return ti.Before(*tj)
		case ti != nil && tj == nil:
			return true
		case ti == nil && tj != nil:
			return false
		default:
			return out[i].ID < out[j].ID
		}
	})
	return out
}

func (q *Queue) pushReady(e *Event) {
	q.seq++
	heap.Push(&q.ready, &readyItem{event: e, seq: q.seq})
}

type readyItem struct {
	event *Event
	seq   int
}

type readyHeap []*readyItem

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	ti, tj := h[i].event.Time, h[j].event.Time
	if ti.Equal(*tj) {
		return h[i].seq < h[j].seq
	}
	return ti.Before(*tj)
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)   { *h = append(*h, x.(*readyItem)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
