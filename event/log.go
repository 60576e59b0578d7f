package event

import (
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Log is the append-only, insertion-ordered record of completed events
// (spec §3.3). It also serves as the completed-dependency time lookup the
// Queue needs to resolve dependent events, and as the source for
// placeholder resolution.
type Log struct {
	mu      sync.RWMutex
	entries []*Event
	byID    map[string]int // event ID -> index into entries
	jsonOf  map[string][]byte
}

// NewLog constructs an empty Log.
func NewLog() *Log {
	return &Log{
		byID:   make(map[string]int),
		jsonOf: make(map[string][]byte),
	}
}

// Append records a completed event. e.Completed must already be set (see
// Event.Complete/CompleteTimeout).
func (l *Log) Append(e *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[e.ID] = len(l.entries)
	l.entries = append(l.entries, e)
}

// Len returns the number of completed events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// All returns a snapshot slice of completed events in execution order.
// Callers must not mutate the returned events.
func (l *Log) All() []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// Get returns the completed event with the given ID, if any.
func (l *Log) Get(id string) (*Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return nil, false
	}
	return l.entries[idx], true
}

// TimeOf returns the execution time of a completed event, for use as the
// Queue's completedTime callback.
func (l *Log) TimeOf(id string) (time.Time, bool) {
	e, ok := l.Get(id)
	if !ok || e.Completed == nil {
		return time.Time{}, false
	}
	return e.Completed.ExecutedAt, true
}

// ReturnValuePath walks the referenced completed event's return value
// through a dotted gjson path (e.g. "folder.id"), caching the JSON
// marshal per event so repeated placeholder lookups stay cheap. ok is
// false when the event is unknown, has no return value, or the path does
// not resolve.
func (l *Log) ReturnValuePath(id, path string) (gjson.Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.byID[id]
	if !ok {
		return gjson.Result{}, false
	}
	e := l.entries[idx]
	if e.Completed == nil || e.Completed.ReturnValue == nil {
		return gjson.Result{}, false
	}

	data, cached := l.jsonOf[id]
	if !cached {
		marshaled, err := marshalReturnValue(e.Completed.ReturnValue)
		if err != nil {
			return gjson.Result{}, false
		}
		l.jsonOf[id] = marshaled
		data = marshaled
	}
	if path == "" {
		return gjson.ParseBytes(data), true
	}
	res := gjson.GetBytes(data, path)
	return res, res.Exists()
}
