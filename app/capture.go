package app

import (
	"time"

	"github.com/vedsirdeshmukh/are-sim/event"
)

// Capture is the capture-mode builder of spec §4.6/§9: rather than a
// process-wide flag that redirects a live app object's calls, scenario
// authors call Capture directly to produce an un-executed event.Event
// describing a future Action. The engine dispatches it for real once its
// dependencies resolve and its time arrives; nothing here touches the
// Registry or the log.
type Capture struct {
	App string
}

// NewCapture returns a builder scoped to one app's tools.
func NewCapture(appName string) Capture {
	return Capture{App: appName}
}

// Action builds an un-executed KindAction event for the given tool and
// raw argument mapping (which may itself contain "{{event_id.path}}"
// placeholders referencing other captured events).
func (c Capture) Action(id string, actor event.ActorType, tool string, rawArgs map[string]any) *event.Event {
	e := event.New(id, event.KindAction, actor)
	e.Action = &event.Action{App: c.App, Tool: tool, RawArgs: rawArgs}
	return e
}

// At sets an explicit absolute event_time on e (spec §3.2: an explicit
// time takes precedence over dependency-derived timing, per DESIGN.md
// Open Question 1).
func At(e *event.Event, t time.Time) *event.Event {
	e.Time = &t
	return e
}

// After sets e's dependencies and the relative offset added once all of
// them have completed.
func After(e *event.Event, relative time.Duration, deps ...string) *event.Event {
	e.RelativeTime = relative
	e.Dependencies = deps
	return e
}

// Successors appends ids to e's successor list, propagated once e
// completes.
func Successors(e *event.Event, ids ...string) *event.Event {
	e.Successors = append(e.Successors, ids...)
	return e
}
