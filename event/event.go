// Package event defines the scheduling unit of the simulator: Event, its
// four kinds of payload, the future-event queue, and the completed-event
// log. See spec §3.2-3.3.
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vedsirdeshmukh/are-sim/validate"
)

// Kind distinguishes the four event shapes the loop knows how to process,
// plus the stop sentinel. See spec §3.2.
type Kind int

const (
	// KindAction invokes a tool on an app with resolved arguments.
	KindAction Kind = iota
	// KindConditionCheck evaluates a predicate, rescheduling itself until
	// it is true or its timeout elapses.
	KindConditionCheck
	// KindValidation runs a scheduled validator's milestones/minefields.
	KindValidation
	// KindAgentValidation installs a live AgentActionValidator.
	KindAgentValidation
	// KindOracle is an action event honored only in oracle mode.
	KindOracle
	// KindStop terminates the loop.
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindConditionCheck:
		return "condition_check"
	case KindValidation:
		return "validation"
	case KindAgentValidation:
		return "agent_validation"
	case KindOracle:
		return "oracle"
	case KindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String, for rebuilding events from a
// persisted snapshot or a scenario file.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "action":
		return KindAction, nil
	case "condition_check":
		return KindConditionCheck, nil
	case "validation":
		return KindValidation, nil
	case "agent_validation":
		return KindAgentValidation, nil
	case "oracle":
		return KindOracle, nil
	case "stop":
		return KindStop, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// ActorType is the event_type of spec §3.2: who or what produced this
// event, independent of its Kind.
type ActorType int

const (
	// ActorUser marks a scripted user action (e.g. AUI send-to-user).
	ActorUser ActorType = iota
	// ActorAgent marks an action dispatched through the agent tool
	// interface.
	ActorAgent
	// ActorEnv marks an action the environment itself scripted.
	ActorEnv
	// ActorCondition marks a condition-check event.
	ActorCondition
	// ActorValidation marks a validation event.
	ActorValidation
)

func (a ActorType) String() string {
	switch a {
	case ActorUser:
		return "USER"
	case ActorAgent:
		return "AGENT"
	case ActorEnv:
		return "ENV"
	case ActorCondition:
		return "CONDITION"
	case ActorValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// ParseActor is the inverse of ActorType.String. It is case-insensitive
// so both snapshot ("USER") and scenario-file ("user") spellings parse.
func ParseActor(s string) (ActorType, error) {
	switch strings.ToUpper(s) {
	case "USER":
		return ActorUser, nil
	case "AGENT":
		return ActorAgent, nil
	case "ENV":
		return ActorEnv, nil
	case "CONDITION":
		return ActorCondition, nil
	case "VALIDATION":
		return ActorValidation, nil
	default:
		return 0, fmt.Errorf("unknown actor type %q", s)
	}
}

// Action describes a tool invocation: spec §3.4. RawArgs is the
// caller-supplied mapping; ResolvedArgs is filled in at dispatch once
// placeholders are resolved. ToolMetadata is a snapshot captured at
// Action construction time (see app.ToolSpec).
type Action struct {
	App          string
	Tool         string
	RawArgs      map[string]any
	ResolvedArgs map[string]any
	ToolMetadata map[string]any
}

// ConditionCheck is the payload for KindConditionCheck events.
type ConditionCheck struct {
	// Predicate is the compiled condition, evaluated against an
	// environment-state snapshot.
	Predicate *validate.Predicate
	// CheckIntervalTicks is how many ticks to wait between re-evaluations.
	CheckIntervalTicks int
	// TimeoutTicks is the remaining number of ticks before this check
	// gives up. Decremented on each reschedule.
	TimeoutTicks int
}

// Validation is the payload for KindValidation events: a scheduled
// validator's milestone/minefield set (spec §4.4). ValidatorID names the
// logical validator in logs and failure messages; a reschedule re-queues
// the same Event under the same event ID.
type Validation struct {
	ValidatorID string
	Validator   *validate.Scheduled
}

// AgentValidation is the payload for KindAgentValidation events: it
// carries the validator to install into the environment's active list
// when this event fires.
type AgentValidation struct {
	Validator *validate.AgentAction
}

// Completed metadata populated once an event has been processed.
type Completed struct {
	ReturnValue any
	Err         error
	ExecutedAt  time.Time
	TimedOut    bool
}

// Event is the scheduling unit of the simulator. Exactly one of Action,
// ConditionCheck, Validation, or AgentValidation is non-nil, selected by
// Kind (KindStop sets none).
type Event struct {
	ID    string
	Kind  Kind
	Actor ActorType

	// Time is the absolute virtual time this event resolves to, once
	// known. Nil means "not yet resolved" (waiting on Dependencies).
	// Per DESIGN.md Open Question 1: an explicit Time always wins over a
	// dependency-derived time.
	Time *time.Time

	// RelativeTime is added to the max of Dependencies' resolved times
	// once they have all completed, per spec §3.2.
	RelativeTime time.Duration

	Dependencies []string
	Successors   []string

	// unresolved counts how many Dependencies have not yet completed.
	// Maintained by the queue's dependency resolver so successor
	// scheduling is O(1) per completion instead of an O(n^2) rescan
	// (spec §9 design note).
	unresolved int

	Action          *Action
	ConditionCheck  *ConditionCheck
	Validation      *Validation
	AgentValidation *AgentValidation

	Completed *Completed
}

// New constructs an Event with a generated ID when id is empty.
func New(id string, kind Kind, actor ActorType) *Event {
	if id == "" {
		id = uuid.NewString()
	}
	return &Event{ID: id, Kind: kind, Actor: actor}
}

// IsResolved reports whether this event's Time is known, i.e. either set
// explicitly or all Dependencies have completed.
func (e *Event) IsResolved() bool {
	return e.Time != nil || (len(e.Dependencies) > 0 && e.unresolved == 0)
}

// MarkDependencyDone decrements the unresolved-dependency counter,
// returning true once it reaches zero (all dependencies satisfied).
func (e *Event) MarkDependencyDone() bool {
	if e.unresolved > 0 {
		e.unresolved--
	}
	return e.unresolved == 0
}

// initUnresolved seeds the unresolved counter from Dependencies. Called
// once by the queue when an event is first scheduled.
func (e *Event) initUnresolved() {
	e.unresolved = len(e.Dependencies)
}

// ResolveTime computes this event's absolute Time given a lookup of
// already-completed dependency times. Per DESIGN.md Open Question 1, an
// explicit Time set by the caller always wins; otherwise Time is
// max(dependency times) + RelativeTime, or just startTime+RelativeTime
// when there are no dependencies.
func (e *Event) ResolveTime(startTime time.Time, depTime func(id string) (time.Time, bool)) bool {
	if e.Time != nil {
		return true
	}
	if len(e.Dependencies) == 0 {
		t := startTime.Add(e.RelativeTime)
		e.Time = &t
		return true
	}
	var maxT time.Time
	for _, dep := range e.Dependencies {
		t, ok := depTime(dep)
		if !ok {
			return false
		}
		if t.After(maxT) {
			maxT = t
		}
	}
	t := maxT.Add(e.RelativeTime)
	e.Time = &t
	return true
}

// Complete records execution results on the event. It does not append to
// any log; callers use EventLog.Append for that.
func (e *Event) Complete(returnValue any, err error, executedAt time.Time) {
	e.Completed = &Completed{ReturnValue: returnValue, Err: err, ExecutedAt: executedAt}
}

// CompleteTimeout records a timeout completion (condition checks that
// never became true).
func (e *Event) CompleteTimeout(executedAt time.Time) {
	e.Completed = &Completed{ExecutedAt: executedAt, TimedOut: true}
}
