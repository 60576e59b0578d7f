package validate

import "fmt"

// Verdict is the result of one evaluation of a milestone/minefield set
// against a state snapshot (spec §4.4).
type Verdict struct {
	// MinefieldFired names the minefield that just became true, or "" if
	// none fired.
	MinefieldFired string
	// NewlyAchieved lists milestones that became true on this evaluation
	// (already-achieved milestones are not re-reported).
	NewlyAchieved []string
	// AllAchieved reports whether every milestone has now been achieved
	// (across this and all prior evaluations).
	AllAchieved bool
}

// Evaluate runs every minefield first (a fired minefield short-circuits
// milestone evaluation, matching spec §4.3's "if any minefield fires,
// raise a validation exception"), then evaluates still-unachieved
// milestones, mutating achieved in place so repeated calls only report
// newly-achieved milestones.
func Evaluate(state map[string]any, milestones, minefields map[string]*Predicate, achieved map[string]bool) (Verdict, error) {
	for name, pred := range minefields {
		fired, err := pred.Eval(state)
		if err != nil {
			return Verdict{}, fmt.Errorf("minefield %q: %w", name, err)
		}
		if fired {
			return Verdict{MinefieldFired: name}, nil
		}
	}

	var newly []string
	for name, pred := range milestones {
		if achieved[name] {
			continue
		}
		ok, err := pred.Eval(state)
		if err != nil {
			return Verdict{}, fmt.Errorf("milestone %q: %w", name, err)
		}
		if ok {
			achieved[name] = true
			newly = append(newly, name)
		}
	}

	return Verdict{NewlyAchieved: newly, AllAchieved: len(achieved) == len(milestones)}, nil
}

// Scheduled is the evaluation state for a scheduled validation event
// (spec §4.2/§4.4): compiled milestones/minefields, which milestones
// have fired so far, and the tick budget remaining.
type Scheduled struct {
	Milestones        map[string]*Predicate
	Minefields        map[string]*Predicate
	Achieved          map[string]bool
	PollIntervalTicks int
	TimeoutTicks      int
}

// NewScheduled compiles a scheduled validator from source expressions.
func NewScheduled(milestoneSrc, minefieldSrc map[string]string, pollIntervalTicks, timeoutTicks int) (*Scheduled, error) {
	milestones, err := CompileSet(milestoneSrc)
	if err != nil {
		return nil, fmt.Errorf("milestones: %w", err)
	}
	minefields, err := CompileSet(minefieldSrc)
	if err != nil {
		return nil, fmt.Errorf("minefields: %w", err)
	}
	return &Scheduled{
		Milestones:        milestones,
		Minefields:        minefields,
		Achieved:          make(map[string]bool),
		PollIntervalTicks: pollIntervalTicks,
		TimeoutTicks:      timeoutTicks,
	}, nil
}

// Poll evaluates the validator once against state, consuming one tick of
// its timeout budget. It returns the Verdict and whether the timeout has
// now elapsed with unmet milestones (a fatal ValidationFailure per spec
// §4.4).
func (s *Scheduled) Poll(state map[string]any) (Verdict, bool, error) {
	v, err := Evaluate(state, s.Milestones, s.Minefields, s.Achieved)
	if err != nil {
		return Verdict{}, false, err
	}
	if v.MinefieldFired != "" || v.AllAchieved {
		return v, false, nil
	}
	s.TimeoutTicks--
	timedOut := s.TimeoutTicks <= 0
	return v, timedOut, nil
}

// OutstandingMilestones lists milestones not yet achieved, for final
// validation checks and FAILED-state diagnostics.
func (s *Scheduled) OutstandingMilestones() []string {
	var out []string
	for name := range s.Milestones {
		if !s.Achieved[name] {
			out = append(out, name)
		}
	}
	return out
}

// AgentAction is a validator consulted on every completed AGENT-typed
// event (spec §4.4's "pushed" validator). The engine (buildEventState in
// engine/tick.go) layers the event's fields (tool name, return value)
// over the ambient environment-state snapshot before calling OnAgentEvent, so
// predicates like `tool == "mail__send" && return_value.sent == true`
// can reference the triggering action directly.
type AgentAction struct {
	ID            string
	Milestones    map[string]*Predicate
	Minefields    map[string]*Predicate
	Achieved      map[string]bool
	DeadlineTicks int
	ticksElapsed  int
}

// NewAgentAction compiles an agent-action validator.
func NewAgentAction(id string, milestoneSrc, minefieldSrc map[string]string, deadlineTicks int) (*AgentAction, error) {
	milestones, err := CompileSet(milestoneSrc)
	if err != nil {
		return nil, fmt.Errorf("milestones: %w", err)
	}
	minefields, err := CompileSet(minefieldSrc)
	if err != nil {
		return nil, fmt.Errorf("minefields: %w", err)
	}
	return &AgentAction{
		ID:            id,
		Milestones:    milestones,
		Minefields:    minefields,
		Achieved:      make(map[string]bool),
		DeadlineTicks: deadlineTicks,
	}, nil
}

// OnAgentEvent evaluates the validator against state (built by the
// engine from the environment plus the triggering agent event's
// fields). Called once per completed AGENT-typed event.
func (a *AgentAction) OnAgentEvent(state map[string]any) (Verdict, error) {
	return Evaluate(state, a.Milestones, a.Minefields, a.Achieved)
}

// Tick advances this validator's own tick-count deadline monitor
// (spec §4.4: "a separate tick-count monitor runs each validator's
// deadline"). It returns true exactly once, the tick the deadline is
// crossed with unmet milestones still outstanding.
func (a *AgentAction) Tick() bool {
	if a.AllAchieved() {
		return false
	}
	a.ticksElapsed++
	if a.DeadlineTicks <= 0 {
		return false
	}
	return a.ticksElapsed == a.DeadlineTicks
}

// AllAchieved reports whether every milestone has fired.
func (a *AgentAction) AllAchieved() bool {
	return len(a.Achieved) == len(a.Milestones)
}

// OutstandingMilestones lists milestones not yet achieved.
func (a *AgentAction) OutstandingMilestones() []string {
	var out []string
	for name := range a.Milestones {
		if !a.Achieved[name] {
			out = append(out, name)
		}
	}
	return out
}
