// Package scenario packages a set of apps and a dependency graph of
// future events for the engine to run, plus a post-run validation
// predicate: spec §4.7.
package scenario

import (
	"context"
	"time"

	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/engine"
	"github.com/vedsirdeshmukh/are-sim/event"
)

// Scenario implements engine.ScenarioSource: a named bundle of apps,
// future events, and a post-run check, grounded on
// original_source/are/simulation/environment.py's Scenario class.
type Scenario struct {
	Name                   string
	StartTime              time.Time
	Duration               *time.Duration
	TimeIncrementInSeconds int

	apps   []app.App
	events []*event.Event

	// CheckFn is the post-run validate(env) predicate (spec §4.7). Nil
	// means the scenario has no additional pass/fail condition beyond the
	// engine's own terminal state.
	CheckFn func(env *engine.Environment) error
}

// New constructs an empty Scenario anchored at startTime.
func New(name string, startTime time.Time) *Scenario {
	return &Scenario{Name: name, StartTime: startTime, TimeIncrementInSeconds: 1}
}

// WithApps appends apps to the scenario's registration list.
func (s *Scenario) WithApps(apps ...app.App) *Scenario {
	s.apps = append(s.apps, apps...)
	return s
}

// WithEvents appends future events to the scenario's dependency graph.
func (s *Scenario) WithEvents(events ...*event.Event) *Scenario {
	s.events = append(s.events, events...)
	return s
}

// WithDuration bounds the scenario to d virtual seconds from StartTime.
func (s *Scenario) WithDuration(d time.Duration) *Scenario {
	s.Duration = &d
	return s
}

// Apps satisfies engine.ScenarioSource.
func (s *Scenario) Apps() []app.App { return s.apps }

// Events satisfies engine.ScenarioSource.
func (s *Scenario) Events() []*event.Event { return s.events }

// CheckResult satisfies engine.ScenarioSource: it runs CheckFn if set,
// otherwise returns nil without inspecting env. A FAILED run is reported
// by env.Join (engine.finalChecks), not here.
func (s *Scenario) CheckResult(env *engine.Environment) error {
	if s.CheckFn == nil {
		return nil
	}
	return s.CheckFn(env)
}

// EngineConfig builds an engine.Config from the scenario's own timing
// fields plus any additional options, so callers don't have to restate
// StartTime/Duration/TimeIncrementInSeconds twice.
func (s *Scenario) EngineConfig(opts ...engine.Option) engine.Config {
	base := []engine.Option{engine.WithTimeIncrement(s.TimeIncrementInSeconds)}
	if s.Duration != nil {
		base = append(base, engine.WithDuration(*s.Duration))
	}
	base = append(base, opts...)
	return engine.NewConfig(s.StartTime, base...)
}

// Run executes the environment's run(scenario) sequence of spec §4.7:
// reset the clock to the scenario's start time, register its apps,
// schedule its events (unless scheduleEvents is false — the "replay"
// case, where the caller has already populated the log and queue from a
// prior run), and start the loop. If waitForEnd is true, Run blocks
// until the loop exits and then evaluates the scenario's CheckResult.
func Run(ctx context.Context, env *engine.Environment, s *Scenario, waitForEnd, scheduleEvents bool) error {
	env.Clock().Reset(s.StartTime)
	if err := env.RegisterApps(s.Apps()); err != nil {
		return err
	}

	var toSchedule []*event.Event
	if scheduleEvents {
		toSchedule = s.Events()
	}
	if err := env.Start(ctx, toSchedule); err != nil {
		return err
	}

	if !waitForEnd {
		return nil
	}
	if err := env.Join(ctx); err != nil {
		return err
	}
	return s.CheckResult(env)
}
