package engine

import (
	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/event"
)

// ScenarioSource is the slice of scenario.Scenario the engine needs to
// run it (spec §4.7), kept as a narrow interface here so the engine
// package never imports scenario (which itself imports engine to expose
// scenario.Run).
type ScenarioSource interface {
	Apps() []app.App
	Events() []*event.Event
	// CheckResult returns nil when the scenario's post-run validate
	// predicate passes, or an error describing why it failed.
	CheckResult(env *Environment) error
}
