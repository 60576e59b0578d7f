// Package engine implements the event loop, tick, successor scheduling,
// and lifecycle state machine described in spec §4.3, §5, and §6: the
// Environment ties TimeManager, EventQueue, EventLog, the application
// registry, the notification system, and the active validators together
// and runs the simulation.
package engine

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/clock"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/notify"
	"github.com/vedsirdeshmukh/are-sim/telemetry"
	"github.com/vedsirdeshmukh/are-sim/validate"
)

// Environment owns the queue, log, clock, registered apps, notification
// system, and active validators, and runs the event loop: spec §2.
type Environment struct {
	mu sync.Mutex

	cfg Config
	clk *clock.Manager

	queue    *event.Queue
	log      *event.Log
	registry *app.Registry
	notify   *notify.System

	tel     telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	runID string

	state      State
	stopReason StopReason
	tickCount  int

	agentValidators []*validate.AgentAction

	pauseCh  chan struct{} // closed while NOT paused; replaced on each Pause
	stopCh   chan struct{} // closed once Stop is requested
	stopOnce sync.Once

	doneCh chan struct{}
	runErr error
}

// Dependencies groups the constructed, shareable collaborators New needs.
// Apps are supplied separately via RegisterApps so a scenario can be
// (re)loaded onto a fresh Environment.
type Dependencies struct {
	FaultSource app.FailureSource
	Logger      telemetry.Logger
	Metrics     telemetry.Metrics
	Tracer      telemetry.Tracer
	Policy      notify.Policy
}

// New constructs an Environment in the SETUP state, anchored at
// cfg.StartTime.
func New(cfg Config, deps Dependencies) *Environment {
	if deps.Logger == nil {
		deps.Logger = telemetry.NewNoopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewNoopMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.NewNoopTracer()
	}
	if deps.Policy == nil {
		deps.Policy = notify.SilentPolicy{}
	}

	clk := clock.New(cfg.StartTime)
	log := event.NewLog()

	env := &Environment{
		cfg:     cfg,
		clk:     clk,
		queue:   event.NewQueue(cfg.StartTime),
		log:     log,
		notify:  notify.NewSystem(clk, deps.Policy, cfg.NotificationQueueCapacity, deps.Logger),
		tel:     deps.Logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		runID:   uuid.NewString(),
		state:   StateSetup,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	env.registry = app.NewRegistry(clk, log, deps.FaultSource, deps.Logger)
	pauseCh := make(chan struct{})
	close(pauseCh) // closed == not paused
	env.pauseCh = pauseCh
	return env
}

// RunID returns the unique identifier assigned to this run (spec §6:
// "generates run/session identifiers").
func (env *Environment) RunID() string { return env.runID }

// Clock exposes the shared TimeManager, for apps constructed outside
// RegisterApps that still need it before registration.
func (env *Environment) Clock() *clock.Manager { return env.clk }

// RegisterApps registers a scenario's apps and wires protocol discovery.
// Must be called before Start.
func (env *Environment) RegisterApps(apps []app.App) error {
	if err := env.registry.RegisterApps(apps); err != nil {
		return err
	}
	for _, a := range apps {
		if src, ok := a.(notify.ReminderSource); ok {
			env.notify.RegisterReminderSource(src)
		}
	}
	return nil
}

// Registry exposes the app registry for tool lookup / live dispatch
// (e.g. from a CLI or GUI host driving the agent).
func (env *Environment) Registry() *app.Registry { return env.registry }

// Log exposes the completed-event log for introspection (e.g. a host
// inspecting a specific completed event by ID after a run).
func (env *Environment) Log() *event.Log { return env.log }

// Queue exposes the future-event queue as a notify.QueuePeeker, for apps
// (like apps/system's wait_for_notification tool) that need to peek the
// next scheduled event time without engine importing them back.
func (env *Environment) Queue() *event.Queue { return env.queue }

// ProcessDueAt runs one tick at the given virtual time: it is the hook
// WaitForNotification calls after jumping the clock forward to a queued
// event's time, so that event actually gets processed before the wait
// loop re-evaluates what to do next.
func (env *Environment) ProcessDueAt(ctx context.Context, now time.Time) error {
	return env.tick(ctx, now)
}

// NotificationSystem exposes the notify.System so a host can poll the
// agent's message queue and drive wait_for_notification.
func (env *Environment) NotificationSystem() *notify.System { return env.notify }

// Schedule enqueues one or more future events. Safe to call before
// Start, or while Paused/Running (spec §5: "Schedule attempts while
// running are permitted and must be serialized against the loop").
func (env *Environment) Schedule(events ...*event.Event) error {
	return env.queue.PutMany(events, env.log.TimeOf)
}

// State returns the current lifecycle state.
func (env *Environment) State() State {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.state
}

// StopReason returns why the loop exited, or StopNone if it hasn't.
func (env *Environment) StopReason() StopReason {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.stopReason
}

func (env *Environment) setState(s State, reason StopReason) {
	env.mu.Lock()
	env.state = s
	env.stopReason = reason
	env.mu.Unlock()
}

// Pause freezes the clock and blocks the loop between ticks (spec §4.1,
// §5).
func (env *Environment) Pause() {
	env.clk.Pause()
	env.mu.Lock()
	if env.state == StateRunning {
		env.state = StatePaused
		env.pauseCh = make(chan struct{})
	}
	env.mu.Unlock()
}

// Resume unfreezes the clock, matching clock.Manager.Resume's
// no-op-if-not-paused semantics.
func (env *Environment) Resume() {
	env.clk.Resume()
	env.mu.Lock()
	if env.state == StatePaused {
		env.state = StateRunning
		close(env.pauseCh)
	}
	env.mu.Unlock()
}

// ResumeWithOffset resumes the clock and applies delta in a single
// atomic operation (spec §6, SPEC_FULL.md SUPPLEMENTED FEATURES).
func (env *Environment) ResumeWithOffset(delta time.Duration) bool {
	ok := env.clk.ResumeWithOffset(delta)
	if !ok {
		return false
	}
	env.mu.Lock()
	if env.state == StatePaused {
		env.state = StateRunning
		close(env.pauseCh)
	}
	env.mu.Unlock()
	return ok
}

// waitWhilePaused blocks the caller until Resume is called, or ctx is
// done.
func (env *Environment) waitWhilePaused(ctx context.Context) {
	for {
		env.mu.Lock()
		ch := env.pauseCh
		env.mu.Unlock()
		select {
		case <-ch:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop requests the loop terminate at the next tick boundary, setting
// the terminal state to finalState. Safe to call multiple times or
// concurrently with the loop.
func (env *Environment) Stop(finalState State) {
	env.stopOnce.Do(func() {
		close(env.stopCh)
	})
	if finalState == StateFailed {
		env.setState(StateFailed, StopRequested)
	}
}

func (env *Environment) stopRequested() bool {
	select {
	case <-env.stopCh:
		return true
	default:
		return false
	}
}

// Join blocks until the loop has exited, returning its terminal error
// (nil unless the run ended FAILED).
func (env *Environment) Join(ctx context.Context) error {
	select {
	case <-env.doneCh:
		return env.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tickDuration is the virtual-time span one tick-count unit represents,
// used to convert CheckIntervalTicks/PollIntervalTicks/DeadlineTicks
// into a concrete time.Duration offset.
func (env *Environment) tickDuration() time.Duration {
	return time.Duration(env.cfg.TimeIncrementInSeconds) * time.Second
}

// GetState returns the persistence-shaped snapshot of spec §6: engine
// metadata, the full event log and queue, and every app's own state.
func (env *Environment) GetState() map[string]any {
	apps := make([]map[string]any, 0, len(env.registry.Apps()))
	for _, a := range env.registry.Apps() {
		apps = append(apps, map[string]any{
			"app_name": a.Name(),
			"state":    a.GetState(),
		})
	}
	var duration any
	if env.cfg.Duration != nil {
		duration = env.cfg.Duration.Seconds()
	}
	return map[string]any{
		"run_id":                    env.runID,
		"start_time":                env.cfg.StartTime,
		"time_increment_in_seconds": env.cfg.TimeIncrementInSeconds,
		"duration":                  duration,
		"current_time":              env.clk.Time(),
		"state":                     env.State().String(),
		"event_log":                 completedSummaries(env.log.All()),
		"event_queue":               pendingSummaries(env.queue.All()),
		"apps":                      apps,
	}
}

// EventLogJSON renders the completed-event log as JSON.
func (env *Environment) EventLogJSON() (string, error) {
	data, err := json.Marshal(completedSummaries(env.log.All()))
	return string(data), err
}

// AppsStateJSON renders every app's get_state() as JSON.
func (env *Environment) AppsStateJSON() (string, error) {
	apps := make(map[string]any, len(env.registry.Apps()))
	for _, a := range env.registry.Apps() {
		apps[a.Name()] = a.GetState()
	}
	data, err := json.Marshal(apps)
	return string(data), err
}

// GetToolsByApp returns the agent-facing (RoleApp) tools grouped by app.
func (env *Environment) GetToolsByApp() map[string][]*app.ToolSpec {
	return env.registry.ToolsByApp(app.RoleApp)
}

// GetUserToolsByApp returns the scripted-user-facing (RoleUser) tools
// grouped by app.
func (env *Environment) GetUserToolsByApp() map[string][]*app.ToolSpec {
	return env.registry.ToolsByApp(app.RoleUser)
}

func completedSummaries(events []*event.Event) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		m := map[string]any{
			"id":        e.ID,
			"kind":      e.Kind.String(),
			"actor":     e.Actor.String(),
			"time":      e.Completed.ExecutedAt,
			"timed_out": e.Completed.TimedOut,
		}
		if e.Action != nil {
			m["app"] = e.Action.App
			m["tool"] = e.Action.Tool
			m["args"] = e.Action.ResolvedArgs
		}
		if e.Completed.Err != nil {
			m["error"] = e.Completed.Err.Error()
		} else {
			m["return_value"] = e.Completed.ReturnValue
		}
		out = append(out, m)
	}
	return out
}

// pendingSummaries serializes every still-queued event completely enough
// that LoadState can rebuild it: timing and graph fields always, plus the
// kind-specific payload (raw args for actions, expression sources for
// condition checks and validators — predicates persist as their source
// text and recompile on load).
func pendingSummaries(events []*event.Event) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		m := map[string]any{
			"id":    e.ID,
			"kind":  e.Kind.String(),
			"actor": e.Actor.String(),
		}
		if e.Time != nil {
			m["time"] = *e.Time
		}
		if e.RelativeTime != 0 {
			m["relative_time_seconds"] = e.RelativeTime.Seconds()
		}
		if len(e.Dependencies) > 0 {
			m["dependencies"] = append([]string(nil), e.Dependencies...)
		}
		if len(e.Successors) > 0 {
			m["successors"] = append([]string(nil), e.Successors...)
		}
		if e.Action != nil {
			m["app"] = e.Action.App
			m["tool"] = e.Action.Tool
			m["args"] = e.Action.RawArgs
		}
		if cc := e.ConditionCheck; cc != nil {
			m["predicate"] = cc.Predicate.Source
			m["check_interval_ticks"] = cc.CheckIntervalTicks
			m["timeout_ticks"] = cc.TimeoutTicks
		}
		if v := e.Validation; v != nil {
			m["validator_id"] = v.ValidatorID
			m["milestones"] = predicateSources(v.Validator.Milestones)
			m["minefields"] = predicateSources(v.Validator.Minefields)
			m["achieved"] = achievedNames(v.Validator.Achieved)
			m["poll_interval_ticks"] = v.Validator.PollIntervalTicks
			m["timeout_ticks"] = v.Validator.TimeoutTicks
		}
		if av := e.AgentValidation; av != nil {
			m["validator_id"] = av.Validator.ID
			m["milestones"] = predicateSources(av.Validator.Milestones)
			m["minefields"] = predicateSources(av.Validator.Minefields)
			m["deadline_ticks"] = av.Validator.DeadlineTicks
		}
		out = append(out, m)
	}
	return out
}

func predicateSources(preds map[string]*validate.Predicate) map[string]string {
	out := make(map[string]string, len(preds))
	for name, p := range preds {
		out[name] = p.Source
	}
	return out
}

func achievedNames(achieved map[string]bool) []string {
	var out []string
	for name, ok := range achieved {
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (env *Environment) fail(ctx context.Context, err error) error {
	env.tel.Error(ctx, "environment failed", "error", err, "run_id", env.runID)
	env.metrics.IncCounter("sim_run_failures_total", 1)
	env.setState(StateFailed, StopFailed)
	env.notify.Stop(ctx, err.Error())
	return err
}
