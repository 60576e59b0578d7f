package engine

import (
	"context"
	"time"

	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/simerrors"
)

// buildState assembles the environment-state snapshot condition checks
// and scheduled validators evaluate their predicates against (spec §4.4:
// "a dict of apps' states, keyed by app name, plus an elapsed_ticks
// counter").
func (env *Environment) buildState() map[string]any {
	apps := make(map[string]any, len(env.registry.Apps()))
	for _, a := range env.registry.Apps() {
		apps[a.Name()] = a.GetState()
	}
	return map[string]any{
		"apps":          apps,
		"current_time":  env.clk.Time(),
		"elapsed_ticks": env.tickCount,
	}
}

// buildEventState layers the triggering agent action's tool name and
// return value over buildState, so an agent-action validator's predicate
// can reference `tool`, `app`, and `return_value` directly (spec §4.4).
func (env *Environment) buildEventState(e *event.Event) map[string]any {
	state := env.buildState()
	if e.Action != nil {
		state["app"] = e.Action.App
		state["tool"] = e.Action.Tool
		state["args"] = e.Action.ResolvedArgs
	}
	if e.Completed != nil {
		state["return_value"] = e.Completed.ReturnValue
		if e.Completed.Err != nil {
			state["error"] = e.Completed.Err.Error()
		}
	}
	return state
}

// tick advances the loop by one step: it scans reminders, runs the
// deadline monitor on every installed agent-action validator, and then
// pops and processes every event whose Time has arrived. now is the
// virtual time this tick runs at.
func (env *Environment) tick(ctx context.Context, now time.Time) error {
	ctx, span := env.tracer.Start(ctx, "engine.tick")
	defer span.End()

	env.tickCount++
	env.metrics.IncCounter("sim_ticks_total", 1)
	env.notify.ScanReminders(now)

	if err := env.tickAgentValidatorDeadlines(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	for {
		due := env.queue.PopEventsToProcess(now)
		if len(due) == 0 {
			env.metrics.RecordGauge("sim_notification_queue_depth", float64(env.notify.Queue().Len()))
			return nil
		}
		env.metrics.IncCounter("sim_events_processed_total", float64(len(due)))
		for _, e := range due {
			if err := env.processEvent(ctx, e); err != nil {
				span.RecordError(err)
				return err
			}
		}
	}
}

// tickAgentValidatorDeadlines advances the tick-count deadline monitor
// on every installed AgentAction validator (spec §4.4: "a separate
// tick-count monitor runs each validator's deadline, independent of the
// AGENT events that feed it").
func (env *Environment) tickAgentValidatorDeadlines(ctx context.Context) error {
	for _, v := range env.agentValidators {
		if v.Tick() {
			return env.fail(ctx, simerrors.New(simerrors.ValidationFailure,
				"agent validator %q missed its deadline with outstanding milestones %v",
				v.ID, v.OutstandingMilestones()))
		}
	}
	return nil
}

// processEvent dispatches a single due event by Kind.
func (env *Environment) processEvent(ctx context.Context, e *event.Event) error {
	switch e.Kind {
	case event.KindAction:
		return env.processAction(ctx, e)
	case event.KindOracle:
		if !env.cfg.OracleMode {
			env.tel.Warn(ctx, "dropping oracle event outside oracle mode", "event_id", e.ID)
			return nil
		}
		// Honored oracle events become AGENT-typed action events before
		// processing, so agent-action validators and the log see them
		// exactly as they would a live agent's call.
		e.Kind = event.KindAction
		e.Actor = event.ActorAgent
		return env.processAction(ctx, e)
	case event.KindConditionCheck:
		return env.processConditionCheck(ctx, e)
	case event.KindValidation:
		return env.processValidation(ctx, e)
	case event.KindAgentValidation:
		return env.processAgentValidationInstall(ctx, e)
	case event.KindStop:
		env.Stop(StateStopped)
		return nil
	default:
		return env.fail(ctx, simerrors.New(simerrors.Internal, "unknown event kind %v", e.Kind))
	}
}

// processAction dispatches the event's tool call through the registry,
// propagates its completion to dependent successors, and — for
// AGENT-actor events — consults every installed agent-action validator.
func (env *Environment) processAction(ctx context.Context, e *event.Event) error {
	_, _ = env.registry.Dispatch(ctx, e)
	env.notify.OnCompleted(ctx, e)
	env.propagateSuccessor(e)

	if e.Actor != event.ActorAgent {
		return nil
	}
	return env.checkAgentValidators(ctx, e)
}

// checkAgentValidators evaluates every installed AgentAction validator
// against the just-completed agent event, failing the run on a fired
// minefield (spec §4.4).
func (env *Environment) checkAgentValidators(ctx context.Context, e *event.Event) error {
	state := env.buildEventState(e)
	for _, v := range env.agentValidators {
		verdict, err := v.OnAgentEvent(state)
		if err != nil {
			return env.fail(ctx, simerrors.Wrap(simerrors.Internal, err, "agent validator %q", v.ID))
		}
		if verdict.MinefieldFired != "" {
			return env.fail(ctx, simerrors.New(simerrors.ValidationFailure,
				"agent validator %q tripped minefield %q", v.ID, verdict.MinefieldFired))
		}
	}
	return nil
}

// processConditionCheck evaluates the predicate; if still false and the
// timeout budget remains, it reschedules the SAME Event (same ID) for
// CheckIntervalTicks later rather than minting a fresh one, so any
// successor depending on this event's ID still resolves correctly once
// it eventually completes or times out.
func (env *Environment) processConditionCheck(ctx context.Context, e *event.Event) error {
	cc := e.ConditionCheck
	ok, err := cc.Predicate.Eval(env.buildState())
	if err != nil {
		return env.fail(ctx, simerrors.Wrap(simerrors.Internal, err, "condition check %q", e.ID))
	}
	now := env.clk.Time()
	if ok {
		e.Complete(true, nil, now)
		env.log.Append(e)
		env.propagateSuccessor(e)
		return nil
	}

	cc.TimeoutTicks--
	if cc.TimeoutTicks <= 0 {
		// A timed-out check completes with timeout status but never
		// releases its successors: the gate stayed shut.
		e.CompleteTimeout(now)
		env.log.Append(e)
		return nil
	}

	next := now.Add(time.Duration(cc.CheckIntervalTicks) * env.tickDuration())
	e.Time = &next
	return env.queue.Put(e, env.log.TimeOf)
}

// processValidation polls a scheduled validator. A fired minefield or an
// elapsed timeout with unmet milestones fails the run (spec §4.4); full
// achievement completes the event; otherwise the event reschedules
// itself (same ID) PollIntervalTicks later.
func (env *Environment) processValidation(ctx context.Context, e *event.Event) error {
	v := e.Validation.Validator
	verdict, timedOut, err := v.Poll(env.buildState())
	if err != nil {
		return env.fail(ctx, simerrors.Wrap(simerrors.Internal, err, "validation %q", e.Validation.ValidatorID))
	}
	now := env.clk.Time()

	if verdict.MinefieldFired != "" {
		return env.fail(ctx, simerrors.New(simerrors.ValidationFailure,
			"validator %q tripped minefield %q", e.Validation.ValidatorID, verdict.MinefieldFired))
	}
	if verdict.AllAchieved {
		e.Complete(verdict, nil, now)
		env.log.Append(e)
		env.propagateSuccessor(e)
		return nil
	}
	if timedOut {
		return env.fail(ctx, simerrors.New(simerrors.ValidationFailure,
			"validator %q timed out with outstanding milestones %v",
			e.Validation.ValidatorID, v.OutstandingMilestones()))
	}

	next := now.Add(time.Duration(v.PollIntervalTicks) * env.tickDuration())
	e.Time = &next
	return env.queue.Put(e, env.log.TimeOf)
}

// processAgentValidationInstall installs a KindAgentValidation event's
// validator into the environment's active list, then completes the
// event and propagates its successors.
func (env *Environment) processAgentValidationInstall(ctx context.Context, e *event.Event) error {
	env.mu.Lock()
	env.agentValidators = append(env.agentValidators, e.AgentValidation.Validator)
	env.mu.Unlock()

	now := env.clk.Time()
	e.Complete(nil, nil, now)
	env.log.Append(e)
	env.propagateSuccessor(e)
	return nil
}

func (env *Environment) propagateSuccessor(e *event.Event) {
	executedAt := env.clk.Time()
	if e.Time != nil {
		executedAt = *e.Time
	}
	env.queue.NotifyDependencyCompleted(e.ID, executedAt)
}
