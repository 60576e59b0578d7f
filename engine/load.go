package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/simerrors"
	"github.com/vedsirdeshmukh/are-sim/validate"
)

// LoadState restores a snapshot produced by GetState onto this
// Environment: engine timing config, the virtual clock, the lifecycle
// state, the completed-event log, the future queue, and each registered
// app's own state. Apps named in the snapshot must already be registered
// so their LoadState can be delegated to; unknown app entries are an
// error rather than silently dropped.
//
// Completed events rebuild with their IDs, execution times, and return
// values intact, so placeholder references and dependency times computed
// against the restored log match the original run. Queued events rebuild
// their full payload: condition-check and validator predicates recompile
// from persisted source text, and action handlers re-bind through the
// registry at dispatch time, so nothing callable ever persists.
//
// Only valid before Start. The snapshot may come straight from GetState
// (native Go values) or from a JSON round-trip (strings and float64s);
// both shapes load identically.
func (env *Environment) LoadState(state map[string]any) error {
	if env.State() != StateSetup {
		return simerrors.New(simerrors.InvalidArgument, "LoadState called in state %s, want SETUP", env.State())
	}

	if v, ok := state["run_id"].(string); ok && v != "" {
		env.runID = v
	}

	startTime, err := coerceTime(state["start_time"])
	if err != nil {
		return simerrors.Wrap(simerrors.InvalidArgument, err, "start_time")
	}
	env.cfg.StartTime = startTime

	if n, ok := coerceInt(state["time_increment_in_seconds"]); ok {
		env.cfg.TimeIncrementInSeconds = n
	}
	if secs, ok := coerceFloat(state["duration"]); ok {
		d := time.Duration(secs * float64(time.Second))
		env.cfg.Duration = &d
	} else {
		env.cfg.Duration = nil
	}

	current, err := coerceTime(state["current_time"])
	if err != nil {
		return simerrors.Wrap(simerrors.InvalidArgument, err, "current_time")
	}
	env.clk.Reset(startTime)
	env.clk.AddOffset(current.Sub(startTime))

	for _, m := range asMapSlice(state["event_log"]) {
		e, err := rebuildCompleted(m)
		if err != nil {
			return simerrors.Wrap(simerrors.InvalidArgument, err, "event_log entry %v", m["id"])
		}
		env.log.Append(e)
	}

	for _, m := range asMapSlice(state["event_queue"]) {
		e, err := rebuildPending(m)
		if err != nil {
			return simerrors.Wrap(simerrors.InvalidArgument, err, "event_queue entry %v", m["id"])
		}
		if err := env.Schedule(e); err != nil {
			return err
		}
	}

	for _, entry := range asMapSlice(state["apps"]) {
		name, _ := entry["app_name"].(string)
		a, ok := env.registry.App(name)
		if !ok {
			return simerrors.New(simerrors.NotFound, "snapshot names app %q, which is not registered", name)
		}
		if err := a.LoadState(asMap(entry["state"])); err != nil {
			return simerrors.Wrap(simerrors.InvalidArgument, err, "loading app %q", name)
		}
	}

	if s, ok := state["state"].(string); ok {
		parsed, err := ParseState(s)
		if err != nil {
			return simerrors.Wrap(simerrors.InvalidArgument, err, "state")
		}
		env.mu.Lock()
		env.state = parsed
		env.mu.Unlock()
	}
	return nil
}

func rebuildCompleted(m map[string]any) (*event.Event, error) {
	kind, err := event.ParseKind(stringOf(m["kind"]))
	if err != nil {
		return nil, err
	}
	actor, err := event.ParseActor(stringOf(m["actor"]))
	if err != nil {
		return nil, err
	}
	e := event.New(stringOf(m["id"]), kind, actor)

	if appName, ok := m["app"].(string); ok {
		args := asMap(m["args"])
		e.Action = &event.Action{App: appName, Tool: stringOf(m["tool"]), RawArgs: args, ResolvedArgs: args}
	}

	executedAt, err := coerceTime(m["time"])
	if err != nil {
		return nil, fmt.Errorf("time: %w", err)
	}
	if m["timed_out"] == true {
		e.CompleteTimeout(executedAt)
		return e, nil
	}
	if errStr, ok := m["error"].(string); ok {
		e.Complete(nil, errors.New(errStr), executedAt)
		return e, nil
	}
	e.Complete(m["return_value"], nil, executedAt)
	return e, nil
}

func rebuildPending(m map[string]any) (*event.Event, error) {
	kind, err := event.ParseKind(stringOf(m["kind"]))
	if err != nil {
		return nil, err
	}
	actor, err := event.ParseActor(stringOf(m["actor"]))
	if err != nil {
		return nil, err
	}
	e := event.New(stringOf(m["id"]), kind, actor)

	if raw, ok := m["time"]; ok {
		t, err := coerceTime(raw)
		if err != nil {
			return nil, fmt.Errorf("time: %w", err)
		}
		e.Time = &t
	}
	if secs, ok := coerceFloat(m["relative_time_seconds"]); ok {
		e.RelativeTime = time.Duration(secs * float64(time.Second))
	}
	e.Dependencies = asStringSlice(m["dependencies"])
	e.Successors = asStringSlice(m["successors"])

	switch kind {
	case event.KindAction, event.KindOracle:
		e.Action = &event.Action{App: stringOf(m["app"]), Tool: stringOf(m["tool"]), RawArgs: asMap(m["args"])}

	case event.KindConditionCheck:
		pred, err := validate.Compile(stringOf(m["predicate"]))
		if err != nil {
			return nil, err
		}
		interval, _ := coerceInt(m["check_interval_ticks"])
		timeout, _ := coerceInt(m["timeout_ticks"])
		e.ConditionCheck = &event.ConditionCheck{Predicate: pred, CheckIntervalTicks: interval, TimeoutTicks: timeout}

	case event.KindValidation:
		poll, _ := coerceInt(m["poll_interval_ticks"])
		timeout, _ := coerceInt(m["timeout_ticks"])
		v, err := validate.NewScheduled(asStringMap(m["milestones"]), asStringMap(m["minefields"]), poll, timeout)
		if err != nil {
			return nil, err
		}
		for _, name := range asStringSlice(m["achieved"]) {
			v.Achieved[name] = true
		}
		e.Validation = &event.Validation{ValidatorID: stringOf(m["validator_id"]), Validator: v}

	case event.KindAgentValidation:
		deadline, _ := coerceInt(m["deadline_ticks"])
		v, err := validate.NewAgentAction(stringOf(m["validator_id"]), asStringMap(m["milestones"]), asStringMap(m["minefields"]), deadline)
		if err != nil {
			return nil, err
		}
		e.AgentValidation = &event.AgentValidation{Validator: v}
	}
	return e, nil
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func coerceTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	default:
		return time.Time{}, fmt.Errorf("not a timestamp: %T", v)
	}
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asMapSlice(v any) []map[string]any {
	switch s := v.(type) {
	case []map[string]any:
		return s
	case []any:
		out := make([]map[string]any, 0, len(s))
		for _, item := range s {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func asStringMap(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
