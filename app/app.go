package app

import (
	"context"
	"sort"
	"time"

	"github.com/vedsirdeshmukh/are-sim/clock"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/simerrors"
	"github.com/vedsirdeshmukh/are-sim/telemetry"
)

// App is the base contract every simulated application implements: spec
// §4.6. Concrete apps (mail, calendar, filesystem, ...) embed Base and
// declare their tools at construction time rather than via reflection —
// the Go-native substitute for the source language's tool decorator (see
// spec §9's re-architecture note).
type App interface {
	Name() string
	Tools() []*ToolSpec
	GetState() map[string]any
	LoadState(state map[string]any) error
	Reset()
	DeleteFutureData(cutoff time.Time)
}

// ProtocolProvider is implemented by apps that expose a named protocol
// for discovery by other apps (e.g. a filesystem app implementing
// "file_system"). See spec §4.6.
type ProtocolProvider interface {
	Protocols() []string
}

// ProtocolConsumer is implemented by apps that need to discover other
// apps by protocol name (e.g. a mail client locating a filesystem for
// attachments) rather than hard-coding a concrete type.
type ProtocolConsumer interface {
	WireProtocols(byProtocol map[string]App)
}

// Base provides the scaffolding every concrete App embeds: its name and
// a handle to the shared clock (spec §9's "explicit references instead
// of singletons" note). Each app's constructor sets both; registration
// does not set the clock.
type Base struct {
	AppName string
	Clock   *clock.Manager
}

func (b *Base) Name() string                     { return b.AppName }
func (b *Base) DeleteFutureData(time.Time)        {}

// InvokeContext is passed to every ToolSpec.Handler. It carries the
// caller's context.Context, the resolved arguments' actor, and Now, the
// virtual time of the call, so handlers never reach for a global "now".
type InvokeContext struct {
	context.Context
	Actor event.ActorType
	Now   time.Time
}

type suppressKey struct{}

// WithSuppressedLogging returns a context under which Dispatch will still
// run the tool but will not append a completed event to the log. This is
// the scope guard named in spec §4.6, used by composite operations (e.g.
// reply-to-email calling add-email internally) that must not produce a
// second log entry for their inner call.
func WithSuppressedLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

func isSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressKey{}).(bool)
	return v
}

// Registry owns every app registered with one Environment, the
// protocol-discovery map, and the live-dispatch path (the "thin
// dispatcher" of spec §9 that wraps a tool call into an Action, executes
// it, and writes it to the log).
type Registry struct {
	clk   *clock.Manager
	log   *event.Log
	tel   telemetry.Logger
	fault FailureSource

	apps      map[string]App
	toolsByID map[string]*ToolSpec // "<App>__<method>" -> spec
}

// FailureSource decides whether a fault-injected tool trips its failure
// path this invocation. Exists as an interface so tests can supply a
// deterministic source instead of math/rand.
type FailureSource interface {
	Trip(probability float64) bool
}

// NewRegistry constructs an empty Registry. tel may be nil (defaults to
// a no-op logger).
func NewRegistry(clk *clock.Manager, log *event.Log, fault FailureSource, tel telemetry.Logger) *Registry {
	if tel == nil {
		tel = telemetry.NewNoopLogger()
	}
	return &Registry{
		clk:       clk,
		log:       log,
		tel:       tel,
		fault:     fault,
		apps:      make(map[string]App),
		toolsByID: make(map[string]*ToolSpec),
	}
}

// RegisterApps registers every app, then wires protocol discovery across
// all of them: each ProtocolConsumer is handed the full protocol ->
// implementing-App map once every app is registered, per spec §4.6.
func (r *Registry) RegisterApps(apps []App) error {
	for _, a := range apps {
		if err := r.register(a); err != nil {
			return err
		}
	}
	byProtocol := make(map[string]App)
	for _, a := range apps {
		if pp, ok := a.(ProtocolProvider); ok {
			for _, p := range pp.Protocols() {
				byProtocol[p] = a
			}
		}
	}
	for _, a := range apps {
		if pc, ok := a.(ProtocolConsumer); ok {
			pc.WireProtocols(byProtocol)
		}
	}
	return nil
}

func (r *Registry) register(a App) error {
	if _, dup := r.apps[a.Name()]; dup {
		return simerrors.New(simerrors.InvalidArgument, "app %q already registered", a.Name())
	}
	r.apps[a.Name()] = a
	for _, t := range a.Tools() {
		if t.PrivateName == "" {
			t.PrivateName = a.Name() + "__" + t.PublicName
		}
		r.toolsByID[t.PrivateName] = t
	}
	return nil
}

// App returns a registered app by name.
func (r *Registry) App(name string) (App, bool) {
	a, ok := r.apps[name]
	return a, ok
}

// Apps returns every registered app, ordered by name so state snapshots
// are deterministic.
func (r *Registry) Apps() []App {
	out := make([]App, 0, len(r.apps))
	for _, a := range r.apps {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ToolSpec looks up a tool by app name and public name.
func (r *Registry) ToolSpec(appName, toolName string) (*ToolSpec, bool) {
	a, ok := r.apps[appName]
	if !ok {
		return nil, false
	}
	for _, t := range a.Tools() {
		if t.PublicName == toolName {
			return t, true
		}
	}
	return nil, false
}

// ToolsByApp groups every registered tool visible to role by app name,
// restoring the original's get_tools_by_app/get_user_tools_by_app
// convenience accessors (spec §6): pass RoleApp for the agent-facing
// list, RoleUser for the scripted-user-facing list.
func (r *Registry) ToolsByApp(role Role) map[string][]*ToolSpec {
	out := make(map[string][]*ToolSpec)
	for name, a := range r.apps {
		for _, t := range a.Tools() {
			if t.Role == role {
				out[name] = append(out[name], t)
			}
		}
	}
	return out
}

// roleAllows reports whether a call made by actor may invoke a tool
// tagged with role.
func roleAllows(role Role, actor event.ActorType) bool {
	switch actor {
	case event.ActorAgent:
		return role == RoleApp
	case event.ActorEnv:
		return role == RoleEnv || role == RoleData || role == RoleApp
	case event.ActorUser:
		return role == RoleUser
	default:
		return true
	}
}

// Dispatch is the event-registration decorator contract of spec §4.6: it
// resolves e's placeholders, enforces the tool's role, runs
// fault-injection, invokes the Handler, records the result onto e, and
// (unless ctx carries the suppress-logging scope guard) appends the
// completed event to the log. e.Action.App/Tool/RawArgs must already be
// set; e.ID/Kind/Actor must already be set by the caller (the engine for
// scheduled events, or a live tool-call wrapper for agent-originated
// ones).
func (r *Registry) Dispatch(ctx context.Context, e *event.Event) (any, error) {
	if e.Action == nil {
		return nil, simerrors.New(simerrors.Internal, "dispatch called on event %q with no Action", e.ID)
	}
	privateName := e.Action.App + "__" + e.Action.Tool
	spec, ok := r.toolsByID[privateName]
	if !ok {
		err := simerrors.New(simerrors.NotFound, "tool %s.%s not found", e.Action.App, e.Action.Tool)
		now := r.clk.Time()
		e.Complete(nil, err, now)
		if !isSuppressed(ctx) {
			r.log.Append(e)
		}
		return nil, err
	}
	if !roleAllows(spec.Role, e.Actor) {
		err := simerrors.New(simerrors.PermissionDenied, "actor %s may not invoke %s.%s (role %s)", e.Actor, e.Action.App, e.Action.Tool, spec.Role)
		now := r.clk.Time()
		e.Complete(nil, err, now)
		if !isSuppressed(ctx) {
			r.log.Append(e)
		}
		return nil, err
	}

	resolved, unresolvedKeys := event.ResolveArgs(e.Action.RawArgs, r.log)
	for _, k := range unresolvedKeys {
		r.tel.Warn(ctx, "unresolved placeholder", "event_id", e.ID, "key", k)
	}
	e.Action.ResolvedArgs = resolved
	e.Action.ToolMetadata = spec.Schema()

	if err := spec.validateArgs(resolved); err != nil {
		wrapped := simerrors.Wrap(simerrors.InvalidArgument, err, "invalid arguments for %s.%s", e.Action.App, e.Action.Tool)
		now := r.clk.Time()
		e.Complete(nil, wrapped, now)
		if !isSuppressed(ctx) {
			r.log.Append(e)
		}
		return nil, wrapped
	}

	now := r.clk.Time()

	if spec.FailureProbability > 0 && r.fault != nil && r.fault.Trip(spec.FailureProbability) {
		msg := spec.FailureMessage
		if msg == "" {
			msg = "injected failure"
		}
		err := simerrors.New(simerrors.ToolFailureInjection, "%s", msg)
		e.Complete(nil, err, now)
		if !isSuppressed(ctx) {
			r.log.Append(e)
		}
		return nil, err
	}

	ictx := &InvokeContext{Context: ctx, Actor: e.Actor, Now: now}
	result, err := spec.Handler(ictx, resolved)
	e.Complete(result, err, now)
	if !isSuppressed(ctx) {
		r.log.Append(e)
	}
	return result, err
}

// NewLiveAction builds a fresh, unscheduled KindAction event for an
// agent- or user-originated tool call that did not come from the future
// queue (the common case: the agent calls a tool directly through the
// registered-tool interface). Dispatch still performs the same role
// checks, placeholder resolution, and logging.
func NewLiveAction(appName, toolName string, rawArgs map[string]any, actor event.ActorType) *event.Event {
	e := event.New("", event.KindAction, actor)
	e.Action = &event.Action{App: appName, Tool: toolName, RawArgs: rawArgs}
	return e
}
