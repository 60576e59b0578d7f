// Package system is the demonstration app surfacing the engine's
// wait-for-notification primitive as an agent tool, grounded on
// original_source/are/simulation/apps/system.py's SystemApp.
package system

import (
	"context"
	"fmt"
	"time"

	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/clock"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/notify"
)

// Waiter is the narrow slice of engine.Environment this app needs: the
// notify.System to wait on, a peek at the next queued event's time, and
// a hook to process events once the clock has jumped forward to them.
// Defined here (not imported from engine) so this package never depends
// on engine, matching spec §9's "explicit references instead of
// singletons" note — the wiring code that constructs both an
// Environment and this app passes the Environment itself, which already
// satisfies this interface.
type Waiter interface {
	NotificationSystem() *notify.System
	Queue() *event.Queue
	ProcessDueAt(ctx context.Context, now time.Time) error
}

// App exposes get_current_time and wait_for_notification to the agent.
// wait, named in the original as an internal-only helper not decorated
// with @app_tool(), is exposed here as a plain method rather than a
// ToolSpec, preserving that it is not agent-callable.
type App struct {
	app.Base
	env Waiter
}

// New constructs a system App. env is supplied after the Environment
// itself exists (see engine.Environment, which satisfies Waiter).
func New(name string, clk *clock.Manager, env Waiter) *App {
	a := &App{env: env}
	a.AppName = name
	a.Clock = clk
	return a
}

// Wait advances the clock by the given non-negative duration directly,
// matching the original's internal-only SystemApp.wait: it is not
// exposed as a ToolSpec.
func (a *App) Wait(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("system: wait duration must be non-negative")
	}
	a.Clock.AddOffset(d)
	return nil
}

// Tools implements app.App.
func (a *App) Tools() []*app.ToolSpec {
	return []*app.ToolSpec{
		{
			PublicName:  "get_current_time",
			Description: "Get the current time, date, and weekday.",
			ReturnType:  "object",
			Op:          app.OpRead,
			Role:        app.RoleApp,
			Handler:     a.getCurrentTime,
		},
		{
			PublicName:  "wait_for_notification",
			Description: "Wait for a notification or the given timeout, whichever comes first. Use only when there is nothing else to do.",
			Params: []app.ParamSpec{
				{Name: "timeout", Type: "int", Required: false, Default: 0, Description: "Maximum seconds to wait."},
			},
			ReturnType: "object",
			Op:         app.OpRead,
			Role:       app.RoleApp,
			Handler:    a.waitForNotification,
		},
	}
}

func (a *App) getCurrentTime(ctx *app.InvokeContext, args map[string]any) (any, error) {
	now := ctx.Now
	return map[string]any{
		"current_timestamp": now,
		"current_datetime":  now.UTC().Format("2006-01-02 15:04:05"),
		"current_weekday":   now.UTC().Weekday().String(),
	}, nil
}

func (a *App) waitForNotification(ctx *app.InvokeContext, args map[string]any) (any, error) {
	timeout, err := toSeconds(args["timeout"])
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, fmt.Errorf("system: wait_for_notification timeout must be non-negative")
	}

	n, err := a.env.NotificationSystem().WaitForNotification(
		ctx.Context,
		a.env.Queue(),
		time.Duration(timeout)*time.Second,
		func(now time.Time) error {
			return a.env.ProcessDueAt(ctx.Context, now)
		},
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"kind":      n.Kind.String(),
		"message":   n.Message,
		"timestamp": n.Timestamp,
	}, nil
}

func toSeconds(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("system: timeout must be a number")
	}
}

// GetState implements app.App. The system app carries no persisted
// state of its own: wait_for_notification's timeout bookkeeping lives on
// notify.System, which the Environment snapshots separately.
func (a *App) GetState() map[string]any { return map[string]any{} }

// LoadState implements app.App.
func (a *App) LoadState(map[string]any) error { return nil }

// Reset implements app.App.
func (a *App) Reset() {}
