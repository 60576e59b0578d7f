package scenario_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/are-sim/apps/mail"
	"github.com/vedsirdeshmukh/are-sim/clock"
	"github.com/vedsirdeshmukh/are-sim/engine"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/scenario"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func addEmailEvent(id string, offset time.Duration) *event.Event {
	e := event.New(id, event.KindAction, event.ActorEnv)
	e.RelativeTime = offset
	e.Action = &event.Action{App: "mail", Tool: "add_email", RawArgs: map[string]any{"subject": "s", "body": "b"}}
	return e
}

func TestEngineConfigAppliesScenarioTiming(t *testing.T) {
	s := scenario.New("demo", start).WithDuration(10 * time.Second)
	s.TimeIncrementInSeconds = 2

	cfg := s.EngineConfig()
	assert.Equal(t, start, cfg.StartTime)
	assert.Equal(t, 2, cfg.TimeIncrementInSeconds)
	require.NotNil(t, cfg.Duration)
	assert.Equal(t, 10*time.Second, *cfg.Duration)
}

func TestRunSchedulesEventsAndInvokesCheckFn(t *testing.T) {
	mailApp := mail.New("mail", clock.New(start))

	checked := false
	s := scenario.New("demo", start).
		WithApps(mailApp).
		WithEvents(addEmailEvent("a", 2*time.Second)).
		WithDuration(5 * time.Second)
	s.CheckFn = func(env *engine.Environment) error {
		checked = true
		assert.Len(t, env.Log().All(), 1)
		return nil
	}

	env := engine.New(s.EngineConfig(engine.WithExitWhenNoEvents(true)), engine.Dependencies{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, scenario.Run(ctx, env, s, true, true))
	assert.True(t, checked)
}

func TestRunPropagatesCheckFnFailure(t *testing.T) {
	mailApp := mail.New("mail", clock.New(start))
	boom := errors.New("boom")

	s := scenario.New("demo", start).
		WithApps(mailApp).
		WithDuration(5 * time.Second)
	s.CheckFn = func(env *engine.Environment) error { return boom }

	env := engine.New(s.EngineConfig(engine.WithExitWhenNoEvents(true)), engine.Dependencies{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := scenario.Run(ctx, env, s, true, true)
	assert.ErrorIs(t, err, boom)
}

func TestRunWithoutWaitForEndReturnsBeforeCheck(t *testing.T) {
	mailApp := mail.New("mail", clock.New(start))
	called := false
	s := scenario.New("demo", start).WithApps(mailApp).WithDuration(5 * time.Second)
	s.CheckFn = func(env *engine.Environment) error { called = true; return nil }

	env := engine.New(s.EngineConfig(engine.WithExitWhenNoEvents(true)), engine.Dependencies{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, scenario.Run(ctx, env, s, false, true))
	assert.False(t, called, "Run must not wait for completion or check the result when waitForEnd is false")

	require.NoError(t, env.Join(ctx))
}

func TestCheckResultDefaultsToNilWhenCheckFnUnset(t *testing.T) {
	s := scenario.New("demo", start)
	env := engine.New(s.EngineConfig(), engine.Dependencies{})
	assert.NoError(t, s.CheckResult(env))
}
