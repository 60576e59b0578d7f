package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/are-sim/apps/aui"
	"github.com/vedsirdeshmukh/are-sim/apps/mail"
	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/engine"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/persist"
	"github.com/vedsirdeshmukh/are-sim/validate"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func addEmailEvent(id string, offset time.Duration, subject string) *event.Event {
	e := event.New(id, event.KindAction, event.ActorEnv)
	e.RelativeTime = offset
	e.Action = &event.Action{App: "mail", Tool: "add_email", RawArgs: map[string]any{"subject": subject, "body": "b"}}
	return e
}

// TestBasicScheduling mirrors spec §8 scenario 1: three add-email events
// at t=2,5,9 against a duration-10 run complete in order and the inbox
// ends with exactly three messages.
func TestBasicScheduling(t *testing.T) {
	clk0 := engine.NewConfig(start, engine.WithDuration(10*time.Second), engine.WithExitWhenNoEvents(true))
	env := engine.New(clk0, engine.Dependencies{})

	mailApp := mail.New("mail", env.Clock())
	require.NoError(t, env.RegisterApps([]app.App{mailApp}))

	events := []*event.Event{
		addEmailEvent("a", 2*time.Second, "A"),
		addEmailEvent("b", 5*time.Second, "B"),
		addEmailEvent("c", 9*time.Second, "C"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, env.Start(ctx, events))
	require.NoError(t, env.Join(ctx))

	logged := env.Log().All()
	require.Len(t, logged, 3)
	assert.Equal(t, "a", logged[0].ID)
	assert.Equal(t, "b", logged[1].ID)
	assert.Equal(t, "c", logged[2].ID)

	inbox := mailApp.GetState()["messages"].([]map[string]any)
	assert.Len(t, inbox, 3)
}

// TestConditionalGate mirrors spec §8 scenario 2: a condition check
// waiting on inbox >= 2 only completes once the second mail lands, and
// its follow-on AUI send fires no earlier than that.
func TestConditionalGate(t *testing.T) {
	cfg := engine.NewConfig(start, engine.WithDuration(20*time.Second), engine.WithExitWhenNoEvents(true))
	env := engine.New(cfg, engine.Dependencies{})

	mailApp := mail.New("mail", env.Clock())
	auiApp := aui.New("aui", env.Clock())
	require.NoError(t, env.RegisterApps([]app.App{mailApp, auiApp}))

	pred, err := validate.Compile(`apps.mail.messages != nil && len(apps.mail.messages) >= 2`)
	require.NoError(t, err)

	cond := event.New("gate", event.KindConditionCheck, event.ActorCondition)
	cond.RelativeTime = 0
	cond.ConditionCheck = &event.ConditionCheck{Predicate: pred, CheckIntervalTicks: 1, TimeoutTicks: 30}
	cond.Successors = []string{"notify_user"}

	followOn := event.New("notify_user", event.KindAction, event.ActorUser)
	followOn.Dependencies = []string{"gate"}
	followOn.Action = &event.Action{App: "aui", Tool: "send_to_user", RawArgs: map[string]any{"message": "You received 3 emails"}}

	events := []*event.Event{
		addEmailEvent("m1", 2*time.Second, "one"),
		addEmailEvent("m2", 5*time.Second, "two"),
		addEmailEvent("m3", 15*time.Second, "three"),
		cond,
		followOn,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, env.Start(ctx, events))
	require.NoError(t, env.Join(ctx))

	gateEntry, ok := env.Log().Get("gate")
	require.True(t, ok)
	assert.False(t, gateEntry.Completed.ExecutedAt.Before(start.Add(5*time.Second)),
		"the conditional must not resolve before the second mail lands")

	followEntry, ok := env.Log().Get("notify_user")
	require.True(t, ok)
	assert.True(t, !followEntry.Completed.ExecutedAt.Before(gateEntry.Completed.ExecutedAt))
}

// TestValidatorSucceeds mirrors spec §8 scenario 3: both milestones land
// inside the 10s timeout and the run ends STOPPED, not FAILED.
func TestValidatorSucceeds(t *testing.T) {
	cfg := engine.NewConfig(start, engine.WithDuration(15*time.Second), engine.WithExitWhenNoEvents(true))
	env := engine.New(cfg, engine.Dependencies{})

	mailApp := mail.New("mail", env.Clock())
	require.NoError(t, env.RegisterApps([]app.App{mailApp}))

	v, err := validate.NewScheduled(
		map[string]string{
			"robot":     `len(apps.mail.messages) >= 1`,
			"not_robot": `len(apps.mail.messages) >= 2`,
		},
		nil, 1, 10,
	)
	require.NoError(t, err)

	validation := event.New("validator", event.KindValidation, event.ActorValidation)
	validation.Validation = &event.Validation{ValidatorID: "robot_check", Validator: v}

	events := []*event.Event{
		addEmailEvent("m1", 7*time.Second, "I am a robot"),
		addEmailEvent("m2", 9*time.Second, "I am not a robot"),
		validation,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, env.Start(ctx, events))
	require.NoError(t, env.Join(ctx))

	assert.Equal(t, engine.StateStopped, env.State())
}

// TestValidatorTimesOut mirrors spec §8 scenario 4: the same validator
// with a 7s timeout and only the first milestone ever lands, so the run
// ends FAILED.
func TestValidatorTimesOut(t *testing.T) {
	cfg := engine.NewConfig(start, engine.WithDuration(15*time.Second), engine.WithExitWhenNoEvents(true))
	env := engine.New(cfg, engine.Dependencies{})

	mailApp := mail.New("mail", env.Clock())
	require.NoError(t, env.RegisterApps([]app.App{mailApp}))

	v, err := validate.NewScheduled(
		map[string]string{
			"robot":     `len(apps.mail.messages) >= 1`,
			"not_robot": `len(apps.mail.messages) >= 2`,
		},
		nil, 1, 7,
	)
	require.NoError(t, err)

	validation := event.New("validator", event.KindValidation, event.ActorValidation)
	validation.Validation = &event.Validation{ValidatorID: "robot_check", Validator: v}

	events := []*event.Event{
		addEmailEvent("m1", 7*time.Second, "I am a robot"),
		validation,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, env.Start(ctx, events))
	err = env.Join(ctx)
	require.Error(t, err)
	assert.Equal(t, engine.StateFailed, env.State())
}

// TestConditionCheckTimesOutWithoutReleasingSuccessors pins the boundary
// behavior of a condition that never becomes true: its tick budget
// elapses, a completed event with timeout status appears in the log, and
// its successors are never scheduled.
func TestConditionCheckTimesOutWithoutReleasingSuccessors(t *testing.T) {
	cfg := engine.NewConfig(start, engine.WithDuration(10*time.Second))
	env := engine.New(cfg, engine.Dependencies{})

	mailApp := mail.New("mail", env.Clock())
	auiApp := aui.New("aui", env.Clock())
	require.NoError(t, env.RegisterApps([]app.App{mailApp, auiApp}))

	pred, err := validate.Compile(`len(apps.mail.messages) >= 1`)
	require.NoError(t, err)

	cond := event.New("gate", event.KindConditionCheck, event.ActorCondition)
	cond.ConditionCheck = &event.ConditionCheck{Predicate: pred, CheckIntervalTicks: 1, TimeoutTicks: 3}
	cond.Successors = []string{"never"}

	gated := event.New("never", event.KindAction, event.ActorUser)
	gated.Dependencies = []string{"gate"}
	gated.Action = &event.Action{App: "aui", Tool: "send_to_user", RawArgs: map[string]any{"message": "unreachable"}}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, env.Start(ctx, []*event.Event{cond, gated}))
	require.NoError(t, env.Join(ctx))

	gateEntry, ok := env.Log().Get("gate")
	require.True(t, ok)
	assert.True(t, gateEntry.Completed.TimedOut)

	_, ok = env.Log().Get("never")
	assert.False(t, ok, "a timed-out gate must not release its successors")
	assert.Empty(t, auiApp.GetState()["messages"])
}

// TestDumpDirWritesInitialAndFinalState confirms spec §6's dump_dir flag
// actually writes the initial_state/final_state dumps it names, via the
// same persist.BoltStore used for save/load (§6's persistence format),
// rather than being a silent no-op.
func TestDumpDirWritesInitialAndFinalState(t *testing.T) {
	dir := t.TempDir()
	cfg := engine.NewConfig(start,
		engine.WithDuration(10*time.Second),
		engine.WithExitWhenNoEvents(true),
		engine.WithDumpDir(dir),
	)
	assert.True(t, cfg.OracleMode, "WithDumpDir must imply oracle mode")

	env := engine.New(cfg, engine.Dependencies{})
	mailApp := mail.New("mail", env.Clock())
	require.NoError(t, env.RegisterApps([]app.App{mailApp}))

	events := []*event.Event{addEmailEvent("a", 2*time.Second, "A")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, env.Start(ctx, events))
	require.NoError(t, env.Join(ctx))

	store, err := persist.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	initial, err := store.LoadEngineState("initial_state")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", initial["state"], "Start transitions to RUNNING before the loop goroutine takes the initial_state snapshot")

	final, err := store.LoadEngineState("final_state")
	require.NoError(t, err)
	assert.Equal(t, "STOPPED", final["state"])

	finalMail, err := store.LoadAppState("final_state", "mail")
	require.NoError(t, err)
	inbox, ok := finalMail["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, inbox, 1)
}

// TestOracleConversion mirrors spec §8 scenario 6: an OracleEvent is
// dropped outside oracle mode and converted into a completed AGENT event
// inside it.
func TestOracleConversion(t *testing.T) {
	oracleEvent := func() *event.Event {
		e := event.New("oracle1", event.KindOracle, event.ActorAgent)
		e.RelativeTime = 3 * time.Second
		e.Action = &event.Action{App: "mail", Tool: "get_inbox", RawArgs: map[string]any{}}
		return e
	}

	t.Run("dropped without oracle mode", func(t *testing.T) {
		cfg := engine.NewConfig(start, engine.WithDuration(5*time.Second), engine.WithExitWhenNoEvents(true))
		env := engine.New(cfg, engine.Dependencies{})
		mailApp := mail.New("mail", env.Clock())
		require.NoError(t, env.RegisterApps([]app.App{mailApp}))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, env.Start(ctx, []*event.Event{oracleEvent()}))
		require.NoError(t, env.Join(ctx))

		_, ok := env.Log().Get("oracle1")
		assert.False(t, ok, "oracle events must not run outside oracle mode")
	})

	t.Run("converted to AGENT action in oracle mode", func(t *testing.T) {
		cfg := engine.NewConfig(start,
			engine.WithDuration(5*time.Second),
			engine.WithExitWhenNoEvents(true),
			engine.WithOracleMode(true),
		)
		env := engine.New(cfg, engine.Dependencies{})
		mailApp := mail.New("mail", env.Clock())
		require.NoError(t, env.RegisterApps([]app.App{mailApp}))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, env.Start(ctx, []*event.Event{oracleEvent()}))
		require.NoError(t, env.Join(ctx))

		entry, ok := env.Log().Get("oracle1")
		require.True(t, ok)
		assert.Equal(t, event.ActorAgent, entry.Actor)
	})
}
