package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/apps/mail"
	"github.com/vedsirdeshmukh/are-sim/engine"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/validate"
)

// TestLoadStateRoundTripPreRun pins the round-trip law
// load_state(get_state()) == get_state() on a snapshot taken before the
// loop ever ran, with every event kind still sitting in the future queue
// so the queue-rebuild path (including predicate recompilation) is
// exercised.
func TestLoadStateRoundTripPreRun(t *testing.T) {
	cfg := engine.NewConfig(start, engine.WithDuration(30*time.Second), engine.WithTimeIncrement(2))
	env := engine.New(cfg, engine.Dependencies{})
	require.NoError(t, env.RegisterApps([]app.App{mail.New("mail", env.Clock())}))

	pred, err := validate.Compile(`len(apps.mail.messages) >= 1`)
	require.NoError(t, err)
	cond := event.New("cond", event.KindConditionCheck, event.ActorCondition)
	cond.ConditionCheck = &event.ConditionCheck{Predicate: pred, CheckIntervalTicks: 1, TimeoutTicks: 5}
	cond.Successors = []string{"followup"}

	followup := addEmailEvent("followup", 2*time.Second, "later")
	followup.Dependencies = []string{"cond"}

	sched, err := validate.NewScheduled(
		map[string]string{"one_mail": `len(apps.mail.messages) >= 1`},
		map[string]string{"never": `len(apps.mail.messages) > 9`},
		1, 10,
	)
	require.NoError(t, err)
	validation := event.New("val", event.KindValidation, event.ActorValidation)
	validation.Validation = &event.Validation{ValidatorID: "mail_check", Validator: sched}

	agentV, err := validate.NewAgentAction("agent_check",
		map[string]string{"sent": `tool == "add_email"`}, nil, 20)
	require.NoError(t, err)
	install := event.New("install", event.KindAgentValidation, event.ActorEnv)
	install.AgentValidation = &event.AgentValidation{Validator: agentV}

	require.NoError(t, env.Schedule(
		addEmailEvent("m1", 3*time.Second, "hello"),
		cond, followup, validation, install,
	))

	snapshot := env.GetState()

	restored := engine.New(engine.NewConfig(start), engine.Dependencies{})
	require.NoError(t, restored.RegisterApps([]app.App{mail.New("mail", restored.Clock())}))
	require.NoError(t, restored.LoadState(snapshot))

	assert.Equal(t, snapshot, restored.GetState())
}

// TestLoadStateRoundTripAfterRun takes the snapshot after a completed
// queue-based run, so the log-rebuild path (completed events, return
// values, app state) is the one under test.
func TestLoadStateRoundTripAfterRun(t *testing.T) {
	cfg := engine.NewConfig(start,
		engine.WithDuration(10*time.Second),
		engine.WithOracleMode(true),
		engine.WithQueueBasedLoop(true),
		engine.WithExitWhenNoEvents(true),
	)
	env := engine.New(cfg, engine.Dependencies{})
	mailApp := mail.New("mail", env.Clock())
	require.NoError(t, env.RegisterApps([]app.App{mailApp}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, env.Start(ctx, []*event.Event{
		addEmailEvent("a", 2*time.Second, "A"),
		addEmailEvent("b", 5*time.Second, "B"),
	}))
	require.NoError(t, env.Join(ctx))

	snapshot := env.GetState()

	restored := engine.New(engine.NewConfig(start), engine.Dependencies{})
	restoredMail := mail.New("mail", restored.Clock())
	require.NoError(t, restored.RegisterApps([]app.App{restoredMail}))
	require.NoError(t, restored.LoadState(snapshot))

	assert.Equal(t, snapshot, restored.GetState())

	entry, ok := restored.Log().Get("a")
	require.True(t, ok, "event IDs must stay referenceable across save/load")
	assert.Equal(t, start.Add(2*time.Second), entry.Completed.ExecutedAt)

	inbox := restoredMail.GetState()["messages"].([]map[string]any)
	assert.Len(t, inbox, 2)
}
