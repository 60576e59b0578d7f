package scenario_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/scenario"
)

const sampleYAML = `
name: demo
start_time: 2024-01-01T00:00:00Z
duration_seconds: 60
time_increment_in_seconds: 2
events:
  - id: send_mail
    kind: action
    actor: env
    app: mail
    tool: add_email
    relative_time_seconds: 5
    args:
      subject: hi
      body: there
  - id: gate
    kind: condition_check
    actor: condition
    dependencies: [send_mail]
    predicate: "count >= 1"
    check_interval_ticks: 1
    timeout_ticks: 10
  - id: check
    kind: validation
    actor: validation
    validator_id: v1
    milestones:
      done: "true"
    poll_interval_ticks: 1
    deadline_ticks: 5
`

func TestParseFileAndBuildRoundTrip(t *testing.T) {
	cfg, err := scenario.ParseFile([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, 2, cfg.TimeIncrementInSeconds)
	require.NotNil(t, cfg.DurationSeconds)
	assert.Equal(t, 60, *cfg.DurationSeconds)

	s, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, "demo", s.Name)
	require.NotNil(t, s.Duration)
	assert.Equal(t, 60*time.Second, *s.Duration)
	require.Len(t, s.Events(), 3)

	mailEvt := s.Events()[0]
	assert.Equal(t, event.KindAction, mailEvt.Kind)
	assert.Equal(t, event.ActorEnv, mailEvt.Actor)
	assert.Equal(t, "mail", mailEvt.Action.App)
	assert.Equal(t, 5*time.Second, mailEvt.RelativeTime)

	gateEvt := s.Events()[1]
	assert.Equal(t, event.KindConditionCheck, gateEvt.Kind)
	assert.Equal(t, event.ActorCondition, gateEvt.Actor)
	require.NotNil(t, gateEvt.ConditionCheck)
	assert.ElementsMatch(t, []string{"send_mail"}, gateEvt.Dependencies)

	validationEvt := s.Events()[2]
	assert.Equal(t, event.KindValidation, validationEvt.Kind)
	require.NotNil(t, validationEvt.Validation)
	assert.Equal(t, "v1", validationEvt.Validation.ValidatorID)
}

func TestParseFileDefaultsTimeIncrementToOne(t *testing.T) {
	cfg, err := scenario.ParseFile([]byte("name: demo\nstart_time: 2024-01-01T00:00:00Z\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.TimeIncrementInSeconds)
}

func TestBuildRejectsUnknownEventKind(t *testing.T) {
	cfg, err := scenario.ParseFile([]byte(`
name: bad
start_time: 2024-01-01T00:00:00Z
events:
  - id: x
    kind: not_a_real_kind
    actor: env
`))
	require.NoError(t, err)
	_, err = cfg.Build()
	assert.Error(t, err)
}

func TestBuildRejectsInvalidPredicateSyntax(t *testing.T) {
	cfg, err := scenario.ParseFile([]byte(`
name: bad
start_time: 2024-01-01T00:00:00Z
events:
  - id: gate
    kind: condition_check
    actor: condition
    predicate: "not valid ("
`))
	require.NoError(t, err)
	_, err = cfg.Build()
	assert.Error(t, err)
}

func TestBuildHonorsAbsoluteTimeOverRelative(t *testing.T) {
	cfg, err := scenario.ParseFile([]byte(`
name: demo
start_time: 2024-01-01T00:00:00Z
events:
  - id: fixed
    kind: action
    actor: env
    app: mail
    tool: add_email
    relative_time_seconds: 100
    absolute_time_seconds: 5
`))
	require.NoError(t, err)
	s, err := cfg.Build()
	require.NoError(t, err)

	evt := s.Events()[0]
	require.NotNil(t, evt.Time)
	assert.Equal(t, cfg.StartTime.Add(5*time.Second), *evt.Time)
}
