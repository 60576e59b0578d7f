package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/event"
)

func TestCaptureActionBuildsUnexecutedEvent(t *testing.T) {
	c := app.NewCapture("mail")
	e := c.Action("m1", event.ActorEnv, "add_email", map[string]any{"subject": "hi"})

	assert.Equal(t, "m1", e.ID)
	assert.Equal(t, event.KindAction, e.Kind)
	require.NotNil(t, e.Action)
	assert.Equal(t, "mail", e.Action.App)
	assert.Equal(t, "add_email", e.Action.Tool)
	assert.Nil(t, e.Completed)
}

func TestAtSetsAbsoluteTime(t *testing.T) {
	c := app.NewCapture("mail")
	e := c.Action("m1", event.ActorEnv, "add_email", nil)
	when := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	app.At(e, when)
	require.NotNil(t, e.Time)
	assert.Equal(t, when, *e.Time)
}

func TestAfterSetsDependenciesAndOffset(t *testing.T) {
	c := app.NewCapture("mail")
	e := c.Action("m2", event.ActorEnv, "add_email", nil)

	app.After(e, 5*time.Second, "m1")
	assert.ElementsMatch(t, []string{"m1"}, e.Dependencies)
	assert.Equal(t, 5*time.Second, e.RelativeTime)
}

func TestSuccessorsAppendsToExistingList(t *testing.T) {
	c := app.NewCapture("mail")
	e := c.Action("m1", event.ActorEnv, "add_email", nil)
	e.Successors = []string{"existing"}

	app.Successors(e, "next1", "next2")
	assert.Equal(t, []string{"existing", "next1", "next2"}, e.Successors)
}
