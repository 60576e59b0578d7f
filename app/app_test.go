package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/clock"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/simerrors"
)

// fakeApp is a minimal app.App used to exercise the registry and
// dispatcher without pulling in a concrete apps/* package.
type fakeApp struct {
	app.Base
	tools []*app.ToolSpec
}

func newFakeApp(name string, tools ...*app.ToolSpec) *fakeApp {
	a := &fakeApp{tools: tools}
	a.AppName = name
	return a
}

func (a *fakeApp) Tools() []*app.ToolSpec         { return a.tools }
func (a *fakeApp) GetState() map[string]any       { return nil }
func (a *fakeApp) LoadState(map[string]any) error { return nil }
func (a *fakeApp) Reset()                         {}

// alwaysTrip and alwaysMiss are deterministic app.FailureSource stand-ins.
type alwaysTrip struct{}

func (alwaysTrip) Trip(float64) bool { return true }

type alwaysMiss struct{}

func (alwaysMiss) Trip(float64) bool { return false }

func newTestRegistry(t *testing.T) *app.Registry {
	t.Helper()
	clk := clock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return app.NewRegistry(clk, event.NewLog(), alwaysMiss{}, nil)
}

func TestRegisterAppsRejectsDuplicateNames(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.RegisterApps([]app.App{newFakeApp("mail")}))
	err := reg.RegisterApps([]app.App{newFakeApp("mail")})
	assert.Error(t, err)
}

func TestDispatchSuccessPath(t *testing.T) {
	reg := newTestRegistry(t)
	spec := &app.ToolSpec{
		PublicName: "echo",
		Role:       app.RoleApp,
		Op:         app.OpRead,
		Handler:    echoHandler,
	}
	require.NoError(t, reg.RegisterApps([]app.App{newFakeApp("svc", spec)}))

	e := app.NewLiveAction("svc", "echo", map[string]any{"x": 1}, event.ActorAgent)
	result, err := reg.Dispatch(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, result)
	require.NotNil(t, e.Completed)
	assert.Nil(t, e.Completed.Err)
}

func TestDispatchNotFound(t *testing.T) {
	reg := newTestRegistry(t)
	e := app.NewLiveAction("missing", "nope", nil, event.ActorAgent)
	_, err := reg.Dispatch(context.Background(), e)
	require.Error(t, err)
	kind, ok := simerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, simerrors.NotFound, kind)
}

func TestDispatchPermissionDeniedWhenRoleDisallows(t *testing.T) {
	reg := newTestRegistry(t)
	spec := &app.ToolSpec{PublicName: "admin_only", Role: app.RoleEnv, Handler: echoHandler}
	require.NoError(t, reg.RegisterApps([]app.App{newFakeApp("svc", spec)}))

	e := app.NewLiveAction("svc", "admin_only", nil, event.ActorAgent)
	_, err := reg.Dispatch(context.Background(), e)
	require.Error(t, err)
	kind, ok := simerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, simerrors.PermissionDenied, kind)
}

func TestDispatchInvalidArguments(t *testing.T) {
	reg := newTestRegistry(t)
	spec := &app.ToolSpec{
		PublicName: "needs_name",
		Role:       app.RoleApp,
		Params:     []app.ParamSpec{{Name: "name", Type: "string", Required: true}},
		Handler:    echoHandler,
	}
	require.NoError(t, reg.RegisterApps([]app.App{newFakeApp("svc", spec)}))

	e := app.NewLiveAction("svc", "needs_name", map[string]any{}, event.ActorAgent)
	_, err := reg.Dispatch(context.Background(), e)
	require.Error(t, err)
	kind, ok := simerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, simerrors.InvalidArgument, kind)
}

func TestDispatchFailureInjection(t *testing.T) {
	clk := clock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := app.NewRegistry(clk, event.NewLog(), alwaysTrip{}, nil)
	spec := &app.ToolSpec{
		PublicName:         "flaky",
		Role:               app.RoleApp,
		FailureProbability: 1,
		FailureMessage:     "boom",
		Handler:            echoHandler,
	}
	require.NoError(t, reg.RegisterApps([]app.App{newFakeApp("svc", spec)}))

	e := app.NewLiveAction("svc", "flaky", nil, event.ActorAgent)
	_, err := reg.Dispatch(context.Background(), e)
	require.Error(t, err)
	kind, ok := simerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, simerrors.ToolFailureInjection, kind)
}

func TestDispatchSuppressedLoggingSkipsLogAppend(t *testing.T) {
	clk := clock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	log := event.NewLog()
	reg := app.NewRegistry(clk, log, alwaysMiss{}, nil)
	spec := &app.ToolSpec{PublicName: "echo", Role: app.RoleApp, Handler: echoHandler}
	require.NoError(t, reg.RegisterApps([]app.App{newFakeApp("svc", spec)}))

	e := app.NewLiveAction("svc", "echo", nil, event.ActorAgent)
	ctx := app.WithSuppressedLogging(context.Background())
	_, err := reg.Dispatch(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())
}

func TestToolsByAppGroupsByRole(t *testing.T) {
	reg := newTestRegistry(t)
	agentTool := &app.ToolSpec{PublicName: "agent_tool", Role: app.RoleApp, Handler: echoHandler}
	userTool := &app.ToolSpec{PublicName: "user_tool", Role: app.RoleUser, Handler: echoHandler}
	require.NoError(t, reg.RegisterApps([]app.App{newFakeApp("svc", agentTool, userTool)}))

	byApp := reg.ToolsByApp(app.RoleApp)
	require.Contains(t, byApp, "svc")
	assert.Len(t, byApp["svc"], 1)
	assert.Equal(t, "agent_tool", byApp["svc"][0].PublicName)

	byUser := reg.ToolsByApp(app.RoleUser)
	require.Contains(t, byUser, "svc")
	assert.Equal(t, "user_tool", byUser["svc"][0].PublicName)
}
