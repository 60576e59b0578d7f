package system_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/apps/system"
	"github.com/vedsirdeshmukh/are-sim/clock"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/notify"
)

// fakeWaiter is a minimal system.Waiter stand-in, decoupled from engine
// the same way system.App itself is.
type fakeWaiter struct {
	notifySys    *notify.System
	queue        *event.Queue
	processedAts []time.Time
}

func (f *fakeWaiter) NotificationSystem() *notify.System { return f.notifySys }
func (f *fakeWaiter) Queue() *event.Queue                { return f.queue }
func (f *fakeWaiter) ProcessDueAt(ctx context.Context, now time.Time) error {
	f.processedAts = append(f.processedAts, now)
	return nil
}

func newTestApp(t *testing.T) (*system.App, *fakeWaiter, *clock.Manager) {
	t.Helper()
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	clk := clock.New(start)
	waiter := &fakeWaiter{
		notifySys: notify.NewSystem(clk, notify.SilentPolicy{}, 0, nil),
		queue:     event.NewQueue(start),
	}
	a := system.New("system", clk, waiter)
	return a, waiter, clk
}

func TestGetCurrentTimeReportsClockTime(t *testing.T) {
	a, _, _ := newTestApp(t)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	result, err := a.Tools()[0].Handler(&app.InvokeContext{Context: context.Background(), Now: now}, nil)
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, now, out["current_timestamp"])
	assert.Equal(t, "Monday", out["current_weekday"])
}

func TestWaitForNotificationJumpsClockToTimeout(t *testing.T) {
	a, _, clk := newTestApp(t)
	start := clk.Time()

	result, err := a.Tools()[1].Handler(&app.InvokeContext{Context: context.Background(), Now: start}, map[string]any{"timeout": 30})
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, notify.KindWaitTimeout.String(), out["kind"])
	assert.Equal(t, start.Add(30*time.Second), clk.Time())
}

func TestWaitForNotificationRejectsNegativeTimeout(t *testing.T) {
	a, _, _ := newTestApp(t)
	_, err := a.Tools()[1].Handler(&app.InvokeContext{Context: context.Background(), Now: time.Now()}, map[string]any{"timeout": -1})
	assert.Error(t, err)
}

func TestWaitCallAdvancesClockDirectly(t *testing.T) {
	a, _, clk := newTestApp(t)
	start := clk.Time()
	require.NoError(t, a.Wait(5*time.Second))
	assert.Equal(t, start.Add(5*time.Second), clk.Time())
}

func TestWaitRejectsNegativeDuration(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.Error(t, a.Wait(-time.Second))
}
