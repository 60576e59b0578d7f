package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/simerrors"
)

// Start schedules the given events, transitions SETUP -> RUNNING, and
// launches the loop goroutine. Start returns immediately; use Join to wait
// for completion. Start may only be called once.
func (env *Environment) Start(ctx context.Context, events []*event.Event) error {
	if env.State() != StateSetup {
		return simerrors.New(simerrors.InvalidArgument, "Start called in state %s, want SETUP", env.State())
	}
	if err := env.Schedule(events...); err != nil {
		return err
	}
	env.setState(StateRunning, StopNone)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return env.run(gctx)
	})

	go func() {
		err := g.Wait()
		env.mu.Lock()
		env.runErr = err
		env.mu.Unlock()
		close(env.doneCh)
	}()
	return nil
}

// run is the loop goroutine body: it dispatches to the time-based or
// queue-based (oracle) mode per Config, per spec §4.3, and runs
// finalChecks when the loop exits without error (a loop error is
// returned as is, without finalChecks). When cfg.DumpDir is set it also brackets
// the run with the initial_state/final_state dumps spec §6 requires,
// regardless of which loop mode ran or whether the run ended FAILED.
func (env *Environment) run(ctx context.Context) error {
	env.dumpState(ctx, "initial_state")
	defer env.dumpState(ctx, "final_state")

	var err error
	if env.cfg.QueueBasedLoop && env.cfg.OracleMode {
		err = env.runQueueBased(ctx)
	} else {
		err = env.runTimeBased(ctx)
	}
	if err != nil {
		return err
	}
	if err := env.finalChecks(ctx); err != nil {
		return err
	}
	// fail() emits the stop notification on the failure paths; this is
	// the clean-exit counterpart.
	env.notify.Stop(ctx, env.State().String())
	return nil
}

// runTimeBased advances virtual time in TimeIncrementInSeconds steps
// once per wall-clock second, the default "wall clock drives virtual
// clock" mode of spec §4.1/§4.3.
func (env *Environment) runTimeBased(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	increment := time.Duration(env.cfg.TimeIncrementInSeconds) * time.Second
	var deadline *time.Time
	if env.cfg.Duration != nil {
		d := env.cfg.StartTime.Add(*env.cfg.Duration)
		deadline = &d
	}

	for {
		if env.stopRequested() {
			env.stopExit()
			return nil
		}
		env.waitWhilePaused(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-env.stopCh:
			env.stopExit()
			return nil
		case <-ticker.C:
		}

		if env.clk.Paused() {
			continue
		}
		env.clk.AddOffset(increment)
		now := env.clk.Time()

		if deadline != nil && !now.Before(*deadline) {
			if err := env.tick(ctx, *deadline); err != nil {
				return err
			}
			env.setState(StateStopped, StopDurationExceeded)
			return nil
		}

		if err := env.tick(ctx, now); err != nil {
			return err
		}

		if env.cfg.ExitWhenNoEvents && env.queue.Len() == 0 {
			env.setState(StateStopped, StopDrained)
			return nil
		}
	}
}

// runQueueBased is the oracle-mode time-jumping loop: instead of
// sleeping in real time, it jumps the clock straight to the next ready
// event (spec §4.3's "queue-based loop ... advances time to the next
// scheduled event instead of polling wall-clock seconds").
func (env *Environment) runQueueBased(ctx context.Context) error {
	var deadline *time.Time
	if env.cfg.Duration != nil {
		d := env.cfg.StartTime.Add(*env.cfg.Duration)
		deadline = &d
	}

	for {
		if env.stopRequested() {
			env.stopExit()
			return nil
		}
		env.waitWhilePaused(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		nextT, ok := env.queue.PeekTime()
		if !ok {
			if env.cfg.ExitWhenNoEvents {
				env.setState(StateStopped, StopDrained)
				return nil
			}
			// Nothing left to jump to and the controller has not asked us
			// to exit; idle-wait for Stop or a newly scheduled event.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-env.stopCh:
				env.stopExit()
				return nil
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		if deadline != nil && !nextT.Before(*deadline) {
			env.clk.AddOffset(deadline.Sub(env.clk.Time()))
			if err := env.tick(ctx, *deadline); err != nil {
				return err
			}
			env.setState(StateStopped, StopDurationExceeded)
			return nil
		}

		env.clk.AddOffset(nextT.Sub(env.clk.Time()))
		if err := env.tick(ctx, nextT); err != nil {
			return err
		}
	}
}

// stopExit records the loop's reaction to a stop request, preserving a
// FAILED state the controller set via Stop(StateFailed) instead of
// overwriting it with STOPPED.
func (env *Environment) stopExit() {
	if env.State() != StateFailed {
		env.setState(StateStopped, StopRequested)
	}
}

// finalChecks runs the end-of-loop validation sweep (spec §4.4): any
// KindValidation event still outstanding when the loop ends without
// having achieved all its milestones is a ValidationFailure, and every
// still-installed agent-action validator must have achieved all its
// milestones too.
func (env *Environment) finalChecks(ctx context.Context) error {
	if env.State() == StateFailed {
		// The controller already declared the run failed via
		// Stop(StateFailed); nothing further to check.
		return nil
	}
	if env.queue.HasPendingValidation() {
		return env.fail(ctx, simerrors.New(simerrors.ValidationFailure,
			"loop ended with a scheduled validation still outstanding"))
	}
	for _, v := range env.agentValidators {
		if !v.AllAchieved() {
			return env.fail(ctx, simerrors.New(simerrors.ValidationFailure,
				"agent validator %q ended with outstanding milestones %v", v.ID, v.OutstandingMilestones()))
		}
	}
	return nil
}
