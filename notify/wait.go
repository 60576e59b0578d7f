package notify

import (
	"context"
	"time"

	"github.com/vedsirdeshmukh/are-sim/simerrors"
)

// QueuePeeker is the subset of event.Queue the wait-for-notification
// primitive needs: the earliest ready future event's time, without
// removing it.
type QueuePeeker interface {
	PeekTime() (time.Time, bool)
}

// WaitForNotification is the cooperative "sleep until something
// interesting happens" primitive of spec §4.5. It is the principal
// reason this subsystem is interesting: it fuses the event scheduler,
// the notification queue, and the time manager into one deterministic
// fast-forward operation, per the design note in spec §9.
//
// tick, when non-nil, is invoked with the virtual time just jumped to
// whenever the loop advances time to process a queued event rather than
// a notification or the deadline; the engine supplies its own tick()
// here so a single call to WaitForNotification may internally process
// several events before returning. tick's error return is propagated
// straight back to the caller of WaitForNotification: a ValidationFailure
// (or any other error) discovered while processing an event inside the
// wait must not be swallowed, since it is exactly as fatal here as it is
// on the ordinary tick path (spec §4.4/§7).
//
// Nested calls are not supported: a second call while one is already in
// flight fails fast with simerrors.Internal, per spec §9's "nested calls
// from agent code are NOT supported and should fail fast."
func (s *System) WaitForNotification(ctx context.Context, peek QueuePeeker, timeout time.Duration, tick func(now time.Time) error) (Notification, error) {
	s.mu.Lock()
	if s.waiting {
		s.mu.Unlock()
		return Notification{}, simerrors.New(simerrors.Internal, "wait_for_notification called re-entrantly")
	}
	s.waiting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.waiting = false
		s.mu.Unlock()
	}()

	if timeout < 0 {
		return Notification{}, simerrors.New(simerrors.InvalidArgument, "wait_for_notification timeout must be non-negative")
	}

	deadline := s.clk.Time().Add(timeout)

	for {
		now := s.clk.Time()
		if !now.Before(deadline) {
			n := Notification{Kind: KindWaitTimeout, Timestamp: deadline}
			s.queue.Push(n)
			return n, nil
		}

		nextEventT, hasEvent := peek.PeekTime()
		nextNotifT, hasNotif := s.nextPendingReminder()

		eventBeforeDeadline := hasEvent && nextEventT.Before(deadline)
		notifBeforeDeadline := hasNotif && nextNotifT.Before(deadline)

		if !eventBeforeDeadline && !notifBeforeDeadline {
			s.clk.AddOffset(deadline.Sub(now))
			n := Notification{Kind: KindWaitTimeout, Timestamp: deadline}
			s.queue.Push(n)
			s.tel.Info(ctx, "wait_for_notification timed out", "deadline", deadline)
			return n, nil
		}

		if notifBeforeDeadline && (!eventBeforeDeadline || nextNotifT.Before(nextEventT)) {
			s.clk.AddOffset(nextNotifT.Sub(now))
			emitted := s.ScanReminders(nextNotifT)
			s.tel.Info(ctx, "wait_for_notification woke on reminder", "time", nextNotifT)
			if len(emitted) > 0 {
				return emitted[0], nil
			}
			return Notification{Kind: KindEnvironmentNotification, Timestamp: nextNotifT}, nil
		}

		before := s.queue.Len()
		s.clk.AddOffset(nextEventT.Sub(now))
		if tick != nil {
			if err := tick(nextEventT); err != nil {
				return Notification{}, err
			}
		}
		// An event processed during the jump may itself have surfaced a
		// notification (a user message, a policy-notable ENV event); the
		// wait is over the moment one lands.
		if after := s.queue.All(); len(after) > before {
			n := after[before]
			s.tel.Info(ctx, "wait_for_notification woke on event notification", "kind", n.Kind.String())
			return n, nil
		}
	}
}
