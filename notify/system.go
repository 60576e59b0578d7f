package notify

import (
	"context"
	"sync"
	"time"

	"github.com/vedsirdeshmukh/are-sim/clock"
	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/telemetry"
)

// System is the notification subsystem of spec §4.5: it subscribes to
// completed events, applies a Policy to decide what to surface, scans
// registered reminder apps for due-time notifications, and implements
// the wait-for-notification time-jumping primitive.
type System struct {
	mu sync.Mutex

	clk    *clock.Manager
	queue  *Queue
	policy Policy
	tel    telemetry.Logger

	reminderApps []ReminderSource
	notified     map[string]map[string]bool // app name -> reminder ID -> delivered

	waiting bool
}

// NewSystem constructs a System. tel may be nil (defaults to a no-op
// logger); capacity <= 0 leaves the notification queue unbounded.
func NewSystem(clk *clock.Manager, policy Policy, capacity int, tel telemetry.Logger) *System {
	if tel == nil {
		tel = telemetry.NewNoopLogger()
	}
	return &System{
		clk:      clk,
		queue:    NewQueue(capacity),
		policy:   policy,
		tel:      tel,
		notified: make(map[string]map[string]bool),
	}
}

// Queue exposes the FIFO the agent polls.
func (s *System) Queue() *Queue { return s.queue }

// RegisterReminderSource adds an app to the reminder due-time scan.
func (s *System) RegisterReminderSource(r ReminderSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminderApps = append(s.reminderApps, r)
}

// OnCompleted is called once per completed event (any kind). Policy
// errors are logged and suppressed per spec §7 ("Notification system
// exceptions are logged and suppressed; the loop keeps running") — Notify
// itself never errors here since Policy is a pure function, but this is
// the seam where a future policy implementation could.
func (s *System) OnCompleted(ctx context.Context, e *event.Event) {
	if s.policy == nil {
		return
	}
	n, ok := s.policy.Notify(e)
	if !ok {
		return
	}
	s.queue.Push(n)
	s.tel.Info(ctx, "notification emitted", "kind", n.Kind.String(), "event_id", e.ID)
}

// Stop emits the terminal ENVIRONMENT_STOP notification, carrying the
// failed-state reason (if any) as its message.
func (s *System) Stop(ctx context.Context, reason string) {
	n := Notification{Kind: KindEnvironmentStop, Message: reason, Timestamp: s.clk.Time()}
	s.queue.Push(n)
	s.tel.Info(ctx, "environment stop notification emitted", "reason", reason)
}

// ScanReminders checks every registered reminder app for items whose due
// time has crossed asOf since the last scan, emitting (and recording as
// delivered) each newly-due reminder at most once. Returns the
// notifications emitted this scan.
func (s *System) ScanReminders(asOf time.Time) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanRemindersLocked(asOf)
}

func (s *System) scanRemindersLocked(asOf time.Time) []Notification {
	var emitted []Notification
	for _, src := range s.reminderApps {
		name := src.AppName()
		seen := s.notified[name]
		if seen == nil {
			seen = make(map[string]bool)
			s.notified[name] = seen
		}
		for _, r := range src.PendingReminders() {
			if seen[r.ID] || r.DueAt.After(asOf) {
				continue
			}
			seen[r.ID] = true
			n := Notification{Kind: KindEnvironmentNotification, Message: r.Text, Timestamp: asOf}
			s.queue.Push(n)
			emitted = append(emitted, n)
		}
	}
	return emitted
}

// nextPendingReminder returns the earliest due time among every
// registered reminder app's not-yet-delivered reminders, regardless of
// whether that time is in the past, present, or future relative to now.
func (s *System) nextPendingReminder() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best time.Time
	found := false
	for _, src := range s.reminderApps {
		seen := s.notified[src.AppName()]
		for _, r := range src.PendingReminders() {
			if seen != nil && seen[r.ID] {
				continue
			}
			if !found || r.DueAt.Before(best) {
				best = r.DueAt
				found = true
			}
		}
	}
	return best, found
}
