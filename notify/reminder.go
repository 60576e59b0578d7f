package notify

import "time"

// Reminder is one due-time-bearing item a ReminderSource app exposes
// (spec §4.5's "reminder apps"). It is deliberately minimal: concrete
// reminder semantics (snooze, recurrence, ...) are application-layer
// concerns out of scope here.
type Reminder struct {
	ID    string
	DueAt time.Time
	Text  string
}

// ReminderSource is implemented by any registered app that wants its
// reminders scanned for due-time notifications.
type ReminderSource interface {
	AppName() string
	PendingReminders() []Reminder
}
