// Package clock owns virtual time for a running simulation.
//
// Every other component reads "now" through a Manager rather than the
// host clock. Wall-clock time is used only to pace the time-based event
// loop; it never decides event ordering.
package clock

import (
	"sync"
	"time"
)

// Manager is the single source of virtual time for one simulation run.
// It is safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	startTime time.Time
	current   time.Time
	paused    bool
}

// New creates a Manager anchored at startTime. The clock starts running
// (not paused).
func New(startTime time.Time) *Manager {
	return &Manager{
		startTime: startTime,
		current:   startTime,
	}
}

// Time returns the current virtual time. While paused it returns the
// time at which Pause was called.
func (m *Manager) Time() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// TimePassed returns the duration elapsed since the last Reset.
func (m *Manager) TimePassed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Sub(m.startTime)
}

// AddOffset advances virtual time by delta. delta must be non-negative;
// a negative delta is an InvalidArgument error from the caller's
// perspective, signaled here by returning false so callers can translate
// it into their own error type without importing one here.
func (m *Manager) AddOffset(delta time.Duration) bool {
	if delta < 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(delta)
	return true
}

// Pause freezes the clock. Idempotent: pausing an already-paused Manager
// has no effect.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume unfreezes the clock. Resuming a Manager that is not paused is a
// silent no-op, matching the source environment's resume() semantics.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// ResumeWithOffset applies delta to the clock and then resumes it, as a
// single atomic operation. This mirrors the reference implementation's
// resume_with_offset, which adds the offset while still paused and only
// then clears the pause flag, so no concurrent tick ever observes the
// clock resumed but not yet offset.
func (m *Manager) ResumeWithOffset(delta time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delta < 0 {
		return false
	}
	m.current = m.current.Add(delta)
	m.paused = false
	return true
}

// Paused reports whether the clock is currently frozen.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Reset re-anchors virtual time to startTime, as if the Manager were
// freshly constructed, and clears the paused flag.
func (m *Manager) Reset(startTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startTime = startTime
	m.current = startTime
	m.paused = false
}
