package engine

import "fmt"

// State is the Environment's lifecycle state machine: spec §6.
//   SETUP -> RUNNING <-> PAUSED -> STOPPED | FAILED
type State int

const (
	StateSetup State = iota
	StateRunning
	StatePaused
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "SETUP"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseState is the inverse of State.String, for restoring a persisted
// snapshot's lifecycle state.
func ParseState(s string) (State, error) {
	switch s {
	case "SETUP":
		return StateSetup, nil
	case "RUNNING":
		return StateRunning, nil
	case "PAUSED":
		return StatePaused, nil
	case "STOPPED":
		return StateStopped, nil
	case "FAILED":
		return StateFailed, nil
	default:
		return 0, fmt.Errorf("unknown state %q", s)
	}
}

// StopReason distinguishes why the loop exited, restoring a distinction
// the distillation collapsed (SPEC_FULL.md, SUPPLEMENTED FEATURES:
// "exit_event / explicit stop reason").
type StopReason int

const (
	// StopNone means the loop has not yet exited.
	StopNone StopReason = iota
	// StopDrained means the future queue emptied with ExitWhenNoEvents
	// set.
	StopDrained
	// StopRequested means a KindStop event fired or the controller called
	// Stop.
	StopRequested
	// StopFailed means a validation failure (or internal assertion)
	// forced state = FAILED.
	StopFailed
	// StopDurationExceeded means the scenario's Duration elapsed.
	StopDurationExceeded
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopDrained:
		return "drained"
	case StopRequested:
		return "requested"
	case StopFailed:
		return "failed"
	case StopDurationExceeded:
		return "duration_exceeded"
	default:
		return "unknown"
	}
}
