package daemon

import "fmt"

// State is a phase of the request loop.
type State string

const (
	StateReading     State = "reading"
	StateDispatching State = "dispatching"
	StateResponding  State = "responding"
	StateStopped     State = "stopped"
)

// transitions lists the allowed moves out of each state.
var transitions = map[State][]State{
	StateReading:     {StateDispatching, StateStopped},
	StateDispatching: {StateResponding},
	StateResponding:  {StateReading, StateStopped},
	StateStopped:     nil,
}

// Transition validates a move from one state to another.
func Transition(from, to State) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("invalid daemon state transition %s -> %s", from, to)
}

// StopReason says why Run returned.
type StopReason string

const (
	StopEOF              StopReason = "eof"
	StopScheduledRestart StopReason = "scheduled_restart"
	StopFatal            StopReason = "fatal"
	StopCancelled        StopReason = "cancelled"
	StopWriteFailed      StopReason = "write_failed"
	StopReadFailed       StopReason = "read_failed"
)

// ExitCode is the process exit status for the reason. Only I/O failures on
// the protocol streams are reported as failures; every other stop is a clean
// exit the supervisor restarts from.
func (r StopReason) ExitCode() int {
	switch r {
	case StopWriteFailed, StopReadFailed:
		return 1
	default:
		return 0
	}
}
