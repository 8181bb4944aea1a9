package monitor

// State is the lifecycle state of a monitoring session.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	// StateDegraded means no output arrived within the watchdog timeout.
	// The session keeps running and returns to StateRunning on new output.
	StateDegraded State = "degraded"
	StateStopped  State = "stopped"
	// StateFailed means the session ended with a terminal error. Restarting
	// is the caller's decision.
	StateFailed State = "failed"
)

// IsTerminal reports whether the session has ended.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

func (s State) String() string {
	return string(s)
}
