package process

// State is the lifecycle state of one process identity. Stopped and Failed
// are terminal for an identity; a restart allocates a new identity under the
// same service name.
type State int

const (
	StatePending State = iota
	StateStarting
	StateRunning
	StateUnhealthy
	StateStopping
	StateStopped
	StateFailed
)

var stateNames = map[State]string{
	StatePending:   "pending",
	StateStarting:  "starting",
	StateRunning:   "running",
	StateUnhealthy: "unhealthy",
	StateStopping:  "stopping",
	StateStopped:   "stopped",
	StateFailed:    "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether the identity has finished for good.
func (s State) Terminal() bool { return s == StateStopped || s == StateFailed }

// Alive reports whether the underlying OS process is expected to exist.
func (s State) Alive() bool {
	switch s {
	case StateStarting, StateRunning, StateUnhealthy, StateStopping:
		return true
	}
	return false
}

// Probeable reports whether the health monitor should probe this state.
func (s State) Probeable() bool { return s == StateRunning || s == StateUnhealthy }

// States lists all states in declaration order, for metrics gauges.
func States() []State {
	return []State{
		StatePending, StateStarting, StateRunning, StateUnhealthy,
		StateStopping, StateStopped, StateFailed,
	}
}
