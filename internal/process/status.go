package process

import "time"

// Status is an immutable snapshot of one handle, safe to hand to any caller.
type Status struct {
	Name          string    `json:"name"`
	Summary       string    `json:"summary,omitempty"`
	State         string    `json:"state"`
	PID           int       `json:"pid,omitempty"`
	Port          int       `json:"port,omitempty"`
	HealthAddr    string    `json:"health_addr,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	StoppedAt     time.Time `json:"stopped_at,omitzero"`
	ExitCode      *int      `json:"exit_code,omitempty"`
	Restarts      int       `json:"restarts"`
	ProbeFailures int       `json:"probe_failures"`
	SpawnError    string    `json:"spawn_error,omitempty"`
	ForceKilled   bool      `json:"force_killed,omitempty"`
}

// Is reports whether the snapshot is in the named state.
func (s Status) Is(st State) bool { return s.State == st.String() }
