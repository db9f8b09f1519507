package client

import "time"

// ServiceStatus mirrors the API's status payload.
type ServiceStatus struct {
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

// Event mirrors one journal entry.
type Event struct {
	At      time.Time `json:"at"`
	Service string    `json:"service"`
	Kind    string    `json:"kind"`
	Detail  string    `json:"detail,omitempty"`
}
