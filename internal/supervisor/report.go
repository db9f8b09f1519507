package supervisor

import "github.com/telinsights/telrun/internal/process"

// Outcome classifies how one service went down during StopAll.
type Outcome string

const (
	OutcomeStopped         Outcome = "stopped"         // exited within the graceful wait
	OutcomeKilled          Outcome = "killed"          // required SIGKILL escalation
	OutcomeAlreadyTerminal Outcome = "already-stopped" // terminal before StopAll began
	OutcomeTimeout         Outcome = "timeout"         // survived SIGKILL grace; marked terminal anyway
)

// StopResult is one service's entry in the shutdown report.
type StopResult struct {
	Name    string         `json:"name"`
	Outcome Outcome        `json:"outcome"`
	Status  process.Status `json:"status"`
	Err     error          `json:"-"`
}

// Report aggregates StopAll results for the final operator summary.
type Report struct {
	Results []StopResult `json:"results"`
}

// Clean reports whether every service stopped without escalation.
func (r Report) Clean() bool {
	for _, res := range r.Results {
		if res.Outcome == OutcomeKilled || res.Outcome == OutcomeTimeout {
			return false
		}
	}
	return true
}

// Count returns how many results carry the given outcome.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
