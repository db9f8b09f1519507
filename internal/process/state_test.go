package process

import "testing"

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StatePending:   "pending",
		StateStarting:  "starting",
		StateRunning:   "running",
		StateUnhealthy: "unhealthy",
		StateStopping:  "stopping",
		StateStopped:   "stopped",
		StateFailed:    "failed",
	}
	for st, want := range cases {
		if got := st.String(); got != want {
			t.Fatalf("state %d: got %q want %q", int(st), got, want)
		}
	}
}

func TestStateClassification(t *testing.T) {
	if !StateStopped.Terminal() || !StateFailed.Terminal() {
		t.Fatalf("stopped/failed must be terminal")
	}
	for _, st := range []State{StatePending, StateStarting, StateRunning, StateUnhealthy, StateStopping} {
		if st.Terminal() {
			t.Fatalf("%s must not be terminal", st)
		}
	}
	if !StateRunning.Alive() || !StateUnhealthy.Alive() {
		t.Fatalf("running/unhealthy must be alive")
	}
	if StatePending.Alive() || StateStopped.Alive() {
		t.Fatalf("pending/stopped must not be alive")
	}
	if !StateRunning.Probeable() || !StateUnhealthy.Probeable() {
		t.Fatalf("running/unhealthy must be probeable")
	}
	if StateStopping.Probeable() || StateFailed.Probeable() {
		t.Fatalf("stopping/failed must not be probeable")
	}
}

func TestStatusIs(t *testing.T) {
	st := Status{Name: "x", State: StateRunning.String()}
	if !st.Is(StateRunning) || st.Is(StateFailed) {
		t.Fatalf("Is mismatch: %+v", st)
	}
}
