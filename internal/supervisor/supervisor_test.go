package supervisor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telinsights/telrun/internal/process"
	"github.com/telinsights/telrun/internal/service"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

func newTestSupervisor(t *testing.T, descs ...service.Descriptor) *Supervisor {
	t.Helper()
	reg, err := service.NewRegistry(descs...)
	require.NoError(t, err)
	env := func(extra []string) ([]string, error) { return nil, nil }
	s := New(reg, env, Config{
		Stagger:     10 * time.Millisecond,
		StopTimeout: 2 * time.Second,
		KillGrace:   time.Second,
	}, nil, nil)
	t.Cleanup(func() {
		s.StopAll(time.Second)
		s.Close()
	})
	return s
}

func TestStartUnknownService(t *testing.T) {
	s := newTestSupervisor(t, service.Descriptor{Name: "a", Command: "sleep 1", StartupDelay: time.Millisecond})
	_, err := s.Start("nope")
	require.ErrorIs(t, err, service.ErrUnknownService)
	_, err = s.Stop("nope", time.Second)
	require.ErrorIs(t, err, service.ErrUnknownService)
}

func TestStartStopLifecycle(t *testing.T) {
	requireUnix(t)
	s := newTestSupervisor(t, service.Descriptor{Name: "a", Command: "sleep 5", StartupDelay: time.Millisecond})

	st, err := s.Start("a")
	require.NoError(t, err)
	require.True(t, st.Is(process.StateRunning))
	require.Greater(t, st.PID, 0)

	// Starting an alive service is a no-op returning the live snapshot.
	again, err := s.Start("a")
	require.NoError(t, err)
	require.Equal(t, st.PID, again.PID)

	st, err = s.Stop("a", 2*time.Second)
	require.NoError(t, err)
	require.True(t, st.Is(process.StateStopped))
	require.False(t, st.ForceKilled)

	// Stopping a terminal service is a successful no-op.
	_, err = s.Stop("a", time.Second)
	require.NoError(t, err)
}

func TestSpawnFailureIsDataNotError(t *testing.T) {
	s := newTestSupervisor(t, service.Descriptor{Name: "bad", Command: "/nonexistent-binary-xyz", StartupDelay: time.Millisecond})
	st, err := s.Start("bad")
	require.NoError(t, err, "spawn failure must come back as a Failed snapshot")
	require.True(t, st.Is(process.StateFailed))
	require.NotEmpty(t, st.SpawnError)
}

func TestStartAllOrderAndIsolation(t *testing.T) {
	requireUnix(t)
	s := newTestSupervisor(t,
		service.Descriptor{Name: "a", Command: "sleep 5", StartupDelay: 10 * time.Millisecond},
		service.Descriptor{Name: "bad", Command: "/nonexistent-binary-xyz", StartupDelay: 10 * time.Millisecond},
		service.Descriptor{Name: "c", Command: "sleep 5", StartupDelay: 10 * time.Millisecond},
	)

	out := s.StartAll(context.Background())
	require.Len(t, out, 3, "one spawn failure must not stop the sequence")
	require.Equal(t, []string{"a", "bad", "c"}, []string{out[0].Name, out[1].Name, out[2].Name})
	require.True(t, out[0].Is(process.StateRunning))
	require.True(t, out[1].Is(process.StateFailed))
	require.True(t, out[2].Is(process.StateRunning))
}

func TestStartAllHonorsCancellation(t *testing.T) {
	requireUnix(t)
	s := newTestSupervisor(t,
		service.Descriptor{Name: "a", Command: "sleep 5", StartupDelay: 5 * time.Second},
		service.Descriptor{Name: "b", Command: "sleep 5", StartupDelay: 5 * time.Second},
	)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	out := s.StartAll(ctx)
	require.Len(t, out, 1, "cancellation during the stagger must stop further launches")
}

func TestRestartAdvancesIdentity(t *testing.T) {
	requireUnix(t)
	s := newTestSupervisor(t, service.Descriptor{Name: "a", Command: "sleep 5", StartupDelay: time.Millisecond})

	first, err := s.Start("a")
	require.NoError(t, err)
	require.Equal(t, 0, first.Restarts)

	second, err := s.Restart("a")
	require.NoError(t, err)
	require.True(t, second.Is(process.StateRunning))
	require.Equal(t, 1, second.Restarts)
	require.NotEqual(t, first.PID, second.PID)
}

func TestRestartEscapesTerminalState(t *testing.T) {
	requireUnix(t)
	s := newTestSupervisor(t, service.Descriptor{Name: "a", Command: "sh -c 'exit 3'", StartupDelay: time.Millisecond})

	_, err := s.Start("a")
	require.NoError(t, err)
	h, err := s.Handle("a")
	require.NoError(t, err)
	require.Equal(t, 3, h.WaitExit())

	st, err := s.Service("a")
	require.NoError(t, err)
	require.True(t, st.Is(process.StateFailed))

	st, err = s.Restart("a")
	require.NoError(t, err)
	require.True(t, st.Is(process.StateStopped) || st.Is(process.StateFailed) || st.Is(process.StateRunning))
	require.Equal(t, 1, st.Restarts)
}

func TestStopAllReport(t *testing.T) {
	requireUnix(t)
	s := newTestSupervisor(t,
		service.Descriptor{Name: "a", Command: "sleep 5", StartupDelay: time.Millisecond},
		service.Descriptor{Name: "stubborn", Command: "sh -c 'trap \"\" TERM; sleep 10'", StartupDelay: time.Millisecond},
		service.Descriptor{Name: "never-started", Command: "sleep 5", StartupDelay: time.Millisecond},
	)
	_, err := s.Start("a")
	require.NoError(t, err)
	_, err = s.Start("stubborn")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond) // let the trap install

	rep := s.StopAll(300 * time.Millisecond)
	require.Len(t, rep.Results, 3)

	byName := map[string]StopResult{}
	for _, r := range rep.Results {
		byName[r.Name] = r
	}
	require.Equal(t, OutcomeStopped, byName["a"].Outcome)
	require.Equal(t, OutcomeKilled, byName["stubborn"].Outcome)
	require.Equal(t, OutcomeAlreadyTerminal, byName["never-started"].Outcome)
	// A slot that never spawned must not linger in Pending after shutdown.
	require.True(t, byName["never-started"].Status.Is(process.StateStopped))

	// Every slot must end terminal regardless of outcome.
	for _, st := range s.Status() {
		require.True(t, st.Is(process.StateStopped) || st.Is(process.StateFailed), "%s left in %s", st.Name, st.State)
	}
	require.False(t, rep.Clean())
	require.Equal(t, 1, rep.Count(OutcomeKilled))

	// The supervisor rejects new work once shutdown has begun.
	_, err = s.Start("a")
	require.ErrorIs(t, err, ErrShuttingDown)
	_, err = s.Restart("a")
	require.ErrorIs(t, err, ErrShuttingDown)
}

func TestObserveProbeTransitions(t *testing.T) {
	requireUnix(t)
	s := newTestSupervisor(t, service.Descriptor{Name: "a", Command: "sleep 5", StartupDelay: time.Millisecond})
	_, err := s.Start("a")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		state, transitioned, err := s.ObserveProbe("a", false, 3)
		require.NoError(t, err)
		require.False(t, transitioned)
		require.Equal(t, process.StateRunning, state)
	}
	state, transitioned, err := s.ObserveProbe("a", false, 3)
	require.NoError(t, err)
	require.True(t, transitioned)
	require.Equal(t, process.StateUnhealthy, state)

	state, transitioned, err = s.ObserveProbe("a", true, 3)
	require.NoError(t, err)
	require.True(t, transitioned)
	require.Equal(t, process.StateRunning, state)
}

func TestKillAllImmediate(t *testing.T) {
	requireUnix(t)
	s := newTestSupervisor(t, service.Descriptor{Name: "stubborn", Command: "sh -c 'trap \"\" TERM; sleep 10'", StartupDelay: time.Millisecond})
	_, err := s.Start("stubborn")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.KillAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("KillAll must not block")
	}

	h, err := s.Handle("stubborn")
	require.NoError(t, err)
	require.NotEqual(t, 0, h.WaitExit(), "SIGKILL exit must be non-zero")
}
