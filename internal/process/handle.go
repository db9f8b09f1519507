package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/telinsights/telrun/internal/logger"
	"github.com/telinsights/telrun/internal/service"
)

// ErrShutdownTimeout is returned when a process survives both the graceful
// wait and the forced-kill grace period. The handle is still marked terminal
// so shutdown never hangs on it.
var ErrShutdownTimeout = errors.New("process did not exit within shutdown timeout")

// Handle is the supervisor's record of one managed process identity.
// It is created per spawn attempt; a restart allocates a fresh Handle under
// the same service name. All fields are guarded by mu; the reaper goroutine
// and the health monitor mutate state only through the methods below.
type Handle struct {
	desc service.Descriptor

	mu            sync.Mutex
	cmd           *exec.Cmd
	state         State
	pid           int
	startedAt     time.Time
	stoppedAt     time.Time
	exited        bool
	exitCode      int
	spawnErr      error
	restarts      int
	probeFailures int
	stopRequested bool
	forceKilled   bool
	waitDone      chan struct{}
	outW, errW    io.WriteCloser
	onExit        func(Status)
}

// NewHandle creates a Pending handle. restarts carries the logical slot's
// restart count forward across identities.
func NewHandle(desc service.Descriptor, restarts int) *Handle {
	return &Handle{desc: desc, state: StatePending, restarts: restarts}
}

// Descriptor returns the immutable service descriptor.
func (h *Handle) Descriptor() service.Descriptor { return h.desc }

// SetOnExit registers a callback invoked once from the reaper after the
// process exits. Must be called before Spawn.
func (h *Handle) SetOnExit(f func(Status)) {
	h.mu.Lock()
	h.onExit = f
	h.mu.Unlock()
}

// Spawn starts the descriptor's command with the given environment. On an
// OS-level start failure the handle transitions to Failed carrying the error;
// the error is also returned so callers can report it, but a failed spawn is
// data, not a reason to abort sibling launches.
func (h *Handle) Spawn(env []string, capture logger.Capture) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StatePending {
		return fmt.Errorf("service %s: handle already spawned (state %s)", h.desc.Name, h.state)
	}
	h.state = StateStarting

	cmd := h.desc.BuildCommand()
	if h.desc.WorkDir != "" {
		cmd.Dir = h.desc.WorkDir
	}
	if len(env) > 0 {
		cmd.Env = env
	}
	setSysProcAttr(cmd)

	if capture.Dir != "" {
		_ = os.MkdirAll(capture.Dir, 0o750)
		h.outW, h.errW = capture.Writers(h.desc.Name)
	}
	if h.outW != nil {
		cmd.Stdout = h.outW
		cmd.Stderr = h.errW
	} else {
		null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		cmd.Stdout = null
		cmd.Stderr = null
	}

	if err := cmd.Start(); err != nil {
		h.state = StateFailed
		h.spawnErr = err
		h.stoppedAt = time.Now()
		h.closeWritersLocked()
		return fmt.Errorf("spawn %s: %w", h.desc.Name, err)
	}

	h.cmd = cmd
	h.pid = cmd.Process.Pid
	h.startedAt = time.Now()
	h.state = StateRunning
	h.waitDone = make(chan struct{})
	go h.reap(cmd)
	return nil
}

// reap waits for the process to exit and finalizes the handle. It is the
// only goroutine that calls cmd.Wait, so Stop must wait on waitDone instead.
func (h *Handle) reap(cmd *exec.Cmd) {
	err := cmd.Wait()

	h.mu.Lock()
	h.exited = true
	h.exitCode = exitCodeFrom(cmd, err)
	h.stoppedAt = time.Now()
	if h.stopRequested || h.exitCode == 0 {
		h.state = StateStopped
	} else {
		h.state = StateFailed
	}
	h.closeWritersLocked()
	close(h.waitDone)
	onExit := h.onExit
	snap := h.snapshotLocked()
	h.mu.Unlock()

	if onExit != nil {
		onExit(snap)
	}
}

// Stop requests graceful termination and escalates to SIGKILL after timeout.
// Already-terminal handles are a no-op returning nil. The call always
// resolves within timeout plus grace.
func (h *Handle) Stop(timeout, grace time.Duration) error {
	h.mu.Lock()
	if h.state.Terminal() {
		h.mu.Unlock()
		return nil
	}
	if h.state == StatePending {
		// Never spawned; nothing to signal.
		h.state = StateStopped
		h.stoppedAt = time.Now()
		h.mu.Unlock()
		return nil
	}
	h.stopRequested = true
	h.state = StateStopping
	pid := h.pid
	wd := h.waitDone
	h.mu.Unlock()

	terminate(pid)
	select {
	case <-wd:
		return nil
	case <-time.After(timeout):
	}

	h.mu.Lock()
	h.forceKilled = true
	h.mu.Unlock()
	forceKill(pid)
	select {
	case <-wd:
		return nil
	case <-time.After(grace):
	}

	// Unreaped even after SIGKILL. Mark terminal so shutdown cannot hang;
	// the reaper will still finalize the exit code if the kernel delivers it.
	h.mu.Lock()
	if !h.exited {
		h.state = StateStopped
		h.stoppedAt = time.Now()
	}
	h.mu.Unlock()
	return fmt.Errorf("service %s: %w", h.desc.Name, ErrShutdownTimeout)
}

// Kill sends an immediate SIGKILL to the process group. Used by the
// second-signal escalation path; it does not wait for the reaper.
func (h *Handle) Kill() {
	h.mu.Lock()
	if h.state.Terminal() || h.state == StatePending {
		if h.state == StatePending {
			h.state = StateStopped
			h.stoppedAt = time.Now()
		}
		h.mu.Unlock()
		return
	}
	h.stopRequested = true
	h.forceKilled = true
	pid := h.pid
	h.mu.Unlock()
	forceKill(pid)
}

// Alive probes whether the OS process still exists, avoiding races with
// os/exec internals by relying on the reaper's exited flag first.
func (h *Handle) Alive() bool {
	h.mu.Lock()
	exited := h.exited
	pid := h.pid
	state := h.state
	h.mu.Unlock()
	if exited || pid == 0 || !state.Alive() {
		return false
	}
	return pidAlive(pid)
}

// ObserveProbe applies one probe outcome. It mutates only the probe counter
// and the Running/Unhealthy pair and reports whether a transition occurred.
func (h *Handle) ObserveProbe(ok bool, threshold int) (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.Probeable() {
		return h.state, false
	}
	if ok {
		h.probeFailures = 0
		if h.state == StateUnhealthy {
			h.state = StateRunning
			return h.state, true
		}
		return h.state, false
	}
	h.probeFailures++
	if h.state == StateRunning && h.probeFailures >= threshold {
		h.state = StateUnhealthy
		return h.state, true
	}
	return h.state, false
}

// WaitExit blocks until the process exits or the channel is nil (never
// spawned), returning the exit code. Used by the single-service foreground
// mode to propagate the child's exit code verbatim.
func (h *Handle) WaitExit() int {
	h.mu.Lock()
	wd := h.waitDone
	h.mu.Unlock()
	if wd != nil {
		<-wd
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Restarts returns the restart count carried by this identity.
func (h *Handle) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}

// Snapshot returns a copy of the current status.
func (h *Handle) Snapshot() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Handle) snapshotLocked() Status {
	st := Status{
		Name:          h.desc.Name,
		Summary:       h.desc.Summary,
		State:         h.state.String(),
		PID:           h.pid,
		Port:          h.desc.Port,
		HealthAddr:    h.desc.HealthAddr,
		StartedAt:     h.startedAt,
		StoppedAt:     h.stoppedAt,
		Restarts:      h.restarts,
		ProbeFailures: h.probeFailures,
		ForceKilled:   h.forceKilled,
	}
	if h.exited {
		code := h.exitCode
		st.ExitCode = &code
	}
	if h.spawnErr != nil {
		st.SpawnError = h.spawnErr.Error()
	}
	return st
}

func (h *Handle) closeWritersLocked() {
	if h.outW != nil {
		_ = h.outW.Close()
		h.outW = nil
	}
	if h.errW != nil {
		_ = h.errW.Close()
		h.errW = nil
	}
}
