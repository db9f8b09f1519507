package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telinsights/telrun/internal/journal"
	"github.com/telinsights/telrun/internal/logger"
	"github.com/telinsights/telrun/internal/metrics"
	"github.com/telinsights/telrun/internal/process"
	"github.com/telinsights/telrun/internal/service"
)

// ErrShuttingDown rejects lifecycle requests once StopAll has begun.
var ErrShuttingDown = errors.New("supervisor is shutting down")

// EnvFunc builds the child environment for a spawn, merging per-service
// overrides last.
type EnvFunc func(extra []string) ([]string, error)

// Config tunes lifecycle handling.
type Config struct {
	Stagger     time.Duration  // fallback inter-launch delay
	StopTimeout time.Duration  // default graceful wait
	KillGrace   time.Duration  // reap window after SIGKILL
	Capture     logger.Capture // child stdout/stderr destination
}

// Supervisor owns the lifecycle of every tracked process. All mutation of a
// service's handle goes through that service's control goroutine, so two
// callers can never race on the same slot; reads use immutable snapshots.
type Supervisor struct {
	cfg Config
	reg *service.Registry
	env EnvFunc
	log *slog.Logger
	rec journal.Recorder

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shuttingDown atomic.Bool
}

// entry is one service slot: the live handle plus its control channel.
type entry struct {
	desc   service.Descriptor
	mu     sync.Mutex
	handle *process.Handle
	ctrl   chan ctrlMsg
}

func (e *entry) current() *process.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle
}

func (e *entry) swap(h *process.Handle) {
	e.mu.Lock()
	e.handle = h
	e.mu.Unlock()
}

// New builds a supervisor over the registry with one Pending handle per
// service and starts the per-service control goroutines.
func New(reg *service.Registry, env EnvFunc, cfg Config, log *slog.Logger, rec journal.Recorder) *Supervisor {
	if cfg.Stagger <= 0 {
		cfg.Stagger = 2 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		cfg:     cfg,
		reg:     reg,
		env:     env,
		log:     log,
		rec:     rec,
		entries: make(map[string]*entry, reg.Len()),
		order:   reg.Names(),
		cancel:  cancel,
	}
	for _, d := range reg.Descriptors() {
		e := &entry{
			desc:   d,
			handle: process.NewHandle(d, 0),
			ctrl:   make(chan ctrlMsg, 16),
		}
		s.entries[d.Name] = e
		s.wg.Add(1)
		go s.runEntry(ctx, e)
	}
	return s
}

// Close stops the control goroutines. It does not stop managed processes;
// call StopAll first for a graceful teardown.
func (s *Supervisor) Close() {
	s.cancel()
	s.wg.Wait()
}

// ShuttingDown reports whether StopAll has begun.
func (s *Supervisor) ShuttingDown() bool { return s.shuttingDown.Load() }

func (s *Supervisor) lookup(name string) (*entry, error) {
	s.mu.RLock()
	e := s.entries[name]
	s.mu.RUnlock()
	if e == nil {
		return nil, fmt.Errorf("%w: %q", service.ErrUnknownService, name)
	}
	return e, nil
}

// Start spawns the named service. An unknown name is the only error path;
// an OS-level spawn failure is returned as a Failed snapshot, leaving
// sibling operations unaffected.
func (s *Supervisor) Start(name string) (process.Status, error) {
	e, err := s.lookup(name)
	if err != nil {
		return process.Status{}, err
	}
	if s.shuttingDown.Load() {
		return process.Status{}, ErrShuttingDown
	}
	return s.send(e, ctrlMsg{typ: ctrlStart})
}

// StartAll issues one spawn attempt per registered service in registration
// order, separated by each descriptor's startup delay. It returns after the
// last attempt has been issued; readiness is the health monitor's concern.
func (s *Supervisor) StartAll(ctx context.Context) []process.Status {
	names := s.reg.Names()
	out := make([]process.Status, 0, len(names))
	for i, name := range names {
		if ctx.Err() != nil || s.shuttingDown.Load() {
			break
		}
		st, err := s.Start(name)
		if err != nil {
			// Registry names cannot be unknown here; only shutdown races land us here.
			break
		}
		out = append(out, st)
		if i == len(names)-1 {
			break
		}
		delay := s.entries[name].desc.StartupDelay
		if delay <= 0 {
			delay = s.cfg.Stagger
		}
		select {
		case <-ctx.Done():
			return out
		case <-time.After(delay):
		}
	}
	return out
}

// Stop gracefully terminates the named service, escalating to SIGKILL after
// timeout. Stopping an already terminal service is a successful no-op.
func (s *Supervisor) Stop(name string, timeout time.Duration) (process.Status, error) {
	e, err := s.lookup(name)
	if err != nil {
		return process.Status{}, err
	}
	if timeout <= 0 {
		timeout = s.cfg.StopTimeout
	}
	return s.send(e, ctrlMsg{typ: ctrlStop, wait: timeout})
}

// Restart stops the named service and spawns a new process identity under
// the same slot, incrementing its restart count.
func (s *Supervisor) Restart(name string) (process.Status, error) {
	e, err := s.lookup(name)
	if err != nil {
		return process.Status{}, err
	}
	if s.shuttingDown.Load() {
		return process.Status{}, ErrShuttingDown
	}
	return s.send(e, ctrlMsg{typ: ctrlRestart, wait: s.cfg.StopTimeout})
}

// StopAll stops every tracked service concurrently and reports how each one
// went down. Subsequent Start/Restart requests are rejected.
func (s *Supervisor) StopAll(timeout time.Duration) Report {
	s.shuttingDown.Store(true)
	if timeout <= 0 {
		timeout = s.cfg.StopTimeout
	}
	names := s.reg.Names()
	results := make([]StopResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		e := s.entries[name]
		wg.Add(1)
		go func(i int, name string, e *entry) {
			defer wg.Done()
			before := e.current().Snapshot()
			if before.Is(process.StateStopped) || before.Is(process.StateFailed) {
				results[i] = StopResult{Name: name, Outcome: OutcomeAlreadyTerminal, Status: before}
				return
			}
			// A never-started slot still goes through the stop path so its
			// handle lands in Stopped rather than lingering in Pending.
			_, err := s.send(e, ctrlMsg{typ: ctrlStop, wait: timeout})
			after := e.current().Snapshot()
			switch {
			case err != nil:
				results[i] = StopResult{Name: name, Outcome: OutcomeTimeout, Status: after, Err: err}
			case before.Is(process.StatePending):
				results[i] = StopResult{Name: name, Outcome: OutcomeAlreadyTerminal, Status: after}
			case after.ForceKilled:
				results[i] = StopResult{Name: name, Outcome: OutcomeKilled, Status: after}
			default:
				results[i] = StopResult{Name: name, Outcome: OutcomeStopped, Status: after}
			}
		}(i, name, e)
	}
	wg.Wait()
	s.updateRunning()
	return Report{Results: results}
}

// KillAll force-kills every tracked process immediately. It is the
// second-signal escalation path and must never block: it bypasses the
// control goroutines and signals the (internally synchronized) handles.
func (s *Supervisor) KillAll() {
	s.shuttingDown.Store(true)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		e.current().Kill()
	}
}

// Status returns a snapshot of every slot, in registration order. It never
// blocks on lifecycle operations.
func (s *Supervisor) Status() []process.Status {
	out := make([]process.Status, 0, len(s.order))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.order {
		out = append(out, s.entries[name].current().Snapshot())
	}
	return out
}

// Service returns the snapshot for one service.
func (s *Supervisor) Service(name string) (process.Status, error) {
	e, err := s.lookup(name)
	if err != nil {
		return process.Status{}, err
	}
	return e.current().Snapshot(), nil
}

// Handle exposes the live handle for a service. The handle's methods are
// synchronized; the health monitor uses this for liveness checks and the
// single-service mode for exit propagation.
func (s *Supervisor) Handle(name string) (*process.Handle, error) {
	e, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.current(), nil
}

// ObserveProbe applies a probe outcome to the named service and performs the
// bookkeeping for any Running/Unhealthy transition. The monitor decides the
// outcome; the supervisor owns the state change.
func (s *Supervisor) ObserveProbe(name string, ok bool, threshold int) (process.State, bool, error) {
	e, err := s.lookup(name)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		metrics.IncProbeFailure(name)
	}
	state, transitioned := e.current().ObserveProbe(ok, threshold)
	if transitioned {
		s.setStateMetric(name, state.String())
		switch state {
		case process.StateUnhealthy:
			s.log.Warn("service unhealthy", "service", name, "threshold", threshold)
			s.record(name, journal.KindUnhealthy, fmt.Sprintf("%d consecutive probe failures", threshold))
		case process.StateRunning:
			s.log.Info("service recovered", "service", name)
			s.record(name, journal.KindRecovered, "")
		}
		s.updateRunning()
	}
	return state, transitioned, nil
}

func (s *Supervisor) updateRunning() {
	n := 0
	for _, st := range s.Status() {
		if st.Is(process.StateRunning) || st.Is(process.StateUnhealthy) {
			n++
		}
	}
	metrics.SetRunning(n)
}

func (s *Supervisor) record(name, kind, detail string) {
	if s.rec != nil {
		_ = s.rec.Append(context.Background(), journal.Event{Service: name, Kind: kind, Detail: detail})
	}
}

var allStateNames = func() []string {
	states := process.States()
	out := make([]string, len(states))
	for i, st := range states {
		out[i] = st.String()
	}
	return out
}()

func (s *Supervisor) setStateMetric(name, state string) {
	metrics.SetState(name, state, allStateNames)
}
