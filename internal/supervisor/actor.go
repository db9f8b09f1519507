package supervisor

import (
	"context"
	"strconv"
	"time"

	"github.com/telinsights/telrun/internal/journal"
	"github.com/telinsights/telrun/internal/metrics"
	"github.com/telinsights/telrun/internal/process"
)

// ctrlType enumerates control message kinds handled per service slot.
type ctrlType int

const (
	ctrlStart ctrlType = iota
	ctrlStop
	ctrlRestart
)

// ctrlMsg serializes lifecycle operations for one slot.
type ctrlMsg struct {
	typ   ctrlType
	wait  time.Duration
	reply chan ctrlReply
}

type ctrlReply struct {
	status process.Status
	err    error
}

// send posts a control message and waits for the slot goroutine's reply.
func (s *Supervisor) send(e *entry, msg ctrlMsg) (process.Status, error) {
	msg.reply = make(chan ctrlReply, 1)
	e.ctrl <- msg
	rep := <-msg.reply
	return rep.status, rep.err
}

// runEntry is the single writer for one service slot. Every spawn, stop and
// restart for the slot happens here, in arrival order.
func (s *Supervisor) runEntry(ctx context.Context, e *entry) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-e.ctrl:
			var rep ctrlReply
			switch msg.typ {
			case ctrlStart:
				rep = s.doStart(e)
			case ctrlStop:
				rep.err = s.doStop(e, msg.wait)
				rep.status = e.current().Snapshot()
			case ctrlRestart:
				rep = s.doRestart(e, msg.wait)
			}
			msg.reply <- rep
		}
	}
}

// doStart spawns the slot's service. A handle that already finished is
// replaced by a fresh identity carrying the same restart count; an alive
// handle makes the request a no-op.
func (s *Supervisor) doStart(e *entry) ctrlReply {
	h := e.current()
	snap := h.Snapshot()
	switch {
	case snap.Is(process.StateStarting) || snap.Is(process.StateRunning) ||
		snap.Is(process.StateUnhealthy) || snap.Is(process.StateStopping):
		return ctrlReply{status: snap}
	case snap.Is(process.StateStopped) || snap.Is(process.StateFailed):
		h = process.NewHandle(e.desc, h.Restarts())
		e.swap(h)
	}
	return ctrlReply{status: s.spawn(e, h)}
}

// spawn performs one spawn attempt and the associated bookkeeping.
func (s *Supervisor) spawn(e *entry, h *process.Handle) process.Status {
	name := e.desc.Name
	env, err := s.env(e.desc.Env)
	if err != nil {
		s.log.Error("environment build failed", "service", name, "error", err)
		env = nil
	}
	h.SetOnExit(s.onExit)
	if err := h.Spawn(env, s.cfg.Capture); err != nil {
		s.log.Error("spawn failed", "service", name, "error", err)
		metrics.IncSpawnFailure(name)
		s.record(name, journal.KindSpawnFailed, err.Error())
		s.setStateMetric(name, process.StateFailed.String())
		return h.Snapshot()
	}
	snap := h.Snapshot()
	s.log.Info("service started", "service", name, "pid", snap.PID)
	metrics.IncStart(name)
	s.record(name, journal.KindSpawn, "")
	s.setStateMetric(name, snap.State)
	s.updateRunning()
	return snap
}

// doStop terminates the slot's process, waiting up to wait before SIGKILL.
func (s *Supervisor) doStop(e *entry, wait time.Duration) error {
	h := e.current()
	snap := h.Snapshot()
	if snap.Is(process.StateStopped) || snap.Is(process.StateFailed) {
		return nil
	}
	name := e.desc.Name
	s.log.Info("stopping service", "service", name, "timeout", wait)
	s.record(name, journal.KindStopping, "")
	err := h.Stop(wait, s.cfg.KillGrace)
	after := h.Snapshot()
	metrics.IncStop(name)
	s.setStateMetric(name, after.State)
	s.updateRunning()
	if after.ForceKilled {
		s.log.Warn("service killed after timeout", "service", name)
		s.record(name, journal.KindKilled, "")
	} else {
		s.log.Info("service stopped", "service", name)
		s.record(name, journal.KindStopped, "")
	}
	return err
}

// doRestart replaces the slot's process identity: stop, then spawn a fresh
// handle with the restart count advanced by one.
func (s *Supervisor) doRestart(e *entry, wait time.Duration) ctrlReply {
	h := e.current()
	if err := s.doStop(e, wait); err != nil {
		return ctrlReply{status: h.Snapshot(), err: err}
	}
	next := process.NewHandle(e.desc, h.Restarts()+1)
	e.swap(next)
	metrics.IncRestart(e.desc.Name)
	return ctrlReply{status: s.spawn(e, next)}
}

// onExit runs from a handle's reaper when its process exits for any reason.
func (s *Supervisor) onExit(st process.Status) {
	code := -1
	if st.ExitCode != nil {
		code = *st.ExitCode
	}
	if st.Is(process.StateFailed) {
		s.log.Error("service exited", "service", st.Name, "exit_code", code)
	} else {
		s.log.Info("service exited", "service", st.Name, "exit_code", code)
	}
	s.record(st.Name, journal.KindExit, st.State+" exit_code="+strconv.Itoa(code))
	s.setStateMetric(st.Name, st.State)
	s.updateRunning()
}
