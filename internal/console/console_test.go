package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/telinsights/telrun/internal/logger"
	"github.com/telinsights/telrun/internal/process"
)

// scriptedSup records calls and replies with canned snapshots.
type scriptedSup struct {
	mu    sync.Mutex
	calls []string
}

func (s *scriptedSup) note(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *scriptedSup) snapshot(name, state string) process.Status {
	return process.Status{Name: name, State: state}
}

func (s *scriptedSup) Start(name string) (process.Status, error) {
	s.note("start " + name)
	return s.snapshot(name, process.StateRunning.String()), nil
}

func (s *scriptedSup) Stop(name string, _ time.Duration) (process.Status, error) {
	s.note("stop " + name)
	return s.snapshot(name, process.StateStopped.String()), nil
}

func (s *scriptedSup) Restart(name string) (process.Status, error) {
	s.note("restart " + name)
	return s.snapshot(name, process.StateRunning.String()), nil
}

func (s *scriptedSup) Status() []process.Status {
	s.note("status")
	return []process.Status{s.snapshot("aggregator", process.StateRunning.String())}
}

func runConsole(t *testing.T, input string) (*scriptedSup, string) {
	t.Helper()
	sup := &scriptedSup{}
	var out bytes.Buffer
	ctl := New(sup, logger.Capture{Dir: "/logs"}, time.Second, strings.NewReader(input), &out)
	if err := ctl.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return sup, out.String()
}

func TestConsoleDispatch(t *testing.T) {
	sup, out := runConsole(t, "start aggregator\nstop alerting\nrestart aggregator\nstatus\nquit\n")
	want := []string{"start aggregator", "stop alerting", "restart aggregator", "status"}
	if strings.Join(sup.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls %v, want %v", sup.calls, want)
	}
	if !strings.Contains(out, "SERVICE") {
		t.Fatalf("status table missing: %q", out)
	}
}

func TestConsoleUnknownInputPrintsUsageAndContinues(t *testing.T) {
	sup, out := runConsole(t, "bogus\nstart aggregator\nquit\n")
	if !strings.Contains(out, "commands:") {
		t.Fatalf("usage not printed: %q", out)
	}
	if len(sup.calls) != 1 || sup.calls[0] != "start aggregator" {
		t.Fatalf("loop must continue after bad input: %v", sup.calls)
	}
}

func TestConsoleEOFEndsLoop(t *testing.T) {
	sup, _ := runConsole(t, "start aggregator\n")
	if len(sup.calls) != 1 {
		t.Fatalf("calls: %v", sup.calls)
	}
}

func TestConsoleLogsShowsCapturePaths(t *testing.T) {
	_, out := runConsole(t, "logs aggregator\nquit\n")
	if !strings.Contains(out, "aggregator.stdout.log") || !strings.Contains(out, "aggregator.stderr.log") {
		t.Fatalf("capture paths missing: %q", out)
	}
}

func TestConsoleContextCancellation(t *testing.T) {
	sup := &scriptedSup{}
	var out bytes.Buffer
	// A pipe-like blocking reader: nothing ever arrives.
	blocked, _ := neverReader()
	ctl := New(sup, logger.Capture{}, time.Second, blocked, &out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctl.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("cancelled run must return the context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
}

// neverReader blocks forever; the returned closer unblocks it.
func neverReader() (io.Reader, io.Closer) {
	r, w := io.Pipe()
	return r, w
}
