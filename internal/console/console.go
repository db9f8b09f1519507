package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/telinsights/telrun/internal/logger"
	"github.com/telinsights/telrun/internal/process"
)

// Supervised is the slice of the supervisor the console drives.
type Supervised interface {
	Start(name string) (process.Status, error)
	Stop(name string, timeout time.Duration) (process.Status, error)
	Restart(name string) (process.Status, error)
	Status() []process.Status
}

// Controller drives the interactive prompt. It never shuts the tree down
// itself: quit and EOF simply end Run, and the caller performs the shared
// shutdown path.
type Controller struct {
	sup         Supervised
	capture     logger.Capture
	stopTimeout time.Duration
	in          io.Reader
	out         io.Writer
}

func New(sup Supervised, capture logger.Capture, stopTimeout time.Duration, in io.Reader, out io.Writer) *Controller {
	return &Controller{sup: sup, capture: capture, stopTimeout: stopTimeout, in: in, out: out}
}

// Run reads commands until quit, EOF, or context cancellation. Bad input
// prints usage and continues; only quit/EOF end the loop.
func (c *Controller) Run(ctx context.Context) error {
	sc := bufio.NewScanner(c.in)
	lines := make(chan string)
	done := make(chan struct{})
	go func() {
		defer close(lines)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	for {
		fmt.Fprint(c.out, "telrun> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			if line == "" {
				continue
			}
			cmd, err := ParseCommand(line)
			if err != nil {
				fmt.Fprintf(c.out, "%v\n%s\n", err, Usage)
				continue
			}
			if cmd.Verb == VerbQuit {
				return nil
			}
			c.dispatch(cmd)
		}
	}
}

func (c *Controller) dispatch(cmd Command) {
	switch cmd.Verb {
	case VerbStart:
		c.report(c.sup.Start(cmd.Arg))
	case VerbStop:
		c.report(c.sup.Stop(cmd.Arg, c.stopTimeout))
	case VerbRestart:
		c.report(c.sup.Restart(cmd.Arg))
	case VerbStatus:
		RenderStatus(c.out, c.sup.Status())
	case VerbLogs:
		stdout, stderr := c.capture.Paths(cmd.Arg)
		fmt.Fprintf(c.out, "stdout: %s\nstderr: %s\n", stdout, stderr)
	}
}

func (c *Controller) report(st process.Status, err error) {
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%-18s %s\n", st.Name, colorState(st.State))
}

// RenderStatus prints a fixed-width state table.
func RenderStatus(w io.Writer, sts []process.Status) {
	fmt.Fprintf(w, "%-18s %-10s %-7s %-9s %s\n", "SERVICE", "STATE", "PID", "RESTARTS", "SINCE")
	for _, st := range sts {
		pid := "-"
		if st.PID > 0 {
			pid = fmt.Sprintf("%d", st.PID)
		}
		since := "-"
		if !st.StartedAt.IsZero() {
			since = st.StartedAt.Format("15:04:05")
		}
		fmt.Fprintf(w, "%-18s %s %-7s %-9d %s\n", st.Name, colorState(st.State), pid, st.Restarts, since)
	}
}

func colorState(state string) string {
	switch state {
	case process.StateRunning.String():
		return color.GreenString("%-10s", state)
	case process.StateUnhealthy.String(), process.StateStarting.String():
		return color.YellowString("%-10s", state)
	case process.StateFailed.String():
		return color.RedString("%-10s", state)
	default:
		return fmt.Sprintf("%-10s", state)
	}
}
