package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/telinsights/telrun/internal/config"
	"github.com/telinsights/telrun/internal/console"
	"github.com/telinsights/telrun/internal/database"
	"github.com/telinsights/telrun/internal/health"
	"github.com/telinsights/telrun/internal/journal"
	"github.com/telinsights/telrun/internal/logger"
	"github.com/telinsights/telrun/internal/metrics"
	"github.com/telinsights/telrun/internal/preflight"
	"github.com/telinsights/telrun/internal/process"
	"github.com/telinsights/telrun/internal/server"
	"github.com/telinsights/telrun/internal/service"
	"github.com/telinsights/telrun/internal/supervisor"
	"github.com/telinsights/telrun/pkg/client"
)

// exitError carries a specific process exit code up to main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

// command binds subcommand logic to the resolved environment. initDB is a
// seam over database.Initialize for tests; nil means the real thing.
type command struct {
	global *GlobalFlags
	out    io.Writer
	initDB func(ctx context.Context, dsn string) error
}

// env is everything the run commands need after resolution.
type env struct {
	res *config.Resolver
	cfg config.Config
	reg *service.Registry
	log *slog.Logger
}

func (c command) setup() (*env, error) {
	res, err := config.NewResolver(c.global.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	cfg, err := config.Load(c.global.ConfigPath, res)
	if err != nil {
		return nil, err
	}
	reg, err := service.FromConfigs(res.Root(), cfg.Services)
	if err != nil {
		return nil, err
	}
	return &env{
		res: res,
		cfg: cfg,
		reg: reg,
		log: logger.New(os.Stderr, cfg.Log),
	}, nil
}

// gate runs preflight and prints the report. A failed gate maps to exit
// code 1.
func (c command) gate(ctx context.Context, e *env, quiet bool) error {
	checker := preflight.New(e.res, e.cfg.Runtime)
	rep := checker.RunAll(ctx)
	if !quiet {
		for _, name := range rep.Passed {
			fmt.Fprintf(c.out, "%s %s\n", color.GreenString("ok"), name)
		}
		for _, f := range rep.Failures {
			fmt.Fprintf(c.out, "%s %s: %v\n", color.RedString("FAIL"), f.Check, f.Err)
		}
	}
	if !rep.OK() {
		return &exitError{code: 1, err: fmt.Errorf("preflight failed: %d of %d checks", len(rep.Failures), len(rep.Passed)+len(rep.Failures))}
	}
	return nil
}

// Check runs the preflight gate and exits.
func (c command) Check(flags CheckFlags) error {
	e, err := c.setup()
	if err != nil {
		return err
	}
	return c.gate(context.Background(), e, flags.Quiet)
}

// Run is the default command: gate, launch everything, supervise until a
// shutdown signal (or console quit), then tear down within the bound.
func (c command) Run(flags RunFlags) error {
	e, err := c.setup()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !flags.SkipChecks {
		if err := c.gate(ctx, e, false); err != nil {
			return err
		}
	}

	jrnl, err := journal.Open(e.cfg.Journal.DSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = jrnl.Close() }()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		e.log.Warn("metrics registration failed", "error", err)
	}

	sup := supervisor.New(e.reg, e.res.ChildEnv, supervisor.Config{
		Stagger:     e.cfg.Supervisor.Stagger,
		StopTimeout: e.cfg.Supervisor.StopTimeout,
		KillGrace:   e.cfg.Supervisor.KillGrace,
		Capture:     e.cfg.Capture,
	}, e.log, jrnl)
	defer sup.Close()

	release := watchSignals(ctx, cancel, sup, e.log)
	defer release()

	var srv *server.Server
	if e.cfg.Server.Enabled && !flags.NoServer {
		srv = server.New(e.cfg.Server.Listen, server.Options{
			Supervisor:  sup,
			Journal:     jrnl,
			StopTimeout: e.cfg.Supervisor.StopTimeout,
		})
		go func() {
			if err := srv.Start(); err != nil {
				e.log.Error("control API failed", "error", err)
			}
		}()
		e.log.Info("control API listening", "addr", e.cfg.Server.Listen)
	}

	sup.StartAll(ctx)

	mon := health.New(sup, health.Config{
		Interval:     e.cfg.Health.Interval,
		ProbeTimeout: e.cfg.Health.ProbeTimeout,
		Threshold:    e.cfg.Health.Threshold,
	}, e.log)
	go mon.Run(ctx)

	if flags.Interactive {
		ctl := console.New(sup, e.cfg.Capture, e.cfg.Supervisor.StopTimeout, os.Stdin, c.out)
		_ = ctl.Run(ctx)
		cancel()
	} else {
		<-ctx.Done()
	}

	rep := sup.StopAll(e.cfg.Supervisor.StopTimeout)
	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		scancel()
	}
	c.summarize(rep)
	return nil
}

// RunService launches one service in the foreground and propagates its exit
// code verbatim.
func (c command) RunService(name string, flags RunFlags) error {
	e, err := c.setup()
	if err != nil {
		return err
	}
	if !e.reg.Has(name) {
		return &exitError{code: 2, err: fmt.Errorf("%w: %s", service.ErrUnknownService, name)}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !flags.SkipChecks {
		if err := c.gate(ctx, e, false); err != nil {
			return err
		}
	}

	sup := supervisor.New(e.reg, e.res.ChildEnv, supervisor.Config{
		Stagger:     e.cfg.Supervisor.Stagger,
		StopTimeout: e.cfg.Supervisor.StopTimeout,
		KillGrace:   e.cfg.Supervisor.KillGrace,
		Capture:     e.cfg.Capture,
	}, e.log, nil)
	defer sup.Close()

	release := watchSignals(ctx, cancel, sup, e.log)
	defer release()

	st, err := sup.Start(name)
	if err != nil {
		return err
	}
	if st.Is(process.StateFailed) {
		return &exitError{code: 1, err: fmt.Errorf("start %s: %s", name, st.SpawnError)}
	}
	h, err := sup.Handle(name)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_, _ = sup.Stop(name, e.cfg.Supervisor.StopTimeout)
	}()
	code := h.WaitExit()
	if code != 0 {
		return &exitError{code: code, err: fmt.Errorf("%s exited with code %d", name, code)}
	}
	return nil
}

// Init scaffolds a starter telrun.toml, runs the preflight gate, and then
// performs the one-time database schema initialization. A failed gate stops
// the command before any schema work.
func (c command) Init(flags InitFlags) error {
	e, err := c.setup()
	if err != nil {
		return err
	}
	path := c.global.ConfigPath
	if path == "" {
		path = filepath.Join(e.res.Root(), "telrun.toml")
	}
	if _, err := os.Stat(path); err == nil && !flags.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTOML), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(c.out, "wrote %s\n", path)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.gate(ctx, e, false); err != nil {
		return err
	}
	settings, err := e.res.LoadSettings()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	dsn := settings["DATABASE_URL"]
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL missing from %s", e.res.SettingsPath())
	}
	initFn := c.initDB
	if initFn == nil {
		initFn = database.Initialize
	}
	if err := initFn(ctx, dsn); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "database schema initialized")
	return nil
}

// Status queries a running supervisor over the control API.
func (c command) Status(flags StatusFlags) error {
	if flags.APITimeout <= 0 {
		flags.APITimeout = 10 * time.Second
	}
	cl := client.New(client.Config{BaseURL: flags.APIUrl, Timeout: flags.APITimeout})
	ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
	defer cancel()
	if !cl.IsReachable(ctx) {
		return &exitError{code: 2, err: fmt.Errorf("supervisor not running at %s", flags.APIUrl)}
	}
	sts, err := cl.Status(ctx, flags.Name)
	if err != nil {
		return err
	}
	console.RenderStatus(c.out, toProcessStatuses(sts))
	return nil
}

// Events dumps recent journal events from a running supervisor.
func (c command) Events(flags EventsFlags) error {
	if flags.APITimeout <= 0 {
		flags.APITimeout = 10 * time.Second
	}
	cl := client.New(client.Config{BaseURL: flags.APIUrl, Timeout: flags.APITimeout})
	ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
	defer cancel()
	if !cl.IsReachable(ctx) {
		return &exitError{code: 2, err: fmt.Errorf("supervisor not running at %s", flags.APIUrl)}
	}
	evs, err := cl.Events(ctx, flags.Name, flags.Limit)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		fmt.Fprintf(c.out, "%s %-18s %-14s %s\n", ev.At.Format(time.RFC3339), ev.Service, ev.Kind, ev.Detail)
	}
	return nil
}

func (c command) summarize(rep supervisor.Report) {
	fmt.Fprintln(c.out, "shutdown summary:")
	for _, r := range rep.Results {
		line := fmt.Sprintf("  %-18s %s", r.Name, r.Outcome)
		switch r.Outcome {
		case supervisor.OutcomeTimeout:
			line = color.RedString("%s", line)
		case supervisor.OutcomeKilled:
			line = color.YellowString("%s", line)
		}
		if r.Err != nil {
			line += fmt.Sprintf(" (%v)", r.Err)
		}
		fmt.Fprintln(c.out, line)
	}
}

func toProcessStatuses(sts []client.ServiceStatus) []process.Status {
	out := make([]process.Status, 0, len(sts))
	for _, st := range sts {
		out = append(out, process.Status{
			Name:      st.Name,
			State:     st.State,
			PID:       st.PID,
			StartedAt: st.StartedAt,
			Restarts:  st.Restarts,
		})
	}
	return out
}

// exitCodeOf maps an error to the process exit code main should use.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, service.ErrUnknownService) {
		return 2
	}
	return 1
}

const defaultConfigTOML = `# telrun configuration

[supervisor]
stagger = "2s"        # delay between successive launches
stop_timeout = "10s"  # graceful wait before SIGKILL
kill_grace = "500ms"

[health]
interval = "1s"
probe_timeout = "2s"
threshold = 3

[server]
enabled = true
listen = "127.0.0.1:8090"

[journal]
dsn = ":memory:"

[runtime]
interpreter = "python3"
min_version = "3.9"

[log]
level = "info"
color = true

# Services default to the standard pipeline. Override or extend per entry:
#
# [[services]]
# name = "aggregator"
# command = "python3 -m aggregator.main"
# port = 8001
# health = "http://127.0.0.1:8001/health"
# startup_delay = "2s"
`
