package telrun

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telinsights/telrun/internal/config"
	"github.com/telinsights/telrun/internal/health"
	"github.com/telinsights/telrun/internal/journal"
	"github.com/telinsights/telrun/internal/metrics"
	"github.com/telinsights/telrun/internal/preflight"
	"github.com/telinsights/telrun/internal/process"
	"github.com/telinsights/telrun/internal/service"
	"github.com/telinsights/telrun/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Descriptor = service.Descriptor

type Status = process.Status

type State = process.State

type Report = supervisor.Report

type StopResult = supervisor.StopResult

type PreflightReport = preflight.Report

type Config = config.Config

type Resolver = config.Resolver

var ErrUnknownService = service.ErrUnknownService

var ErrShuttingDown = supervisor.ErrShuttingDown

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.

type Supervisor struct{ inner *supervisor.Supervisor }

// New builds a supervisor over the given descriptors rooted at root.
func New(root string, descs []Descriptor, log *slog.Logger) (*Supervisor, error) {
	res, err := config.NewResolver(root)
	if err != nil {
		return nil, err
	}
	reg, err := service.NewRegistry(descs...)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	inner := supervisor.New(reg, res.ChildEnv, supervisor.Config{
		Stagger:     cfg.Supervisor.Stagger,
		StopTimeout: cfg.Supervisor.StopTimeout,
		KillGrace:   cfg.Supervisor.KillGrace,
		Capture:     cfg.Capture,
	}, log, nil)
	return &Supervisor{inner: inner}, nil
}

func (s *Supervisor) Start(name string) (Status, error) { return s.inner.Start(name) }
func (s *Supervisor) StartAll(ctx context.Context) []Status {
	return s.inner.StartAll(ctx)
}
func (s *Supervisor) Stop(name string, wait time.Duration) (Status, error) {
	return s.inner.Stop(name, wait)
}
func (s *Supervisor) Restart(name string) (Status, error) { return s.inner.Restart(name) }
func (s *Supervisor) StopAll(wait time.Duration) Report   { return s.inner.StopAll(wait) }
func (s *Supervisor) KillAll()                            { s.inner.KillAll() }
func (s *Supervisor) Status() []Status                    { return s.inner.Status() }
func (s *Supervisor) Service(name string) (Status, error) { return s.inner.Service(name) }
func (s *Supervisor) Close()                              { s.inner.Close() }

// Monitor facade

type MonitorConfig = health.Config

func (s *Supervisor) MonitorHealth(ctx context.Context, cfg MonitorConfig, log *slog.Logger) {
	health.New(s.inner, cfg, log).Run(ctx)
}

// DefaultServices returns the standard pipeline descriptors for root.
func DefaultServices(root string) []Descriptor { return service.Defaults(root) }

// Preflight runs the environment gate for the project at root.
func Preflight(ctx context.Context, root string) (PreflightReport, error) {
	res, err := config.NewResolver(root)
	if err != nil {
		return PreflightReport{}, err
	}
	return preflight.New(res, config.Default().Runtime).RunAll(ctx), nil
}

// Journal facade

type Journal = journal.Journal

type Event = journal.Event

func OpenJournal(dsn string) (*Journal, error) { return journal.Open(dsn) }

// RegisterMetrics registers supervisor metrics on r (nil means the default
// registerer).
func RegisterMetrics(r prometheus.Registerer) error {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	return metrics.Register(r)
}
