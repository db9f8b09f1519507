package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/telinsights/telrun/internal/process"
)

// Supervised is the slice of the supervisor the monitor needs: snapshots,
// liveness handles, and the single synchronized entry point for probe
// outcomes. The monitor never mutates a handle directly.
type Supervised interface {
	Status() []process.Status
	Handle(name string) (*process.Handle, error)
	ObserveProbe(name string, ok bool, threshold int) (process.State, bool, error)
}

// Config tunes the polling loop.
type Config struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	Threshold    int
}

// Monitor polls every Running/Unhealthy service. Probes for distinct
// services run concurrently so one stalled endpoint cannot delay the rest;
// an in-flight guard keeps at most one probe per service. The monitor only
// surfaces conditions; it never restarts anything.
type Monitor struct {
	sup    Supervised
	cfg    Config
	log    *slog.Logger
	client *http.Client

	mu       sync.Mutex
	inflight map[string]bool
}

// New builds a monitor with defaults filled in.
func New(sup Supervised, cfg Config, log *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		sup:      sup,
		cfg:      cfg,
		log:      log,
		client:   &http.Client{Timeout: cfg.ProbeTimeout},
		inflight: make(map[string]bool),
	}
}

// Run polls until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.tick(ctx)
		}
	}
}

// tick issues one probe round. It returns once all probes are dispatched,
// not once they complete.
func (m *Monitor) tick(ctx context.Context) {
	for _, st := range m.sup.Status() {
		if !probeable(st) || !m.begin(st.Name) {
			continue
		}
		go func(st process.Status) {
			defer m.end(st.Name)
			ok := m.probe(ctx, st)
			if _, _, err := m.sup.ObserveProbe(st.Name, ok, m.cfg.Threshold); err != nil {
				m.log.Debug("probe result dropped", "service", st.Name, "error", err)
			}
		}(st)
	}
}

// probe checks OS-level liveness, then the declared readiness endpoint when
// one exists. A service without a health address is healthy if alive.
func (m *Monitor) probe(ctx context.Context, st process.Status) bool {
	h, err := m.sup.Handle(st.Name)
	if err != nil || !h.Alive() {
		return false
	}
	if st.HealthAddr == "" {
		return true
	}
	pctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pctx, http.MethodGet, st.HealthAddr, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (m *Monitor) begin(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[name] {
		return false
	}
	m.inflight[name] = true
	return true
}

func (m *Monitor) end(name string) {
	m.mu.Lock()
	delete(m.inflight, name)
	m.mu.Unlock()
}

func probeable(st process.Status) bool {
	return st.Is(process.StateRunning) || st.Is(process.StateUnhealthy)
}
