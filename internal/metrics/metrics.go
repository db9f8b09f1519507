package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "telrun",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of successful service spawns.",
		}, []string{"name"},
	)
	serviceSpawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "telrun",
			Subsystem: "service",
			Name:      "spawn_failures_total",
			Help:      "Number of spawn attempts the OS rejected.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "telrun",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of stops (graceful or kill).",
		}, []string{"name"},
	)
	serviceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "telrun",
			Subsystem: "service",
			Name:      "restarts_total",
			Help:      "Number of operator-requested restarts.",
		}, []string{"name"},
	)
	probeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "telrun",
			Subsystem: "health",
			Name:      "probe_failures_total",
			Help:      "Number of failed liveness/readiness probes.",
		}, []string{"name"},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "telrun",
			Subsystem: "service",
			Name:      "current_state",
			Help:      "Current state of services (1 = active state, 0 = inactive).",
		}, []string{"name", "state"},
	)
	runningServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "telrun",
			Subsystem: "service",
			Name:      "running",
			Help:      "Number of services currently running.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serviceStarts, serviceSpawnFailures, serviceStops, serviceRestarts,
		probeFailures, currentStates, runningServices,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving metrics from the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncStart(name string)        { serviceStarts.WithLabelValues(name).Inc() }
func IncSpawnFailure(name string) { serviceSpawnFailures.WithLabelValues(name).Inc() }
func IncStop(name string)         { serviceStops.WithLabelValues(name).Inc() }
func IncRestart(name string)      { serviceRestarts.WithLabelValues(name).Inc() }
func IncProbeFailure(name string) { probeFailures.WithLabelValues(name).Inc() }

// SetState marks the active state for a service, zeroing the others.
func SetState(name, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		currentStates.WithLabelValues(name, s).Set(v)
	}
}

// SetRunning updates the running services gauge.
func SetRunning(n int) { runningServices.Set(float64(n)) }
