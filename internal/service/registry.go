package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownService is returned for lookups of names absent from the registry.
var ErrUnknownService = errors.New("unknown service")

// Registry is the static mapping from service name to Descriptor.
// Iteration order is registration order and never changes after construction.
type Registry struct {
	order  []string
	byName map[string]Descriptor
}

// NewRegistry builds a registry from descriptors, rejecting duplicates.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if d.Name == "" {
			return nil, errors.New("service descriptor missing name")
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate service name %q", d.Name)
		}
		r.order = append(r.order, d.Name)
		r.byName[d.Name] = d
	}
	return r, nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return d, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns service names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// Len returns the number of registered services.
func (r *Registry) Len() int { return len(r.order) }

// Defaults returns the built-in pipeline registry. Launch order follows the
// data flow: ingestion first, the notification front-end last.
func Defaults(root string) []Descriptor {
	delay := 2 * time.Second
	return []Descriptor{
		{
			Name:         "aggregator",
			Summary:      "Telegram message aggregator",
			Command:      "python3 -m aggregator.main",
			WorkDir:      root,
			StartupDelay: delay,
			Port:         8001,
			HealthAddr:   "http://127.0.0.1:8001/health",
		},
		{
			Name:         "ai-analysis",
			Summary:      "AI analysis service",
			Command:      "python3 -m ai_analysis.main",
			WorkDir:      root,
			StartupDelay: delay,
			Port:         8002,
			HealthAddr:   "http://127.0.0.1:8002/health",
		},
		{
			Name:         "smart-analysis",
			Summary:      "Smart analysis MCP server",
			Command:      "python3 -m smart_analysis.main",
			WorkDir:      root,
			StartupDelay: delay,
			Port:         8003,
			HealthAddr:   "http://127.0.0.1:8003/health",
		},
		{
			Name:         "alerting",
			Summary:      "Telegram bot alerting service",
			Command:      "python3 -m alerting.main",
			WorkDir:      root,
			StartupDelay: delay,
			Port:         8004,
			HealthAddr:   "http://127.0.0.1:8004/health",
		},
	}
}

// FromConfigs merges the built-in registry with config entries: an entry
// whose name matches a default overrides it in place, a new name appends.
func FromConfigs(root string, configs []Config) (*Registry, error) {
	descs := Defaults(root)
	index := make(map[string]int, len(descs))
	for i, d := range descs {
		index[d.Name] = i
	}
	for _, c := range configs {
		d := Descriptor{
			Name:         c.Name,
			Summary:      c.Summary,
			Command:      c.Command,
			WorkDir:      c.WorkDir,
			Env:          c.Env,
			StartupDelay: c.StartupDelay,
			Port:         c.Port,
			HealthAddr:   c.Health,
		}
		if i, ok := index[c.Name]; ok {
			base := descs[i]
			if d.Summary == "" {
				d.Summary = base.Summary
			}
			if d.Command == "" {
				d.Command = base.Command
			}
			if d.WorkDir == "" {
				d.WorkDir = base.WorkDir
			}
			if d.StartupDelay == 0 {
				d.StartupDelay = base.StartupDelay
			}
			if d.Port == 0 {
				d.Port = base.Port
			}
			if d.HealthAddr == "" {
				d.HealthAddr = base.HealthAddr
			}
			descs[i] = d
			continue
		}
		if d.WorkDir == "" {
			d.WorkDir = root
		}
		if d.StartupDelay == 0 {
			d.StartupDelay = 2 * time.Second
		}
		descs = append(descs, d)
		index[d.Name] = len(descs) - 1
	}
	return NewRegistry(descs...)
}
