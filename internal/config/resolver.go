package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Environment variable naming shared with the managed Python workers.
const (
	EnvRoot       = "TELRUN_ROOT"
	EnvPythonPath = "PYTHONPATH"
)

// Resolver locates the project root and derives every path and environment
// value the supervisor hands to its children. It performs filesystem reads
// only; nothing here spawns processes.
type Resolver struct {
	root string
}

// NewResolver resolves the project root. Precedence: explicit argument,
// TELRUN_ROOT, current working directory.
func NewResolver(root string) (*Resolver, error) {
	r := strings.TrimSpace(root)
	if r == "" {
		r = os.Getenv(EnvRoot)
	}
	if r == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		r = wd
	}
	abs, err := filepath.Abs(r)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %q: %w", r, err)
	}
	return &Resolver{root: abs}, nil
}

func (r *Resolver) Root() string { return r.root }

// SrcPath is the workers' code location, prepended to PYTHONPATH.
func (r *Resolver) SrcPath() string { return filepath.Join(r.root, "src") }

// SettingsPath is the .env settings file whose absence fails preflight.
func (r *Resolver) SettingsPath() string { return filepath.Join(r.root, ".env") }

// RequirementsPath is the manifest used for dependency resolution checks.
func (r *Resolver) RequirementsPath() string { return filepath.Join(r.root, "requirements.txt") }

// LogDir is where captured service output is written.
func (r *Resolver) LogDir() string { return filepath.Join(r.root, "logs") }

// LoadSettings reads the settings file into a key/value map.
func (r *Resolver) LoadSettings() (map[string]string, error) {
	return ParseEnvFile(r.SettingsPath())
}

// ChildEnv composes the environment for a managed service: the supervisor's
// own environment as base, then the settings file, then PYTHONPATH extended
// with the src directory, then per-service overrides last.
func (r *Resolver) ChildEnv(extra []string) ([]string, error) {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	settings, err := r.LoadSettings()
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for k, v := range settings {
		m[k] = v
	}
	if prev := m[EnvPythonPath]; prev != "" {
		m[EnvPythonPath] = r.SrcPath() + string(os.PathListSeparator) + prev
	} else {
		m[EnvPythonPath] = r.SrcPath()
	}
	for _, kv := range extra {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out, nil
}

// ParseEnvFile parses a simple KEY=VALUE file, ignoring blank lines and
// comments. Values keep everything after the first '='.
func ParseEnvFile(path string) (map[string]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			if k != "" {
				m[k] = v
			}
		}
	}
	return m, nil
}
