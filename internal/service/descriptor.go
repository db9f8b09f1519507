package service

import (
	"os/exec"
	"strings"
	"time"
)

// Descriptor describes one managed service. Descriptors are built once at
// startup from the registry and never mutated afterwards.
type Descriptor struct {
	Name         string        // unique key
	Summary      string        // one-line description for operators
	Command      string        // launch command (shell syntax allowed)
	WorkDir      string        // working directory; defaults to the project root
	Env          []string      // extra KEY=VALUE entries for this service
	StartupDelay time.Duration // stagger applied before the next launch
	Port         int           // service port, informational
	HealthAddr   string        // readiness endpoint; empty means liveness-only
}

// Config is the TOML shape of a service entry in telrun.toml.
type Config struct {
	Name         string        `mapstructure:"name"`
	Summary      string        `mapstructure:"summary"`
	Command      string        `mapstructure:"command"`
	WorkDir      string        `mapstructure:"workdir"`
	Env          []string      `mapstructure:"env"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	Port         int           `mapstructure:"port"`
	Health       string        `mapstructure:"health"`
}

// BuildCommand constructs an *exec.Cmd for the descriptor's command string.
// It avoids invoking a shell when not necessary, and it respects an explicit
// shell invocation already present in the command string (e.g.
// "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
func (d Descriptor) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(d.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		// Always use absolute shell path to avoid PATH dependency when Env is overridden.
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>"
// at the beginning of cmdStr and returns the argument after "-c" verbatim,
// stripping one pair of outer quotes when present.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}
