package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/telinsights/telrun/internal/config"
	"github.com/telinsights/telrun/internal/database"
)

// Failure classes. Both are fatal at the gate; they exist so reports can
// tell a broken environment from a broken dependency set.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrDependency    = errors.New("dependency error")
)

// Settings variables every worker needs; their absence fails preflight.
var RequiredSettings = []string{
	"DATABASE_URL",
	"TELEGRAM_API_ID",
	"TELEGRAM_API_HASH",
	"TELEGRAM_BOT_TOKEN",
	"RABBITMQ_URL",
}

// CheckFailure pairs a check name with what went wrong.
type CheckFailure struct {
	Check string
	Err   error
}

// Report is the outcome of a full preflight pass.
type Report struct {
	Passed   []string
	Failures []CheckFailure
}

// OK reports whether the gate may open.
func (r Report) OK() bool { return len(r.Failures) == 0 }

// CommandRunner abstracts running a probe command, for tests.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Checker validates the environment before any service is launched.
// Filesystem and environment reads plus short probe subprocesses only; it
// never spawns a managed service.
type Checker struct {
	res         *config.Resolver
	interpreter string
	minVersion  string

	// seams for tests
	run    CommandRunner
	pingDB func(ctx context.Context, dsn string) error
	dial   func(ctx context.Context, network, addr string) error
}

// New builds a checker for the resolved project.
func New(res *config.Resolver, rc config.RuntimeConfig) *Checker {
	interp := rc.Interpreter
	if interp == "" {
		interp = "python3"
	}
	minV := rc.MinVersion
	if minV == "" {
		minV = "3.9"
	}
	return &Checker{
		res:         res,
		interpreter: interp,
		minVersion:  minV,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			// #nosec G204 -- probe commands are built from static config
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		pingDB: database.Ping,
		dial: func(ctx context.Context, network, addr string) error {
			d := net.Dialer{}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return err
			}
			return conn.Close()
		},
	}
}

// RunAll executes every check without short-circuiting so the operator sees
// the complete picture in one pass.
func (c *Checker) RunAll(ctx context.Context) Report {
	var rep Report
	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"runtime version", c.checkRuntime},
		{"settings file", c.checkSettings},
		{"requirements", c.checkRequirements},
		{"database", c.checkDatabase},
		{"message broker", c.checkBroker},
	}
	for _, ch := range checks {
		if err := ch.fn(ctx); err != nil {
			rep.Failures = append(rep.Failures, CheckFailure{Check: ch.name, Err: err})
			continue
		}
		rep.Passed = append(rep.Passed, ch.name)
	}
	return rep
}

// checkRuntime verifies the worker interpreter exists and meets the minimum
// version.
func (c *Checker) checkRuntime(ctx context.Context) error {
	out, err := c.run(ctx, c.interpreter, "--version")
	if err != nil {
		return fmt.Errorf("%w: %s not runnable: %v", ErrDependency, c.interpreter, err)
	}
	ver := parseVersion(string(out))
	if ver == "" {
		return fmt.Errorf("%w: cannot parse %s version from %q", ErrDependency, c.interpreter, strings.TrimSpace(string(out)))
	}
	if versionLess(ver, c.minVersion) {
		return fmt.Errorf("%w: %s %s found, %s+ required", ErrDependency, c.interpreter, ver, c.minVersion)
	}
	return nil
}

// checkSettings requires the settings file and every mandatory variable.
func (c *Checker) checkSettings(_ context.Context) error {
	path := c.res.SettingsPath()
	settings, err := config.ParseEnvFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: settings file %s not found", ErrConfiguration, path)
		}
		return fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	var missing []string
	for _, k := range RequiredSettings {
		if strings.TrimSpace(settings[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing settings: %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// checkRequirements probes each manifest entry for importability through
// the worker runtime.
func (c *Checker) checkRequirements(ctx context.Context) error {
	path := c.res.RequirementsPath()
	reqs, err := ParseRequirements(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: requirements manifest %s not found", ErrConfiguration, path)
		}
		return fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	var missing []string
	for _, req := range reqs {
		mod := ImportName(req)
		if _, err := c.run(ctx, c.interpreter, "-c", "import "+mod); err != nil {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unresolved requirements: %s", ErrDependency, strings.Join(missing, ", "))
	}
	return nil
}

// checkDatabase pings DATABASE_URL from the settings file.
func (c *Checker) checkDatabase(ctx context.Context) error {
	dsn, err := c.setting("DATABASE_URL")
	if err != nil {
		return err
	}
	if err := c.pingDB(ctx, dsn); err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return nil
}

// checkBroker opens and closes a TCP connection to the broker address.
func (c *Checker) checkBroker(ctx context.Context) error {
	raw, err := c.setting("RABBITMQ_URL")
	if err != nil {
		return err
	}
	addr, err := brokerAddr(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.dial(dctx, "tcp", addr); err != nil {
		return fmt.Errorf("%w: broker %s unreachable: %v", ErrDependency, addr, err)
	}
	return nil
}

func (c *Checker) setting(key string) (string, error) {
	settings, err := c.res.LoadSettings()
	if err != nil {
		return "", fmt.Errorf("%w: settings file %s not readable", ErrConfiguration, c.res.SettingsPath())
	}
	v := strings.TrimSpace(settings[key])
	if v == "" {
		return "", fmt.Errorf("%w: %s not set", ErrConfiguration, key)
	}
	return v, nil
}

// brokerAddr extracts host:port from an AMQP URL, defaulting the port.
func brokerAddr(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid broker URL %q", raw)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5672"
	}
	return net.JoinHostPort(host, port), nil
}

// parseVersion pulls "X.Y[.Z]" out of interpreter --version output.
func parseVersion(out string) string {
	for _, f := range strings.Fields(out) {
		if len(f) > 0 && f[0] >= '0' && f[0] <= '9' && strings.Contains(f, ".") {
			return f
		}
	}
	return ""
}

// versionLess compares dotted numeric versions.
func versionLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimFunc(as[i], func(r rune) bool { return r < '0' || r > '9' }))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			return av < bv
		}
	}
	return false
}
