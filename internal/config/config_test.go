package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	cfg, err := Load("", r)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg.Supervisor != def.Supervisor || cfg.Health != def.Health {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Capture.Dir != r.LogDir() {
		t.Fatalf("capture dir must default to log dir: %q", cfg.Capture.Dir)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if _, err := Load(filepath.Join(dir, "nope.toml"), r); err == nil {
		t.Fatalf("explicitly named missing config must fail")
	}
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	toml := `
[supervisor]
stagger = "3s"
stop_timeout = "20s"

[health]
threshold = 5

[server]
enabled = false
listen = "127.0.0.1:9999"

[[services]]
name = "aggregator"
command = "python3 -m custom.main"
port = 9001

[[services]]
name = "worker"
command = "sleep 1"
startup_delay = "1s"
`
	path := filepath.Join(dir, "telrun.toml")
	if err := os.WriteFile(path, []byte(toml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load("", r)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Supervisor.Stagger != 3*time.Second || cfg.Supervisor.StopTimeout != 20*time.Second {
		t.Fatalf("supervisor section: %+v", cfg.Supervisor)
	}
	// Untouched keys keep defaults.
	if cfg.Supervisor.KillGrace != 500*time.Millisecond {
		t.Fatalf("kill_grace default lost: %v", cfg.Supervisor.KillGrace)
	}
	if cfg.Health.Threshold != 5 || cfg.Health.Interval != time.Second {
		t.Fatalf("health section: %+v", cfg.Health)
	}
	if cfg.Server.Enabled || cfg.Server.Listen != "127.0.0.1:9999" {
		t.Fatalf("server section: %+v", cfg.Server)
	}
	if len(cfg.Services) != 2 || cfg.Services[0].Port != 9001 || cfg.Services[1].StartupDelay != time.Second {
		t.Fatalf("services: %+v", cfg.Services)
	}
}

func TestLoadRejectsUnnamedService(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	toml := "[[services]]\ncommand = \"sleep 1\"\n"
	path := filepath.Join(dir, "telrun.toml")
	if err := os.WriteFile(path, []byte(toml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load("", r); err == nil {
		t.Fatalf("service without a name must be rejected")
	}
}
