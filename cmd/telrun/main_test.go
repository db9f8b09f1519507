package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/telinsights/telrun/internal/service"
)

func TestBuildRootHasSubcommands(t *testing.T) {
	root := buildRoot(&bytes.Buffer{})
	want := map[string]bool{"check": false, "init": false, "interactive": false, "status": false, "events": false}
	for _, c := range root.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %q missing", name)
		}
	}
}

func TestExitCodeOf(t *testing.T) {
	if got := exitCodeOf(nil); got != 0 {
		t.Fatalf("nil error: %d", got)
	}
	if got := exitCodeOf(&exitError{code: 3}); got != 3 {
		t.Fatalf("exitError: %d", got)
	}
	wrapped := fmt.Errorf("context: %w", &exitError{code: 2})
	if got := exitCodeOf(wrapped); got != 2 {
		t.Fatalf("wrapped exitError: %d", got)
	}
	if got := exitCodeOf(fmt.Errorf("lookup: %w", service.ErrUnknownService)); got != 2 {
		t.Fatalf("unknown service: %d", got)
	}
	if got := exitCodeOf(errors.New("boom")); got != 1 {
		t.Fatalf("generic error: %d", got)
	}
}

func TestInitGateFailureSkipsSchema(t *testing.T) {
	dir := t.TempDir() // empty project: no .env, no requirements
	var out bytes.Buffer
	dbCalls := 0
	c := command{
		global: &GlobalFlags{Root: dir},
		out:    &out,
		initDB: func(ctx context.Context, dsn string) error {
			dbCalls++
			return nil
		},
	}

	err := c.Init(InitFlags{})
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 1 {
		t.Fatalf("failed gate must map to exit code 1, got %v", err)
	}
	if dbCalls != 0 {
		t.Fatalf("schema initialization ran despite a failed gate")
	}

	// The config scaffold is still written before the gate runs.
	b, err := os.ReadFile(filepath.Join(dir, "telrun.toml"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "[supervisor]") {
		t.Fatalf("template incomplete: %q", string(b)[:80])
	}

	// A second init without --force refuses to clobber.
	if err := c.Init(InitFlags{}); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("overwrite without force must fail, got %v", err)
	}
}

func TestRunServiceUnknownName(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	c := command{global: &GlobalFlags{Root: dir}, out: &out}

	err := c.RunService("nope", RunFlags{SkipChecks: true})
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Fatalf("unknown service must map to exit code 2, got %v", err)
	}
}

func TestGateFailureMapsToExitCode1(t *testing.T) {
	dir := t.TempDir() // empty project: no .env, no requirements
	var out bytes.Buffer
	c := command{global: &GlobalFlags{Root: dir}, out: &out}

	err := c.Check(CheckFlags{Quiet: true})
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 1 {
		t.Fatalf("failed gate must map to exit code 1, got %v", err)
	}
}
