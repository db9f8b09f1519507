package main

import "time"

// Flag structs decouple cobra from logic for testing.

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string // path to telrun.toml (optional)
	Root       string // project root; defaults to TELRUN_ROOT or cwd
}

// RunFlags holds flags for the default run command.
type RunFlags struct {
	Interactive bool // drive the run from a console prompt
	NoServer    bool // disable the control API listener
	SkipChecks  bool // launch without the preflight gate
}

// CheckFlags holds flags for the check command.
type CheckFlags struct {
	Quiet bool // only set the exit code, no per-check output
}

// InitFlags holds flags for the init command.
type InitFlags struct {
	Force bool // overwrite an existing telrun.toml
}

// StatusFlags holds flags for the remote status command.
type StatusFlags struct {
	Name       string
	APIUrl     string
	APITimeout time.Duration
}

// EventsFlags holds flags for the remote events command.
type EventsFlags struct {
	Name       string
	Limit      int
	APIUrl     string
	APITimeout time.Duration
}
