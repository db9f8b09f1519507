package service

import (
	"testing"
)

func TestBuildCommandPlain(t *testing.T) {
	d := Descriptor{Name: "x", Command: "python3 -m aggregator.main"}
	cmd := d.BuildCommand()
	if len(cmd.Args) != 3 || cmd.Args[0] != "python3" || cmd.Args[1] != "-m" {
		t.Fatalf("plain command split wrong: %#v", cmd.Args)
	}
}

func TestBuildCommandMetacharsUseShell(t *testing.T) {
	d := Descriptor{Name: "x", Command: "echo hi > /tmp/out"}
	cmd := d.BuildCommand()
	if cmd.Args[0] != "/bin/sh" || cmd.Args[1] != "-c" {
		t.Fatalf("metachars must go through sh -c: %#v", cmd.Args)
	}
}

func TestBuildCommandExplicitShellNotDoubleWrapped(t *testing.T) {
	d := Descriptor{Name: "x", Command: "sh -c 'echo hi'"}
	cmd := d.BuildCommand()
	if cmd.Args[0] != "/bin/sh" || cmd.Args[1] != "-c" {
		t.Fatalf("explicit shell must normalize to /bin/sh -c: %#v", cmd.Args)
	}
	if cmd.Args[2] != "echo hi" {
		t.Fatalf("inner command must be unwrapped once: %q", cmd.Args[2])
	}
}

func TestBuildCommandEmpty(t *testing.T) {
	d := Descriptor{Name: "x"}
	cmd := d.BuildCommand()
	if cmd.Args[0] != "/bin/true" {
		t.Fatalf("empty command fallback: %#v", cmd.Args)
	}
}
