//go:build windows

package process

import (
	"os"
	"os/exec"
)

func setSysProcAttr(_ *exec.Cmd) {}

// terminate has no graceful equivalent on Windows; kill outright.
func terminate(pid int) { forceKill(pid) }

func forceKill(pid int) {
	if pid <= 0 {
		return
	}
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}

func exitCodeFrom(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
