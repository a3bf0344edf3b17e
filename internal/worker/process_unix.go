//go:build unix

package worker

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the spawned shell in its own process group so a
// timeout kill can take down the whole tree (the shell plus whatever it
// forked), not just the immediate "sh" process.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
