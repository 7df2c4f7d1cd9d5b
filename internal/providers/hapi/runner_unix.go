//go:build unix

package hapi

import (
	"errors"
	"os/exec"
	"syscall"
)

// detach puts the server in its own process group so terminal signals sent
// to the CLI do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (ExecRunner) Alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (ExecRunner) Interrupt(pid int) error {
	return syscall.Kill(pid, syscall.SIGINT)
}
