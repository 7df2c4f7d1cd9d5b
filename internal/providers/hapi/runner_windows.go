//go:build windows

package hapi

import (
	"os"
	"os/exec"
)

func detach(*exec.Cmd) {}

func (ExecRunner) Alive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

// Interrupt kills the process; Windows has no SIGINT for other processes.
func (ExecRunner) Interrupt(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
