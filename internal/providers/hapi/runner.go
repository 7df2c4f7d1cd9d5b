package hapi

import (
	"context"
	"os"
	"os/exec"
)

// Runner runs the external tools the provider drives.
type Runner interface {
	// Run executes name to completion in dir and returns its combined output.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	// Start launches a long-running process in dir with output appended to
	// logFile, and returns its pid without waiting for it.
	Start(dir, logFile, name string, args ...string) (int, error)
	// Alive reports whether pid is a running process.
	Alive(pid int) bool
	// Interrupt asks pid to shut down.
	Interrupt(pid int) error
}

// ExecRunner runs real processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

func (ExecRunner) Start(dir, logFile, name string, args ...string) (int, error) {
	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The server outlives this process; release it instead of waiting.
	_ = cmd.Process.Release()
	return pid, nil
}
