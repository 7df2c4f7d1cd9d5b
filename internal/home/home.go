// Package home describes the installation root layout and the orchestration
// context threaded through every command of one invocation.
package home

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
)

const (
	// MarkerDir is the dispatcher's own directory; its presence marks an installation root.
	MarkerDir = "setup-servers"
	// CommandPrefix is the prefix every chainable sub-command directory carries.
	CommandPrefix = "setup-"
	// DefaultWorkingDir is the working directory name used when none is configured.
	DefaultWorkingDir = "working-directory"
	// LogsSubdir holds rotated log files.
	LogsSubdir = "logs"
	// HomeEnv overrides the default home directory (the current directory).
	HomeEnv = "SETUP_SERVERS_HOME"
)

// ErrNotInstallationRoot is returned when the home directory lacks the marker directory.
var ErrNotInstallationRoot = errors.New("not an installation root")

// NotInstallationRootError names the directory that was expected to be an installation root.
type NotInstallationRootError struct {
	Home string
}

func (e *NotInstallationRootError) Error() string {
	return fmt.Sprintf("%s is not an installation root (missing %s directory); run 'setup-servers install' first",
		e.Home, MarkerDir)
}

func (e *NotInstallationRootError) Is(target error) bool { return target == ErrNotInstallationRoot }

// Context is the orchestration context of one invocation. It is built once
// and passed explicitly to every sub-command of a chain.
type Context struct {
	HomeDir    string
	WorkingDir string
	// RunID correlates log entries of one invocation.
	RunID string
}

// NewContext resolves homeDir and workingDir into absolute paths. An empty
// homeDir means the current directory; an empty workingDir means
// <home>/working-directory. A leading "~" is expanded.
func NewContext(homeDir, workingDir string) (*Context, error) {
	if homeDir == "" {
		homeDir = os.Getenv(HomeEnv)
	}
	if homeDir == "" {
		homeDir = "."
	}
	absHome, err := absPath(homeDir)
	if err != nil {
		return nil, fmt.Errorf("resolving home directory %s: %w", homeDir, err)
	}

	if workingDir == "" {
		workingDir = filepath.Join(absHome, DefaultWorkingDir)
	}
	absWork, err := absPath(workingDir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory %s: %w", workingDir, err)
	}

	return &Context{
		HomeDir:    absHome,
		WorkingDir: absWork,
		RunID:      uuid.NewString(),
	}, nil
}

func absPath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// MarkerPath returns the path of the root marker directory.
func (c *Context) MarkerPath() string {
	return filepath.Join(c.HomeDir, MarkerDir)
}

// LogsDir returns the directory rotated log files are written to.
func (c *Context) LogsDir() string {
	return filepath.Join(c.HomeDir, LogsSubdir)
}

// CommandDir returns <home>/<name>, the directory holding a sub-command and its providers.
func (c *Context) CommandDir(name string) string {
	return filepath.Join(c.HomeDir, name)
}

// SetupDir returns the directory a setup instance keeps its state and artifacts in.
func (c *Context) SetupDir(setupDirectory string) string {
	return filepath.Join(c.WorkingDir, setupDirectory)
}

// CheckInstallationRoot verifies that the home directory carries the marker directory.
func (c *Context) CheckInstallationRoot() error {
	info, err := os.Stat(c.MarkerPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &NotInstallationRootError{Home: c.HomeDir}
		}
		return fmt.Errorf("checking %s: %w", c.MarkerPath(), err)
	}
	if !info.IsDir() {
		return &NotInstallationRootError{Home: c.HomeDir}
	}
	return nil
}

// IsInstallationRoot reports whether the home directory carries the marker directory.
func (c *Context) IsInstallationRoot() bool {
	return c.CheckInstallationRoot() == nil
}
