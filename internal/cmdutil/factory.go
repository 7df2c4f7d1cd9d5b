package cmdutil

import (
	"context"

	"github.com/schmitthub/setup-servers/internal/config"
	"github.com/schmitthub/setup-servers/internal/dispatch"
	"github.com/schmitthub/setup-servers/internal/docker"
	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/iostreams"
	"github.com/schmitthub/setup-servers/internal/setup"
)

// Factory provides shared dependencies for CLI commands.
// It is a dependency injection container: the struct defines what
// dependencies exist (the contract), while internal/cmd/factory
// wires the real implementations.
//
// Closure fields are set by the factory constructor and use lazy
// initialization internally. Commands extract only the fields they
// need into per-command Options structs.
type Factory struct {
	// Configuration from persistent flags (set before command execution)
	HomeDir    string
	WorkingDir string
	Debug      bool

	// Version info (set at build time via ldflags)
	Version string
	Commit  string

	IOStreams *iostreams.IOStreams

	// Context is the orchestration context of this invocation, built once
	// from HomeDir and WorkingDir (or the settings' working directory).
	Context func() (*home.Context, error)

	Settings func() (*config.Settings, error)

	Docker      func(context.Context) (*docker.Client, error)
	CloseDocker func()

	// Orchestrator runs single setups; every chained command shares it.
	Orchestrator func() (*setup.Orchestrator, error)
	// Dispatcher runs chains of sub-commands.
	Dispatcher func() (*dispatch.Dispatcher, error)
}
