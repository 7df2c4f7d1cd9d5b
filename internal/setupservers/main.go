// Package setupservers holds the CLI entry point shared by the binary and
// the CLI script tests.
package setupservers

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schmitthub/setup-servers/internal/cmd/factory"
	"github.com/schmitthub/setup-servers/internal/cmd/root"
	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/logger"
	"github.com/schmitthub/setup-servers/internal/naming"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/signals"
)

// Build-time variables injected via ldflags
var (
	Version = "dev"
	Commit  = "none"
)

const (
	exitOK        = 0
	exitError     = 1
	exitUsage     = 2
	exitDuplicate = 10
	exitMalformed = 11
	exitNotRoot   = 12
	// 128 + SIGINT, as shells report it.
	exitInterrupted = 130
)

// Main is the entry point for the setup-servers CLI.
// It initializes the Factory, creates the root command, executes it and
// maps the returned error to an exit code.
func Main() int {
	// Ensure logs are flushed on exit
	defer logger.CloseFileWriter()

	f := factory.New(Version, Commit)
	defer f.CloseDocker()

	ctx, cancel := signals.SetupSignalContext(context.Background())
	defer cancel()

	rootCmd := root.NewCmdRoot(f)
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return exitOK
	}

	if signals.Interrupted(ctx) {
		fmt.Fprintln(f.IOStreams.ErrOut, "Interrupted")
		return exitInterrupted
	}
	if !errors.Is(err, cmdutil.SilentError) {
		cmdutil.PrintError(f.IOStreams, err)
		var flagErr *cmdutil.FlagError
		if errors.As(err, &flagErr) {
			printUsageHint(f, cmd)
		}
	}
	return ExitCode(err)
}

func printUsageHint(f *cmdutil.Factory, cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	cmdutil.PrintHelpHint(f.IOStreams, cmd.CommandPath())
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var flagErr *cmdutil.FlagError
	switch {
	case errors.Is(err, provider.ErrDuplicateName):
		return exitDuplicate
	case errors.Is(err, naming.ErrMalformed):
		return exitMalformed
	case errors.Is(err, home.ErrNotInstallationRoot):
		return exitNotRoot
	case errors.As(err, &flagErr):
		return exitUsage
	}
	return exitError
}
