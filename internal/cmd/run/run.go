// Package run implements the run command, which dispatches a chain of
// installed sub-commands.
package run

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/dispatch"
	"github.com/schmitthub/setup-servers/internal/iostreams"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	IOStreams  *iostreams.IOStreams
	Dispatcher func() (*dispatch.Dispatcher, error)

	// Chain is the invocation line after the run command's own flags.
	Chain []string
	Help  bool
}

// NewCmdRun creates the run command. Flag parsing is disabled because every
// token after the first sub-command name belongs to the chain; the global
// flags are only recognised ahead of it.
func NewCmdRun(f *cmdutil.Factory, runF func(context.Context, *RunOptions) error) *cobra.Command {
	opts := &RunOptions{
		IOStreams:  f.IOStreams,
		Dispatcher: f.Dispatcher,
	}

	cmd := &cobra.Command{
		Use:   "run [--home-dir DIR] [--working-dir DIR] COMMAND [FLAGS] [COMMAND [FLAGS]...]",
		Short: "Run one or more installed sub-commands in order",
		Long: `Runs a chain of sub-commands installed in the home directory. A new segment
starts at every token naming an installed setup-* command. Segments run left
to right against the same home and working directory; the first failure stops
the chain. Steps whose provider declines the request are skipped.`,
		Example: `  # Start a database, then a FHIR server connected to it
  setup-servers run setup-db --setup-directory-name pg \
    setup-fhir-server --setup-directory-name fhir --dbs-setup-directory pg

  # Use another home directory
  setup-servers run --home-dir ~/dev-env setup-db --setup-directory-name pg`,
		DisableFlagParsing: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			chain, err := parseGlobalFlags(f, opts, args)
			if err != nil {
				return err
			}
			opts.Chain = chain
			cmdutil.InitLogging(f)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Help {
				return cmd.Help()
			}
			if len(opts.Chain) == 0 {
				return cmdutil.FlagErrorf("%s requires at least one sub-command", cmd.CommandPath())
			}
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return runRun(cmd.Context(), opts)
		},
	}

	return cmd
}

// parseGlobalFlags consumes the global flags that precede the first
// sub-command and returns the rest of the line.
func parseGlobalFlags(f *cmdutil.Factory, opts *RunOptions, args []string) ([]string, error) {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = func() {}
	fs.StringVar(&f.HomeDir, "home-dir", f.HomeDir, "")
	fs.StringVar(&f.WorkingDir, "working-dir", f.WorkingDir, "")
	fs.BoolVarP(&f.Debug, "debug", "D", f.Debug, "")
	fs.BoolVarP(&opts.Help, "help", "h", false, "")

	if err := fs.Parse(args); err != nil {
		return nil, cmdutil.FlagErrorWrap(err)
	}
	return fs.Args(), nil
}

func runRun(ctx context.Context, opts *RunOptions) error {
	ios := opts.IOStreams

	d, err := opts.Dispatcher()
	if err != nil {
		return err
	}

	summary, err := d.Run(ctx, opts.Chain)
	printed := summary != nil && printSummary(ios, summary)
	if err != nil {
		var unknown *dispatch.UnknownCommandError
		if errors.As(err, &unknown) || errors.Is(err, dispatch.ErrNoCommand) {
			return cmdutil.FlagErrorWrap(err)
		}
		if printed && ctx.Err() == nil {
			// Report the failure under the step that caused it.
			cmdutil.PrintError(ios, err)
			return cmdutil.Silenced(err)
		}
		return err
	}
	return nil
}

// printSummary lists the steps of chains with more than one step or with
// skipped steps, and reports whether it printed anything.
func printSummary(ios *iostreams.IOStreams, s *dispatch.Summary) bool {
	cs := ios.ColorScheme()
	if len(s.Steps) < 2 && len(s.Skipped()) == 0 {
		return false
	}

	fmt.Fprintln(ios.ErrOut)
	for _, step := range s.Steps {
		icon := cs.SuccessIcon()
		switch step.Status {
		case dispatch.StepSkipped:
			icon = cs.WarningIcon()
		case dispatch.StepFailed:
			icon = cs.FailureIcon()
		}
		line := fmt.Sprintf("%s %s", icon, step.Segment.Name)
		if len(step.Segment.Args) > 0 {
			line += " " + cs.Muted(strings.Join(step.Segment.Args, " "))
		}
		fmt.Fprintf(ios.ErrOut, "%s  %s (%s)\n", line, step.Status, units.HumanDuration(step.Duration))
	}
	fmt.Fprintf(ios.ErrOut, "%d step(s) in %s\n", len(s.Steps), units.HumanDuration(s.Duration))
	return true
}
