// Package setupdb is the setup-db sub-command: it provisions a database
// server through the providers installed under <home>/setup-db.
package setupdb

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/iostreams"
	"github.com/schmitthub/setup-servers/internal/setup"
	"github.com/schmitthub/setup-servers/internal/setupkind"
)

// Options holds options for the setup-db command.
type Options struct {
	IOStreams    *iostreams.IOStreams
	Orchestrator func() (*setup.Orchestrator, error)

	SetupDirectory string
	Provider       string
	DBName         string
	DBVersion      string
	Actions        []string

	// Fields holds only the field flags given on the command line, so that
	// omitted immutable fields are not compared against persisted ones.
	Fields map[string]string
}

// NewCmdSetupDB creates the setup-db command.
func NewCmdSetupDB(f *cmdutil.Factory, runF func(context.Context, *Options) error) *cobra.Command {
	opts := &Options{
		IOStreams:    f.IOStreams,
		Orchestrator: f.Orchestrator,
	}

	cmd := &cobra.Command{
		Use:   setupkind.DBSetupName,
		Short: "Set up a database server",
		Long: `Sets up a database server in a setup directory of the working directory.

The first run records the database name and version; later runs for the same
setup directory must repeat them or leave them out. Actions run in the order
given; without actions the database is created and started.

Actions: create, start, stop, remove

--dbs-provider-name and --dbs-action are accepted as aliases of --provider
and --action.`,
		Example: `  # Create and start the default provider's database
  setup-servers run setup-db --setup-directory-name pg

  # Pick a provider and version explicitly
  setup-servers run setup-db --setup-directory-name pg --provider postgres --dbs-version 15

  # Stop it again
  setup-servers run setup-db --setup-directory-name pg --action stop`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Fields = map[string]string{}
			if cmd.Flags().Changed("dbs-name") {
				opts.Fields[setupkind.FieldDBName] = opts.DBName
			}
			if cmd.Flags().Changed("dbs-version") {
				opts.Fields[setupkind.FieldDBVersion] = opts.DBVersion
			}
			for _, a := range opts.Actions {
				if !validAction(a) {
					return cmdutil.FlagErrorf("unknown action %q (valid: %v)", a, setupkind.DBActions)
				}
			}
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return setupDBRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.SetupDirectory, "setup-directory-name", "", "Setup directory under the working directory")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "Database provider (default: the only one installed)")
	cmd.Flags().StringVar(&opts.DBName, "dbs-name", "", "Database name")
	cmd.Flags().StringVar(&opts.DBVersion, "dbs-version", "", "Database server version")
	cmd.Flags().StringArrayVar(&opts.Actions, "action", nil, "Action to run, repeatable (create, start, stop, remove)")
	cmdutil.AliasFlags(cmd.Flags(), map[string]string{
		"dbs-provider-name": "provider",
		"dbs-action":        "action",
	})
	_ = cmd.MarkFlagRequired("setup-directory-name")

	return cmd
}

func validAction(a string) bool {
	for _, known := range setupkind.DBActions {
		if a == known {
			return true
		}
	}
	return false
}

func setupDBRun(ctx context.Context, opts *Options) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	orch, err := opts.Orchestrator()
	if err != nil {
		return err
	}

	req := setup.Request{
		SetupName:      setupkind.DBSetupName,
		SetupDirectory: opts.SetupDirectory,
		Schema:         setupkind.DB,
		Fields:         opts.Fields,
		Provider:       opts.Provider,
		Actions:        opts.Actions,
	}

	var res *setup.Result
	err = ios.RunWithProgress(fmt.Sprintf("Setting up database %s", opts.SetupDirectory), func() error {
		var runErr error
		res, runErr = orch.Run(ctx, req)
		return runErr
	})
	if err != nil {
		return err
	}

	st := res.State
	status, _ := st.Get(setupkind.FieldServerStatus)
	port, _ := st.Get(setupkind.FieldDBPort)
	version, _ := st.Get(setupkind.FieldDBVersion)
	fmt.Fprintf(ios.ErrOut, "%s %s %s: %s %s %s", cs.SuccessIcon(), setupkind.DBSetupName, opts.SetupDirectory,
		res.Provider, version, status)
	if port != "" && status == setupkind.ServerStatusRunning {
		fmt.Fprintf(ios.ErrOut, " on localhost:%s", port)
	}
	fmt.Fprintln(ios.ErrOut)
	return nil
}
