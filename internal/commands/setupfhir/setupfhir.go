// Package setupfhir is the setup-fhir-server sub-command: it builds and runs
// a FHIR test server through the providers under <home>/setup-fhir-server.
package setupfhir

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/iostreams"
	"github.com/schmitthub/setup-servers/internal/setup"
	"github.com/schmitthub/setup-servers/internal/setupkind"
)

// Options holds options for the setup-fhir-server command.
type Options struct {
	IOStreams    *iostreams.IOStreams
	Orchestrator func() (*setup.Orchestrator, error)

	SetupDirectory   string
	Provider         string
	GitRef           string
	DBSetupDirectory string
	DBUser           string
	DBPassword       string
	Actions          []string

	Fields map[string]string
}

// NewCmdSetupFHIR creates the setup-fhir-server command.
func NewCmdSetupFHIR(f *cmdutil.Factory, runF func(context.Context, *Options) error) *cobra.Command {
	opts := &Options{
		IOStreams:    f.IOStreams,
		Orchestrator: f.Orchestrator,
	}

	cmd := &cobra.Command{
		Use:   setupkind.FHIRSetupName,
		Short: "Set up a FHIR test server",
		Long: `Builds and runs a FHIR server in a setup directory of the working directory.

The server is rebuilt only when the git ref resolves to a different commit
than the last build. A running server must be stopped before a different
build can start. With --dbs-setup-directory the server uses the database of
that setup-db directory, connecting as --db-user with --db-pass. These must
match the credentials in the database provider's manifest.

Actions: hapi-start, hapi-stop`,
		Example: `  # Chain a database and a FHIR server that uses it
  setup-servers run setup-db --setup-directory-name pg \
    setup-fhir-server --setup-directory-name fhir --dbs-setup-directory pg

  # Stop the server
  setup-servers run setup-fhir-server --setup-directory-name fhir --action hapi-stop`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Fields = map[string]string{}
			if cmd.Flags().Changed("git-ref") {
				opts.Fields[setupkind.FieldGitRef] = opts.GitRef
			}
			if cmd.Flags().Changed("dbs-setup-directory") {
				opts.Fields[setupkind.FieldDBSetupDirectory] = opts.DBSetupDirectory
			}
			if cmd.Flags().Changed("db-user") {
				opts.Fields[setupkind.FieldDBUser] = opts.DBUser
			}
			if cmd.Flags().Changed("db-pass") {
				opts.Fields[setupkind.FieldDBPassword] = opts.DBPassword
			}
			for _, a := range opts.Actions {
				if a != setupkind.ActionHapiStart && a != setupkind.ActionHapiStop {
					return cmdutil.FlagErrorf("unknown action %q (valid: %v)", a, setupkind.FHIRActions)
				}
			}
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return setupFHIRRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.SetupDirectory, "setup-directory-name", "", "Setup directory under the working directory")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "FHIR server provider (default: the only one installed)")
	cmd.Flags().StringVar(&opts.GitRef, "git-ref", setupkind.DefaultGitRef, "Branch, tag or commit to build")
	cmd.Flags().StringVar(&opts.DBSetupDirectory, "dbs-setup-directory", "", "setup-db directory whose database the server uses")
	cmd.Flags().StringVar(&opts.DBUser, "db-user", setupkind.DefaultDBUser, "Database user the server connects as")
	cmd.Flags().StringVar(&opts.DBPassword, "db-pass", setupkind.DefaultDBPassword, "Password of the database user")
	cmd.Flags().StringArrayVar(&opts.Actions, "action", nil, "Action to run, repeatable (hapi-start, hapi-stop)")
	_ = cmd.MarkFlagRequired("setup-directory-name")

	return cmd
}

func setupFHIRRun(ctx context.Context, opts *Options) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	orch, err := opts.Orchestrator()
	if err != nil {
		return err
	}

	req := setup.Request{
		SetupName:      setupkind.FHIRSetupName,
		SetupDirectory: opts.SetupDirectory,
		Schema:         setupkind.FHIR,
		Fields:         opts.Fields,
		Provider:       opts.Provider,
		Actions:        opts.Actions,
	}

	var res *setup.Result
	err = ios.RunWithProgress(fmt.Sprintf("Setting up FHIR server %s", opts.SetupDirectory), func() error {
		var runErr error
		res, runErr = orch.Run(ctx, req)
		return runErr
	})
	if err != nil {
		return err
	}

	status, _ := res.State.Get(setupkind.FieldServerStatus)
	url, _ := res.State.Get(setupkind.FieldFHIRURL)
	fmt.Fprintf(ios.ErrOut, "%s %s %s: %s %s", cs.SuccessIcon(), setupkind.FHIRSetupName, opts.SetupDirectory, res.Provider, status)
	if status == setupkind.ServerStatusRunning && url != "" {
		fmt.Fprintf(ios.ErrOut, " at %s", url)
	}
	fmt.Fprintln(ios.ErrOut)
	return nil
}
