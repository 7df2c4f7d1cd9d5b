package root

import (
	"github.com/spf13/cobra"

	"github.com/schmitthub/setup-servers/internal/cmd/install"
	"github.com/schmitthub/setup-servers/internal/cmd/list"
	runcmd "github.com/schmitthub/setup-servers/internal/cmd/run"
	statecmd "github.com/schmitthub/setup-servers/internal/cmd/state"
	versioncmd "github.com/schmitthub/setup-servers/internal/cmd/version"
	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/logger"
)

// NewCmdRoot creates the root command for the setup-servers CLI.
func NewCmdRoot(f *cmdutil.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup-servers",
		Short: "Set up local development servers from swappable providers",
		Long: `setup-servers provisions local development components, such as a database
and a FHIR test server, through providers installed in a home directory. Each
setup remembers its configuration and status, so re-running it is safe.

Quick start:
  setup-servers install                                   # Lay out the home directory
  setup-servers list                                      # Show sub-commands and providers
  setup-servers run setup-db --setup-directory-name pg    # Start a database
  setup-servers state show --setup-directory-name pg      # Inspect its state`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmdutil.InitLogging(f)

			logger.Debug().
				Str("version", f.Version).
				Bool("debug", f.Debug).
				Str("command", cmd.CommandPath()).
				Msg("setup-servers starting")

			return nil
		},
		Version: f.Version,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&f.HomeDir, "home-dir", "", "Home directory of the installation (default: $SETUP_SERVERS_HOME or the current directory)")
	cmd.PersistentFlags().StringVar(&f.WorkingDir, "working-dir", "", "Working directory for setups (default: <home-dir>/working-directory)")
	cmd.PersistentFlags().BoolVarP(&f.Debug, "debug", "D", false, "Enable debug logging")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return cmdutil.FlagErrorWrap(err)
	})

	// Version template
	cmd.SetVersionTemplate(versioncmd.Format(f.Version, f.Commit))

	cmd.AddCommand(install.NewCmdInstall(f, nil))
	cmd.AddCommand(runcmd.NewCmdRun(f, nil))
	cmd.AddCommand(list.NewCmdList(f, nil))
	cmd.AddCommand(statecmd.NewCmdState(f))
	cmd.AddCommand(versioncmd.NewCmdVersion(f))

	return cmd
}
