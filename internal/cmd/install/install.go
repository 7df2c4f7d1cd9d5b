// Package install implements the install command, which lays the installation
// template down in the home directory.
package install

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/iostreams"
	"github.com/schmitthub/setup-servers/internal/template"
)

// InstallOptions holds options for the install command.
type InstallOptions struct {
	IOStreams *iostreams.IOStreams
	Context   func() (*home.Context, error)

	Verbose bool
}

// NewCmdInstall creates the install command.
func NewCmdInstall(f *cmdutil.Factory, runF func(context.Context, *InstallOptions) error) *cobra.Command {
	opts := &InstallOptions{
		IOStreams: f.IOStreams,
		Context:   f.Context,
	}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the setup-servers template into the home directory",
		Long: `Copies the built-in template into the home directory and creates the
working directory.

Existing directories are merged into and template files are overwritten, so
install can be re-run to repair or upgrade an installation. Files the template
does not know about are left alone.`,
		Example: `  # Install into the current directory
  setup-servers install

  # Install into a dedicated home
  setup-servers install --home-dir ~/dev-env`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return installRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "List every file written")

	return cmd
}

func installRun(_ context.Context, opts *InstallOptions) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	hctx, err := opts.Context()
	if err != nil {
		return err
	}

	res, err := template.Install(hctx.HomeDir, hctx.WorkingDir)
	if err != nil {
		return err
	}
	ios.Logger.Debug().
		Str("home", hctx.HomeDir).
		Int("created", len(res.Created)).
		Int("overwritten", len(res.Overwritten)).
		Msg("template installed")

	if opts.Verbose {
		for _, p := range res.Created {
			fmt.Fprintf(ios.ErrOut, "  created     %s\n", p)
		}
		for _, p := range res.Overwritten {
			fmt.Fprintf(ios.ErrOut, "  overwritten %s\n", p)
		}
	}

	fmt.Fprintf(ios.ErrOut, "%s Installed setup-servers into %s\n", cs.SuccessIcon(), hctx.HomeDir)
	cmdutil.PrintNextSteps(ios,
		"Run 'setup-servers list' to see the installed sub-commands",
		"Run 'setup-servers run setup-db --setup-directory-name pg' to start a database",
	)
	return nil
}
