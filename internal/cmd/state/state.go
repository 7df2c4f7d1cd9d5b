// Package state implements the state command group for inspecting and
// closing persisted setups.
package state

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/iostreams"
	"github.com/schmitthub/setup-servers/internal/setupkind"
	setupstate "github.com/schmitthub/setup-servers/internal/state"
)

// StateOptions holds options shared by the state subcommands.
type StateOptions struct {
	IOStreams *iostreams.IOStreams
	Context   func() (*home.Context, error)

	SetupName      string
	SetupDirectory string
	JSON           bool
}

// NewCmdState creates the state command group.
func NewCmdState(f *cmdutil.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or close persisted setups",
		Long: `Every setup directory records its configuration and status in a state file.
These commands read that record or move it to the terminal Closed status.`,
		Args: cmdutil.NoArgs,
	}

	cmd.AddCommand(NewCmdShow(f, nil))
	cmd.AddCommand(NewCmdClose(f, nil))

	return cmd
}

func addSetupFlags(cmd *cobra.Command, opts *StateOptions) {
	cmd.Flags().StringVar(&opts.SetupName, "setup-name", setupkind.DBSetupName, "Setup the state belongs to")
	cmd.Flags().StringVar(&opts.SetupDirectory, "setup-directory-name", "", "Setup directory under the working directory")
	_ = cmd.MarkFlagRequired("setup-directory-name")
}

// NewCmdShow creates the state show command.
func NewCmdShow(f *cmdutil.Factory, runF func(context.Context, *StateOptions) error) *cobra.Command {
	opts := &StateOptions{IOStreams: f.IOStreams, Context: f.Context}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the state of a setup",
		Example: `  setup-servers state show --setup-directory-name pg
  setup-servers state show --setup-name setup-fhir-server --setup-directory-name fhir --json`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return showRun(cmd.Context(), opts)
		},
	}

	addSetupFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")

	return cmd
}

// NewCmdClose creates the state close command.
func NewCmdClose(f *cmdutil.Factory, runF func(context.Context, *StateOptions) error) *cobra.Command {
	opts := &StateOptions{IOStreams: f.IOStreams, Context: f.Context}

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a setup so that no further runs can change it",
		Long: `Moves a setup to the Closed status. A closed setup is kept on disk for
reference, but every later run against the same setup directory fails.`,
		Example: `  setup-servers state close --setup-directory-name pg`,
		Args:    cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return closeRun(cmd.Context(), opts)
		},
	}

	addSetupFlags(cmd, opts)

	return cmd
}

func (o *StateOptions) store() (*setupstate.Store, error) {
	schema, ok := setupkind.Schemas[o.SetupName]
	if !ok {
		known := make([]string, 0, len(setupkind.Schemas))
		for name := range setupkind.Schemas {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, cmdutil.FlagErrorf("unknown setup %q (valid: %v)", o.SetupName, known)
	}
	hctx, err := o.Context()
	if err != nil {
		return nil, err
	}
	return setupstate.NewStore(setupstate.Path(hctx.SetupDir(o.SetupDirectory), o.SetupName), schema), nil
}

// stateView is the printable form of a record.
type stateView struct {
	SetupName string            `yaml:"setup_name" json:"setup_name"`
	Status    string            `yaml:"info_status" json:"info_status"`
	Provider  string            `yaml:"provider_name,omitempty" json:"provider_name,omitempty"`
	Kind      string            `yaml:"kind,omitempty" json:"kind,omitempty"`
	Fields    map[string]string `yaml:"fields" json:"fields"`
	Path      string            `yaml:"path" json:"path"`
}

func showRun(_ context.Context, opts *StateOptions) error {
	ios := opts.IOStreams

	store, err := opts.store()
	if err != nil {
		return err
	}
	st, err := store.Load()
	if err != nil {
		return err
	}

	// Show defaults for declared fields that were never set.
	fields := make(map[string]string, len(st.Schema().Fields))
	for _, spec := range st.Schema().Fields {
		if v, _ := st.Get(spec.Key); v != "" {
			fields[spec.Key] = v
		}
	}
	view := stateView{
		SetupName: st.SetupName,
		Status:    string(st.Status),
		Provider:  st.ProviderName,
		Kind:      st.Kind,
		Fields:    fields,
		Path:      st.Path(),
	}

	if opts.JSON {
		return cmdutil.OutputJSON(ios, view)
	}
	data, err := yaml.Marshal(view)
	if err != nil {
		return err
	}
	_, err = ios.Out.Write(data)
	return err
}

func closeRun(ctx context.Context, opts *StateOptions) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	store, err := opts.store()
	if err != nil {
		return err
	}
	if _, err := store.Close(ctx); err != nil {
		return err
	}
	ios.Logger.Info().Str("path", store.Path()).Msg("setup closed")
	fmt.Fprintf(ios.ErrOut, "%s Closed %s %s\n", cs.SuccessIcon(), opts.SetupName, opts.SetupDirectory)
	return nil
}
