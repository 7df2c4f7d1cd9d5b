// Package list implements the list command.
package list

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/dispatch"
	"github.com/schmitthub/setup-servers/internal/iostreams"
	"github.com/schmitthub/setup-servers/internal/provider"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	IOStreams  *iostreams.IOStreams
	Dispatcher func() (*dispatch.Dispatcher, error)

	JSON bool
}

// Entry is one provider of an installed sub-command.
type Entry struct {
	Command     string `json:"command"`
	Provider    string `json:"provider"`
	Directory   string `json:"directory"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	// Default is true when the provider is picked without --provider.
	Default bool `json:"default"`
}

// NewCmdList creates the list command.
func NewCmdList(f *cmdutil.Factory, runF func(context.Context, *ListOptions) error) *cobra.Command {
	opts := &ListOptions{
		IOStreams:  f.IOStreams,
		Dispatcher: f.Dispatcher,
	}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed sub-commands and their providers",
		Long: `Lists every setup-* sub-command of the installation and the providers found
in its directory. Listing scans providers the same way run does, so naming
problems such as duplicate provider names are reported here too.`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return listRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")

	return cmd
}

func listRun(_ context.Context, opts *ListOptions) error {
	ios := opts.IOStreams

	d, err := opts.Dispatcher()
	if err != nil {
		return err
	}
	entries, err := Collect(d)
	if err != nil {
		return err
	}

	if opts.JSON {
		return cmdutil.OutputJSON(ios, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(ios.ErrOut, "No sub-commands installed. Run 'setup-servers install' first.")
		return nil
	}

	tp := ios.NewTablePrinter("COMMAND", "PROVIDER", "DIRECTORY", "KIND", "DEFAULT")
	for _, e := range entries {
		def := ""
		if e.Default {
			def = "yes"
		}
		tp.AddRow(e.Command, e.Provider, filepath.Base(e.Directory), e.Kind, def)
	}
	return tp.Render()
}

// Collect scans the providers of every available sub-command.
func Collect(d *dispatch.Dispatcher) ([]Entry, error) {
	names, err := d.Available()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, name := range names {
		reg, err := provider.Scan(d.Context().CommandDir(name), name)
		if err != nil {
			return nil, err
		}
		for _, canonical := range reg.Names() {
			rec, _ := reg.Lookup(canonical)
			e := Entry{
				Command:   name,
				Provider:  canonical,
				Directory: rec.Dir,
				Default:   reg.Len() == 1,
			}
			if path, err := provider.ResolveEntry(rec.Dir, name); err == nil {
				if m, err := provider.ReadManifest(path); err == nil {
					e.Kind = m.Kind
					e.Description = m.Description
				}
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}
