package dispatch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/schmitthub/setup-servers/internal/naming"
	"github.com/schmitthub/setup-servers/internal/provider"
)

// Manifest is a command entry point.
type Manifest struct {
	// Command selects the compiled command.
	Command     string `yaml:"command"`
	Description string `yaml:"description,omitempty"`

	Path string `yaml:"-"`
}

// ReadManifest parses the command manifest at path. Unknown keys are rejected.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading command manifest: %w", err)
	}
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing command manifest %s: %w", path, err)
	}
	if m.Command == "" {
		return nil, fmt.Errorf("command manifest %s: command is required", path)
	}
	m.Path = path
	return &m, nil
}

// Unit is a loaded sub-command.
type Unit struct {
	Identity string
	Name     string
	Dir      string
	Manifest *Manifest
	Command  Command
}

// EntryPath returns <home>/<name>/<name>/<name>.yaml.
func (d *Dispatcher) EntryPath(name string) string {
	return filepath.Join(d.ctx.CommandDir(name), name, name+provider.ManifestExt)
}

// Load returns the sub-command called name, loading it on first use. Command
// directories share the provider naming rules and identity scheme.
func (d *Dispatcher) Load(name string) (*Unit, error) {
	n, err := naming.Parse(name)
	if err != nil {
		return nil, err
	}
	if err := n.Valid(); err != nil {
		return nil, err
	}
	identity := naming.Identity(name, n)

	unit, hit, err := d.cache.Load(identity, func() (*Unit, error) {
		dir := filepath.Join(d.ctx.CommandDir(name), name)
		entry, err := provider.ResolveEntry(dir, name)
		if err != nil {
			return nil, err
		}
		m, err := ReadManifest(entry)
		if err != nil {
			return nil, err
		}
		factory, ok := d.catalog[m.Command]
		if !ok {
			return nil, &provider.NotFoundError{Name: m.Command, Dir: dir, SetupName: name, Available: d.catalog.Kinds()}
		}
		cmd, err := factory(m)
		if err != nil {
			return nil, fmt.Errorf("loading command %s: %w", name, err)
		}
		return &Unit{Identity: identity, Name: name, Dir: dir, Manifest: m, Command: cmd}, nil
	})
	if err != nil {
		return nil, err
	}
	d.log.Debug().Str("identity", identity).Bool("cached", hit).Msg("loaded command")
	return unit, nil
}
