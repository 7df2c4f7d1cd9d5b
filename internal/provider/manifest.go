package provider

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestExt is the extension of provider and command entry points.
const ManifestExt = ".yaml"

// Manifest is a provider entry point. Kind selects the compiled
// implementation; Config is handed to that implementation untouched.
type Manifest struct {
	Kind        string            `yaml:"kind"`
	Description string            `yaml:"description,omitempty"`
	Fields      map[string]string `yaml:"fields,omitempty"`
	Config      map[string]any    `yaml:"config,omitempty"`

	// Path is the file the manifest was read from.
	Path string `yaml:"-"`
}

// ReadManifest parses the manifest at path. Unknown top-level keys are rejected.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provider manifest: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing provider manifest %s: %w", path, err)
	}
	if m.Kind == "" {
		return nil, fmt.Errorf("provider manifest %s: kind is required", path)
	}
	m.Path = path
	return &m, nil
}
