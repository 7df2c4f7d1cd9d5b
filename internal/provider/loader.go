package provider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schmitthub/setup-servers/internal/logger"
	"github.com/schmitthub/setup-servers/internal/naming"
	"github.com/schmitthub/setup-servers/internal/unitcache"
)

// Unit is a loaded provider.
type Unit struct {
	Identity string
	Name     string
	Dir      string
	Manifest *Manifest
	Provider Provider
}

// Loader resolves provider entry points and loads each identity once.
type Loader struct {
	catalog Catalog
	cache   *unitcache.Cache[*Unit]
}

// NewLoader creates a Loader. A nil cache gets a private one.
func NewLoader(catalog Catalog, cache *unitcache.Cache[*Unit]) *Loader {
	if cache == nil {
		cache = unitcache.New[*Unit]()
	}
	return &Loader{catalog: catalog, cache: cache}
}

// ResolveEntry returns the entry point of a provider directory:
// <dir>/<entry stem>.yaml, else <dir>/<fallback>.yaml.
func ResolveEntry(dir, fallback string) (string, error) {
	n, err := naming.Parse(filepath.Base(dir))
	if err != nil {
		return "", err
	}

	candidates := []string{n.EntryStem()}
	if fallback != "" && fallback != n.EntryStem() {
		candidates = append(candidates, fallback)
	}
	for _, stem := range candidates {
		path := filepath.Join(dir, stem+ManifestExt)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking provider entry %s: %w", path, err)
		}
	}
	return "", &NotFoundError{Dir: dir, SetupName: fallback}
}

// Load returns the unit for rec as used by setupName. The first load of an
// identity reads the manifest and runs the catalog factory; later loads
// return the same unit.
func (l *Loader) Load(setupName string, rec Record) (*Unit, error) {
	identity := naming.Identity(setupName, rec.Name)

	unit, hit, err := l.cache.Load(identity, func() (*Unit, error) {
		entry, err := ResolveEntry(rec.Dir, setupName)
		if err != nil {
			return nil, err
		}
		m, err := ReadManifest(entry)
		if err != nil {
			return nil, err
		}
		factory, ok := l.catalog[m.Kind]
		if !ok {
			return nil, &NotFoundError{Name: m.Kind, Dir: rec.Dir, SetupName: setupName, Available: l.catalog.Kinds()}
		}
		p, err := factory(m)
		if err != nil {
			return nil, fmt.Errorf("loading provider %s: %w", rec.Canonical(), err)
		}
		return &Unit{
			Identity: identity,
			Name:     rec.Canonical(),
			Dir:      rec.Dir,
			Manifest: m,
			Provider: p,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("identity", identity).Bool("cached", hit).Msg("loaded provider")
	return unit, nil
}
