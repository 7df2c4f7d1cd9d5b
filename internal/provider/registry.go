package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schmitthub/setup-servers/internal/logger"
	"github.com/schmitthub/setup-servers/internal/naming"
)

// Record is one provider candidate found by a scan.
type Record struct {
	Name naming.Name
	Dir  string
}

// Canonical returns the record's canonical provider name.
func (r Record) Canonical() string { return r.Name.Canonical }

// Registry maps canonical provider names to their directories.
type Registry struct {
	root    string
	records map[string]Record
}

// Scan builds a registry from the immediate subdirectories of root, skipping
// exclude and hidden directories. Directory names are visited in sorted order
// so diagnostics are deterministic.
func Scan(root, exclude string) (*Registry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scanning providers in %s: %w", root, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || e.Name() == exclude || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	reg := &Registry{root: root, records: make(map[string]Record, len(names))}
	for _, raw := range names {
		n, err := naming.Parse(raw)
		if err != nil {
			return nil, err
		}
		if err := n.Valid(); err != nil {
			return nil, err
		}
		dir := filepath.Join(root, raw)
		if prev, ok := reg.records[n.Canonical]; ok {
			return nil, &DuplicateNameError{Name: n.Canonical, First: prev.Dir, Second: dir}
		}
		reg.records[n.Canonical] = Record{Name: n, Dir: dir}
	}

	logger.Debug().Str("root", root).Strs("providers", reg.Names()).Msg("scanned providers")
	return reg, nil
}

// Root returns the scanned directory.
func (r *Registry) Root() string { return r.root }

// Len returns the number of providers.
func (r *Registry) Len() int { return len(r.records) }

// Names returns the canonical names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.records))
	for name := range r.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a provider by name. The requested name is normalized first,
// so "Postgres" and "pg--postgres" both find "postgres".
func (r *Registry) Lookup(name string) (Record, bool) {
	canonical, err := naming.Normalize(name)
	if err != nil {
		return Record{}, false
	}
	rec, ok := r.records[canonical]
	return rec, ok
}

// Resolve picks the provider to use. A non-empty override must name a
// registered provider; otherwise exactly one provider must exist.
func (r *Registry) Resolve(override string) (Record, error) {
	if override != "" {
		rec, ok := r.Lookup(override)
		if !ok {
			return Record{}, &NotFoundError{Name: override, Dir: r.root, Available: r.Names()}
		}
		return rec, nil
	}

	switch len(r.records) {
	case 0:
		return Record{}, &NotFoundError{Dir: r.root}
	case 1:
		for _, rec := range r.records {
			return rec, nil
		}
	}
	return Record{}, &AmbiguousError{Candidates: r.Names()}
}
