// Package provider discovers, loads and describes the swappable
// implementations that perform provisioning for a setup.
//
// Providers live in directories under <home>/<setup-name>. A directory name
// follows the [PREFIX--]STEM[--SUFFIX] convention and carries a YAML
// manifest whose kind binds it to a compiled implementation from a Catalog.
package provider

import (
	"context"
	"sort"

	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/logger"
	"github.com/schmitthub/setup-servers/internal/state"
)

// Provider is the two-step contract invoked by the orchestrator.
type Provider interface {
	// CanHandle reports whether the provider can serve this invocation.
	CanHandle(ctx context.Context, inv *Invocation) bool
	// Apply performs the provisioning. Only Apply may touch the outside world.
	Apply(ctx context.Context, inv *Invocation) error
}

// Invocation carries everything a provider sees for one setup.
type Invocation struct {
	Context  *home.Context
	State    *state.SetupState
	SetupDir string
	// ProviderDir is the directory the provider was discovered in.
	ProviderDir string
	Manifest    *Manifest
	Actions     []string
	Logger      logger.Logger
}

// HasAction reports whether action was requested.
func (inv *Invocation) HasAction(action string) bool {
	for _, a := range inv.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Factory builds a provider from its manifest.
type Factory func(m *Manifest) (Provider, error)

// Catalog maps manifest kinds to compiled implementations.
type Catalog map[string]Factory

// Kinds returns the registered kinds, sorted.
func (c Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
