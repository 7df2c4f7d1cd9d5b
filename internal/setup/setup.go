// Package setup runs one setup: it reconciles the requested configuration
// with the persisted state, resolves and invokes a provider, and records the
// outcome.
package setup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/logger"
	"github.com/schmitthub/setup-servers/internal/naming"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/state"
)

// ProviderField is the name reported by ConfigMismatchError for a provider change.
const ProviderField = "provider"

// ErrConfigMismatch is returned when a request conflicts with an applied setup.
var ErrConfigMismatch = errors.New("configuration mismatch")

// ConfigMismatchError names the conflicting field and both values.
type ConfigMismatchError struct {
	Field     string
	Requested string
	Persisted string
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: requested %q but setup was created with %q", e.Field, e.Requested, e.Persisted)
}

func (e *ConfigMismatchError) Is(target error) bool { return target == ErrConfigMismatch }

// Request describes one setup run.
type Request struct {
	// SetupName is the sub-command kind, e.g. "setup-db". It names the
	// provider root and the state file.
	SetupName string
	// SetupDirectory is the instance directory under the working directory.
	SetupDirectory string
	Schema         state.Schema
	Fields         map[string]string
	// Provider optionally names the provider; empty reuses the persisted one
	// or requires a single candidate.
	Provider string
	Actions  []string
}

// Result reports a successful run.
type Result struct {
	State    *state.SetupState
	Provider string
	Identity string
	Duration time.Duration
}

// Orchestrator runs setups against one home.Context.
type Orchestrator struct {
	ctx    *home.Context
	loader *provider.Loader
	log    logger.Logger
}

// NewOrchestrator creates an Orchestrator. A nil log uses the global logger.
func NewOrchestrator(hctx *home.Context, loader *provider.Loader, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Global()
	}
	return &Orchestrator{ctx: hctx, loader: loader, log: log}
}

// Context returns the orchestration context.
func (o *Orchestrator) Context() *home.Context { return o.ctx }

// WithContext returns an Orchestrator for hctx that shares the provider
// cache of o.
func (o *Orchestrator) WithContext(hctx *home.Context) *Orchestrator {
	if hctx == nil || hctx == o.ctx {
		return o
	}
	return &Orchestrator{ctx: hctx, loader: o.loader, log: o.log}
}

// StatePath returns the state file of a setup instance.
func (o *Orchestrator) StatePath(setupName, setupDirectory string) string {
	return state.Path(o.ctx.SetupDir(setupDirectory), setupName)
}

// Run executes req. The state file is locked for the whole run. Validation
// happens before any provider is invoked, and state is only written as
// Current after a successful apply.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.SetupName == "" || req.SetupDirectory == "" {
		return nil, fmt.Errorf("setup name and setup directory are required")
	}
	logger.SetSetup(req.SetupName + "/" + req.SetupDirectory)
	defer logger.SetSetup("")

	store := state.NewStore(o.StatePath(req.SetupName, req.SetupDirectory), req.Schema)
	unlock, err := store.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, err := store.LoadOrCreate()
	if err != nil {
		return nil, err
	}
	if err := st.CheckOpen(); err != nil {
		return nil, err
	}
	if err := req.Schema.Validate(req.Fields); err != nil {
		return nil, err
	}

	providerName, err := o.reconcile(st, req)
	if err != nil {
		return nil, err
	}

	reg, err := provider.Scan(filepath.Join(o.ctx.HomeDir, req.SetupName), req.SetupName)
	if err != nil {
		return nil, err
	}
	rec, err := reg.Resolve(providerName)
	if err != nil {
		var nf *provider.NotFoundError
		if errors.As(err, &nf) {
			nf.SetupName = req.SetupName
		}
		return nil, err
	}
	unit, err := o.loader.Load(req.SetupName, rec)
	if err != nil {
		return nil, err
	}
	if st.IsNew() {
		if err := adoptDefaults(st, unit.Manifest); err != nil {
			return nil, err
		}
	}

	inv := &provider.Invocation{
		Context:     o.ctx,
		State:       st,
		SetupDir:    o.ctx.SetupDir(req.SetupDirectory),
		ProviderDir: unit.Dir,
		Manifest:    unit.Manifest,
		Actions:     req.Actions,
		Logger:      o.log,
	}
	if !unit.Provider.CanHandle(ctx, inv) {
		return nil, &provider.DeclinedError{Provider: unit.Name, SetupName: req.SetupName}
	}

	o.log.Info().Str("provider", unit.Name).Strs("actions", req.Actions).Msg("applying provider")
	if err := unit.Provider.Apply(ctx, inv); err != nil {
		return nil, &provider.ApplyError{Provider: unit.Name, Err: err}
	}

	st.Status = state.StatusCurrent
	st.ProviderName = unit.Name
	if err := store.Save(st); err != nil {
		return nil, err
	}

	return &Result{
		State:    st,
		Provider: unit.Name,
		Identity: unit.Identity,
		Duration: time.Since(start),
	}, nil
}

// reconcile checks req against an applied state, or adopts it into a New
// one, and returns the provider name to resolve.
func (o *Orchestrator) reconcile(st *state.SetupState, req Request) (string, error) {
	keys := make([]string, 0, len(req.Fields))
	for k := range req.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if st.IsNew() {
		st.SetupName = req.SetupName
		for _, k := range keys {
			if err := st.Set(k, req.Fields[k]); err != nil {
				return "", err
			}
		}
		return req.Provider, nil
	}

	if st.SetupName != "" && st.SetupName != req.SetupName {
		return "", &ConfigMismatchError{Field: "setup_name", Requested: req.SetupName, Persisted: st.SetupName}
	}

	// Check every immutable field before changing anything.
	for _, k := range keys {
		spec, _ := req.Schema.Field(k)
		if !spec.Immutable {
			continue
		}
		persisted, err := st.Get(k)
		if err != nil {
			return "", err
		}
		if persisted != req.Fields[k] {
			return "", &ConfigMismatchError{Field: k, Requested: req.Fields[k], Persisted: persisted}
		}
	}

	providerName := st.ProviderName
	if req.Provider != "" {
		requested, err := naming.Normalize(req.Provider)
		if err != nil {
			return "", err
		}
		if st.ProviderName != "" && requested != st.ProviderName {
			return "", &ConfigMismatchError{Field: ProviderField, Requested: req.Provider, Persisted: st.ProviderName}
		}
		providerName = req.Provider
	}

	for _, k := range keys {
		if err := st.Set(k, req.Fields[k]); err != nil {
			return "", err
		}
	}
	return providerName, nil
}

// adoptDefaults fills fields the request left unset from the manifest.
func adoptDefaults(st *state.SetupState, m *provider.Manifest) error {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := st.Fields[k]; ok {
			continue
		}
		if err := st.Set(k, m.Fields[k]); err != nil {
			return fmt.Errorf("provider manifest %s: %w", m.Path, err)
		}
	}
	return nil
}
