// Package dockerdb provides database servers running in Docker containers.
// One implementation serves every engine; the provider manifest supplies the
// image, port and environment of the engine.
package dockerdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/mitchellh/mapstructure"

	"github.com/schmitthub/setup-servers/internal/docker"
	"github.com/schmitthub/setup-servers/internal/netutil"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/setupkind"
	"github.com/schmitthub/setup-servers/internal/state"
)

// Kind is the manifest kind bound to this provider.
const Kind = "dockerdb"

// Config is the manifest config section.
type Config struct {
	// Engine is recorded as dbs_type, e.g. "postgres" or "mysql".
	Engine string `mapstructure:"engine"`
	Image  string `mapstructure:"image"`
	// ContainerPort is the port the server listens on inside the container.
	// The same host port is preferred when it is free.
	ContainerPort int `mapstructure:"container_port"`
	// Versions is a semver constraint on dbs_version, e.g. ">= 12".
	Versions string            `mapstructure:"versions"`
	Env      map[string]string `mapstructure:"env"`
	// DBNameEnv receives dbs_name, e.g. POSTGRES_DB.
	DBNameEnv string `mapstructure:"db_name_env"`
	// StopTimeout is the grace period in seconds before a stop kills the server.
	StopTimeout int `mapstructure:"stop_timeout"`
}

// Deps are the collaborators of the provider.
type Deps struct {
	Docker       func(context.Context) (*docker.Client, error)
	ReadyTimeout time.Duration
}

// Provider manages one database container per setup.
type Provider struct {
	cfg        Config
	constraint *semver.Constraints
	deps       Deps
}

// NewFactory returns the catalog factory for Kind.
func NewFactory(deps Deps) provider.Factory {
	return func(m *provider.Manifest) (provider.Provider, error) {
		return New(m, deps)
	}
}

// New builds a provider from its manifest. Unknown config keys are rejected.
func New(m *provider.Manifest, deps Deps) (*Provider, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m.Config); err != nil {
		return nil, fmt.Errorf("%s config: %w", m.Path, err)
	}

	if cfg.Engine == "" || cfg.Image == "" {
		return nil, fmt.Errorf("%s config: engine and image are required", m.Path)
	}
	if cfg.ContainerPort <= 0 || cfg.ContainerPort > 65535 {
		return nil, fmt.Errorf("%s config: container_port %d out of range", m.Path, cfg.ContainerPort)
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10
	}
	if deps.ReadyTimeout <= 0 {
		deps.ReadyTimeout = time.Minute
	}

	p := &Provider{cfg: cfg, deps: deps}
	if cfg.Versions != "" {
		c, err := semver.NewConstraint(cfg.Versions)
		if err != nil {
			return nil, fmt.Errorf("%s config: versions: %w", m.Path, err)
		}
		p.constraint = c
	}
	return p, nil
}

// Config returns the decoded manifest config.
func (p *Provider) Config() Config { return p.cfg }

// CanHandle declines versions outside the manifest's constraint and actions
// it does not know.
func (p *Provider) CanHandle(_ context.Context, inv *provider.Invocation) bool {
	for _, a := range inv.Actions {
		if !isDBAction(a) {
			inv.Logger.Warn().Str("action", a).Msg("unknown database action")
			return false
		}
	}

	version, err := inv.State.Get(setupkind.FieldDBVersion)
	if err != nil {
		return false
	}
	if version == "" {
		return true
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		inv.Logger.Warn().Str("version", version).Err(err).Msg("database version is not a semantic version")
		return false
	}
	if p.constraint != nil && !p.constraint.Check(v) {
		inv.Logger.Info().Str("version", version).Str("constraint", p.cfg.Versions).Msg("database version not supported by provider")
		return false
	}
	return true
}

func isDBAction(a string) bool {
	for _, known := range setupkind.DBActions {
		if a == known {
			return true
		}
	}
	return false
}

// Apply runs the requested actions in order. With no actions the database
// is created and started.
func (p *Provider) Apply(ctx context.Context, inv *provider.Invocation) error {
	actions := inv.Actions
	if len(actions) == 0 {
		actions = []string{setupkind.ActionCreate, setupkind.ActionStart}
	}

	cli, err := p.deps.Docker(ctx)
	if err != nil {
		return err
	}

	for _, action := range actions {
		inv.Logger.Debug().Str("action", action).Msg("database action")
		var err error
		switch action {
		case setupkind.ActionCreate:
			err = p.create(ctx, cli, inv)
		case setupkind.ActionStart:
			err = p.start(ctx, cli, inv)
		case setupkind.ActionStop:
			err = p.stop(ctx, cli, inv)
		case setupkind.ActionRemove:
			err = p.remove(ctx, cli, inv)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
	}
	return nil
}

func (p *Provider) imageRef(version string) string {
	if version == "" {
		return p.cfg.Image + ":latest"
	}
	return p.cfg.Image + ":" + version
}

// existing returns the recorded container id when the container still exists.
func existing(ctx context.Context, cli *docker.Client, st *state.SetupState) (string, bool, error) {
	id, err := st.Get(setupkind.FieldContainerID)
	if err != nil || id == "" {
		return "", false, err
	}
	if _, err := cli.InspectContainer(ctx, id); err != nil {
		if errors.Is(err, docker.ErrContainerNotFound) {
			return id, false, nil
		}
		return "", false, err
	}
	return id, true, nil
}

func (p *Provider) owner(inv *provider.Invocation) docker.Owner {
	return docker.Owner{
		SetupName:      inv.State.SetupName,
		SetupDirectory: inv.SetupDir,
		Provider:       p.cfg.Engine,
	}
}

func (p *Provider) create(ctx context.Context, cli *docker.Client, inv *provider.Invocation) error {
	st := inv.State
	if _, ok, err := existing(ctx, cli, st); err != nil || ok {
		return err
	}

	name := netutil.ContainerName(st.SetupName, inv.SetupDir, p.cfg.Engine)
	if adopted, err := p.adopt(ctx, cli, inv, name); err != nil || adopted {
		return err
	}

	version, err := st.Get(setupkind.FieldDBVersion)
	if err != nil {
		return err
	}
	dbName, err := st.Get(setupkind.FieldDBName)
	if err != nil {
		return err
	}

	port, err := netutil.FreePort("127.0.0.1", p.cfg.ContainerPort)
	if err != nil {
		return err
	}

	ref := p.imageRef(version)
	if err := cli.PullImage(ctx, ref); err != nil {
		return err
	}

	id, err := cli.CreateContainer(ctx, docker.ContainerSpec{
		Name:  name,
		Image: ref,
		Env:   p.env(dbName),
		Ports: map[string]int{p.containerPort(): port},
		Owner: p.owner(inv),
	})
	if err != nil {
		return err
	}

	if err := p.record(st, id, name, port); err != nil {
		return err
	}
	inv.Logger.Info().Str("container", name).Int("port", port).Msg("created database container")
	return nil
}

func (p *Provider) containerPort() string {
	return strconv.Itoa(p.cfg.ContainerPort) + "/tcp"
}

// adopt records a container left under name by an earlier run whose state
// was never saved, e.g. when start failed after create. A container with
// that name owned by anything else is an error.
func (p *Provider) adopt(ctx context.Context, cli *docker.Client, inv *provider.Invocation, name string) (bool, error) {
	info, err := cli.InspectContainer(ctx, name)
	if errors.Is(err, docker.ErrContainerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !cli.Labels().IsOwnedBy(info.Labels, p.owner(inv)) {
		return false, fmt.Errorf("container name %s is taken by a container this setup does not manage", name)
	}
	port, ok := info.HostPorts[p.containerPort()]
	if !ok {
		return false, fmt.Errorf("container %s has no host port for %s", name, p.containerPort())
	}

	if err := p.record(inv.State, info.ID, name, port); err != nil {
		return false, err
	}
	inv.Logger.Info().Str("container", name).Int("port", port).Msg("adopted existing database container")
	return true, nil
}

func (p *Provider) record(st *state.SetupState, id, name string, port int) error {
	for key, value := range map[string]string{
		setupkind.FieldContainerID:   id,
		setupkind.FieldContainerName: name,
		setupkind.FieldDBPort:        strconv.Itoa(port),
		setupkind.FieldDBType:        p.cfg.Engine,
		setupkind.FieldServerStatus:  setupkind.ServerStatusCreated,
	} {
		if err := st.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) env(dbName string) []string {
	env := make([]string, 0, len(p.cfg.Env)+1)
	for k, v := range p.cfg.Env {
		env = append(env, k+"="+v)
	}
	if p.cfg.DBNameEnv != "" && dbName != "" {
		env = append(env, p.cfg.DBNameEnv+"="+dbName)
	}
	sort.Strings(env)
	return env
}

func (p *Provider) start(ctx context.Context, cli *docker.Client, inv *provider.Invocation) error {
	id, ok, err := existing(ctx, cli, inv.State)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no database container for setup %s, run the create action first", inv.SetupDir)
	}
	if err := cli.StartContainer(ctx, id); err != nil {
		return err
	}
	if err := cli.WaitRunning(ctx, id, p.deps.ReadyTimeout); err != nil {
		return err
	}
	return inv.State.Set(setupkind.FieldServerStatus, setupkind.ServerStatusRunning)
}

func (p *Provider) stop(ctx context.Context, cli *docker.Client, inv *provider.Invocation) error {
	id, ok, err := existing(ctx, cli, inv.State)
	if err != nil {
		return err
	}
	if ok {
		if err := cli.StopContainer(ctx, id, p.cfg.StopTimeout); err != nil {
			return err
		}
	}
	return inv.State.Set(setupkind.FieldServerStatus, setupkind.ServerStatusStopped)
}

func (p *Provider) remove(ctx context.Context, cli *docker.Client, inv *provider.Invocation) error {
	id, ok, err := existing(ctx, cli, inv.State)
	if err != nil {
		return err
	}
	if ok {
		if err := cli.RemoveContainer(ctx, id); err != nil && !errors.Is(err, docker.ErrContainerNotFound) {
			return err
		}
	}
	for _, key := range []string{setupkind.FieldContainerID, setupkind.FieldContainerName, setupkind.FieldDBPort} {
		if err := inv.State.Unset(key); err != nil {
			return err
		}
	}
	return inv.State.Set(setupkind.FieldServerStatus, setupkind.ServerStatusRemoved)
}
