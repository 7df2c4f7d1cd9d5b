// Package hapi provides the HAPI FHIR JPA starter server. It downloads
// Maven, checks out the starter at the requested git ref, builds it when the
// checked-out commit changed and runs the packaged war with java.
package hapi

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/schmitthub/setup-servers/internal/git"
	"github.com/schmitthub/setup-servers/internal/netutil"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/setupkind"
)

// Kind is the manifest kind bound to this provider.
const Kind = "hapi-jpa-starter"

// Layout of a FHIR setup directory.
const (
	RepoDir     = "hapi-jpa-starter"
	RunDir      = "hapi-run"
	MavenRepo   = ".m2"
	WarFile     = "ROOT.war"
	LocalConfig = "application-local.yaml"
	ServerLog   = "hapi.log"
)

// Config is the manifest config section. Empty values fall back to the
// installation settings.
type Config struct {
	GitURL       string `mapstructure:"git_url"`
	MavenURL     string `mapstructure:"maven_url"`
	MavenVersion string `mapstructure:"maven_version"`
	// Port is the preferred HTTP port; a free one is chosen when it is taken.
	Port int `mapstructure:"port"`
	// Java is the java executable.
	Java string `mapstructure:"java"`
}

// Deps are the collaborators of the provider.
type Deps struct {
	// Defaults fills unset Config values.
	Defaults   Config
	HTTPClient *http.Client
	Runner     Runner
	// Sync checks out ref in dir and returns the commit SHA.
	Sync func(ctx context.Context, dir, url, ref string) (string, error)
}

// Provider builds and runs one HAPI server per setup.
type Provider struct {
	cfg  Config
	deps Deps
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

	if cfg.GitURL == "" {
		cfg.GitURL = deps.Defaults.GitURL
	}
	if cfg.MavenURL == "" {
		cfg.MavenURL = deps.Defaults.MavenURL
	}
	if cfg.MavenVersion == "" {
		cfg.MavenVersion = deps.Defaults.MavenVersion
	}
	if cfg.Port == 0 {
		cfg.Port = deps.Defaults.Port
	}
	if cfg.Java == "" {
		cfg.Java = "java"
	}
	if cfg.GitURL == "" || cfg.MavenURL == "" || cfg.MavenVersion == "" {
		return nil, fmt.Errorf("%s config: git_url, maven_url and maven_version are required", m.Path)
	}

	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if deps.Runner == nil {
		deps.Runner = ExecRunner{}
	}
	if deps.Sync == nil {
		deps.Sync = git.Sync
	}
	return &Provider{cfg: cfg, deps: deps}, nil
}

// Config returns the effective config.
func (p *Provider) Config() Config { return p.cfg }

// CanHandle declines unknown actions and setups without a git ref.
func (p *Provider) CanHandle(_ context.Context, inv *provider.Invocation) bool {
	for _, a := range inv.Actions {
		if a != setupkind.ActionHapiStart && a != setupkind.ActionHapiStop {
			inv.Logger.Warn().Str("action", a).Msg("unknown FHIR server action")
			return false
		}
	}
	ref, err := inv.State.Get(setupkind.FieldGitRef)
	return err == nil && ref != ""
}

// Apply runs the requested actions in order. With no actions the server is
// started.
func (p *Provider) Apply(ctx context.Context, inv *provider.Invocation) error {
	actions := inv.Actions
	if len(actions) == 0 {
		actions = []string{setupkind.ActionHapiStart}
	}
	for _, action := range actions {
		var err error
		switch action {
		case setupkind.ActionHapiStart:
			err = p.start(ctx, inv)
		case setupkind.ActionHapiStop:
			err = p.stop(inv)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
	}
	return nil
}

type layout struct {
	setupDir string
}

func (l layout) repo() string      { return filepath.Join(l.setupDir, RepoDir) }
func (l layout) run() string       { return filepath.Join(l.setupDir, RunDir) }
func (l layout) mavenRepo() string { return filepath.Join(l.setupDir, MavenRepo) }

func (p *Provider) start(ctx context.Context, inv *provider.Invocation) error {
	st := inv.State
	dirs := layout{setupDir: inv.SetupDir}
	log := inv.Logger

	mvn, err := p.ensureMaven(ctx, inv.SetupDir, log)
	if err != nil {
		return err
	}

	ref, err := st.Get(setupkind.FieldGitRef)
	if err != nil {
		return err
	}
	log.Info().Str("ref", ref).Str("url", p.cfg.GitURL).Msg("checking out HAPI JPA starter")
	requested, err := p.deps.Sync(ctx, dirs.repo(), p.cfg.GitURL, ref)
	if err != nil {
		return err
	}

	if err := p.reconcilePID(inv); err != nil {
		return err
	}
	status, _ := st.Get(setupkind.FieldServerStatus)
	built, _ := st.Get(setupkind.FieldGitSHA)

	if built != requested {
		if status == setupkind.ServerStatusRunning {
			return fmt.Errorf("server is running a build of %s, run hapi-stop before starting %s", short(built), short(requested))
		}
		if err := p.build(ctx, mvn, dirs, log); err != nil {
			return err
		}
		if err := st.Set(setupkind.FieldGitSHA, requested); err != nil {
			return err
		}
		if err := st.Set(setupkind.FieldServerStatus, setupkind.ServerStatusBuilt); err != nil {
			return err
		}
	} else if status == setupkind.ServerStatusRunning {
		log.Info().Str("sha", short(requested)).Msg("HAPI server already running")
		return nil
	}

	port, err := netutil.FreePort("127.0.0.1", p.cfg.Port)
	if err != nil {
		return err
	}
	fhirURL := fmt.Sprintf("http://localhost:%d/fhir", port)
	if err := writeLocalConfig(filepath.Join(dirs.run(), LocalConfig), port, fhirURL); err != nil {
		return err
	}

	args, err := p.javaArgs(inv, dirs)
	if err != nil {
		return err
	}
	pid, err := p.deps.Runner.Start(dirs.run(), filepath.Join(dirs.run(), ServerLog), p.cfg.Java, args...)
	if err != nil {
		return fmt.Errorf("starting HAPI server: %w", err)
	}

	for key, value := range map[string]string{
		setupkind.FieldFHIRPort:     strconv.Itoa(port),
		setupkind.FieldFHIRURL:      fhirURL,
		setupkind.FieldPID:          strconv.Itoa(pid),
		setupkind.FieldServerStatus: setupkind.ServerStatusRunning,
	} {
		if err := st.Set(key, value); err != nil {
			return err
		}
	}
	log.Info().Str("url", fhirURL).Int("pid", pid).Msg("started HAPI server")
	return nil
}

// reconcilePID forgets a recorded server process that no longer exists.
func (p *Provider) reconcilePID(inv *provider.Invocation) error {
	pid, ok := recordedPID(inv)
	if !ok || p.deps.Runner.Alive(pid) {
		return nil
	}
	inv.Logger.Debug().Int("pid", pid).Msg("recorded HAPI process is gone")
	if err := inv.State.Unset(setupkind.FieldPID); err != nil {
		return err
	}
	return inv.State.Set(setupkind.FieldServerStatus, setupkind.ServerStatusStopped)
}

func recordedPID(inv *provider.Invocation) (int, bool) {
	v, err := inv.State.Get(setupkind.FieldPID)
	if err != nil || v == "" {
		return 0, false
	}
	pid, err := strconv.Atoi(v)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func (p *Provider) stop(inv *provider.Invocation) error {
	if pid, ok := recordedPID(inv); ok && p.deps.Runner.Alive(pid) {
		if err := p.deps.Runner.Interrupt(pid); err != nil {
			return fmt.Errorf("interrupting HAPI server %d: %w", pid, err)
		}
		inv.Logger.Info().Int("pid", pid).Msg("stopped HAPI server")
	}
	if err := inv.State.Unset(setupkind.FieldPID); err != nil {
		return err
	}
	return inv.State.Set(setupkind.FieldServerStatus, setupkind.ServerStatusStopped)
}

func short(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	if sha == "" {
		return "nothing"
	}
	return sha
}
