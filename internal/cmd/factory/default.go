package factory

import (
	"context"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/commands/setupdb"
	"github.com/schmitthub/setup-servers/internal/commands/setupfhir"
	"github.com/schmitthub/setup-servers/internal/config"
	"github.com/schmitthub/setup-servers/internal/dispatch"
	"github.com/schmitthub/setup-servers/internal/docker"
	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/iostreams"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/providers/dockerdb"
	"github.com/schmitthub/setup-servers/internal/providers/hapi"
	"github.com/schmitthub/setup-servers/internal/setup"
	"github.com/schmitthub/setup-servers/internal/setupkind"
)

// New creates a fully-wired Factory with lazy-initialized dependency closures.
// Called exactly once at the CLI entry point (internal/setupservers).
// Tests should NOT import this package; construct &cmdutil.Factory{} directly.
func New(version, commit string) *cmdutil.Factory {
	ios := iostreams.NewIOStreams()
	if !ios.IsOutputTTY() || os.Getenv("NO_COLOR") != "" {
		ios.SetColorEnabled(false)
	}

	f := &cmdutil.Factory{
		Version:   version,
		Commit:    commit,
		IOStreams: ios,
	}

	// --- Lazy dependency closures ---
	// Closures read f.HomeDir and f.WorkingDir on first use, after flags
	// have been parsed.

	// Settings live in the marker directory of the home directory.
	var (
		settingsOnce sync.Once
		settings     *config.Settings
		settingsErr  error
	)
	f.Settings = func() (*config.Settings, error) {
		settingsOnce.Do(func() {
			base, err := home.NewContext(f.HomeDir, "")
			if err != nil {
				settingsErr = err
				return
			}
			settings, settingsErr = config.NewSettingsLoader(config.SettingsPath(base.MarkerPath())).Load()
		})
		return settings, settingsErr
	}

	// Orchestration context, shared by every command of the invocation.
	var (
		contextOnce sync.Once
		hctx        *home.Context
		contextErr  error
	)
	f.Context = func() (*home.Context, error) {
		contextOnce.Do(func() {
			workingDir := f.WorkingDir
			if workingDir == "" {
				base, err := home.NewContext(f.HomeDir, "")
				if err != nil {
					contextErr = err
					return
				}
				if s, err := f.Settings(); err == nil {
					workingDir = s.ResolveWorkingDirectory(base.HomeDir)
				}
			}
			hctx, contextErr = home.NewContext(f.HomeDir, workingDir)
		})
		return hctx, contextErr
	}

	// Docker client
	var (
		dockerOnce sync.Once
		client     *docker.Client
		dockerErr  error
	)
	f.Docker = func(ctx context.Context) (*docker.Client, error) {
		dockerOnce.Do(func() {
			labels := docker.LabelConfig{Prefix: config.DefaultLabelPrefix}
			if s, err := f.Settings(); err == nil {
				labels.Prefix = s.Docker.LabelPrefix
			}
			client, dockerErr = docker.NewClient(ctx, labels)
		})
		return client, dockerErr
	}
	f.CloseDocker = func() {
		if client != nil {
			_ = client.Close()
		}
	}

	// Orchestrator, with the provider catalog bound to the settings.
	var (
		orchOnce sync.Once
		orch     *setup.Orchestrator
		orchErr  error
	)
	f.Orchestrator = func() (*setup.Orchestrator, error) {
		orchOnce.Do(func() {
			c, err := f.Context()
			if err != nil {
				orchErr = err
				return
			}
			s, err := f.Settings()
			if err != nil {
				orchErr = err
				return
			}
			loader := provider.NewLoader(providerCatalog(f, s), nil)
			orch = setup.NewOrchestrator(c, loader, ios.Logger)
		})
		return orch, orchErr
	}

	// Dispatcher, with the built-in chainable commands.
	var (
		dispatcherOnce sync.Once
		dispatcher     *dispatch.Dispatcher
		dispatcherErr  error
	)
	f.Dispatcher = func() (*dispatch.Dispatcher, error) {
		dispatcherOnce.Do(func() {
			c, err := f.Context()
			if err != nil {
				dispatcherErr = err
				return
			}
			dispatcher = dispatch.New(c, commandCatalog(f), nil, ios.Logger)
		})
		return dispatcher, dispatcherErr
	}

	return f
}

// providerCatalog binds manifest kinds to the compiled providers.
func providerCatalog(f *cmdutil.Factory, s *config.Settings) provider.Catalog {
	return provider.Catalog{
		dockerdb.Kind: dockerdb.NewFactory(dockerdb.Deps{
			Docker:       f.Docker,
			ReadyTimeout: s.Docker.ReadyTimeout,
		}),
		hapi.Kind: hapi.NewFactory(hapi.Deps{
			Defaults: hapi.Config{
				GitURL:       s.Hapi.GitURL,
				MavenURL:     s.Hapi.MavenURL,
				MavenVersion: s.Hapi.MavenVersion,
				Port:         s.Hapi.DefaultPort,
			},
		}),
	}
}

// commandCatalog binds command manifests to the chainable sub-commands.
func commandCatalog(f *cmdutil.Factory) dispatch.Catalog {
	chain := func(build func(*cmdutil.Factory) *cobra.Command) dispatch.Factory {
		return func(*dispatch.Manifest) (dispatch.Command, error) {
			return cmdutil.ChainCommand(func(hctx *home.Context) *cobra.Command {
				return build(scoped(f, hctx))
			}), nil
		}
	}
	return dispatch.Catalog{
		setupkind.DBSetupName: chain(func(f *cmdutil.Factory) *cobra.Command {
			return setupdb.NewCmdSetupDB(f, nil)
		}),
		setupkind.FHIRSetupName: chain(func(f *cmdutil.Factory) *cobra.Command {
			return setupfhir.NewCmdSetupFHIR(f, nil)
		}),
	}
}

// scoped returns a copy of f whose Context and Orchestrator are bound to
// hctx. The orchestrator keeps sharing the provider cache of f.
func scoped(f *cmdutil.Factory, hctx *home.Context) *cmdutil.Factory {
	if hctx == nil {
		return f
	}
	sub := *f
	sub.Context = func() (*home.Context, error) { return hctx, nil }
	sub.Orchestrator = func() (*setup.Orchestrator, error) {
		orch, err := f.Orchestrator()
		if err != nil {
			return nil, err
		}
		return orch.WithContext(hctx), nil
	}
	return &sub
}
