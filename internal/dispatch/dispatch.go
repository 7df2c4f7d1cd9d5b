// Package dispatch runs chains of sub-commands found in an installation root.
//
// Every <home>/setup-* directory except the dispatcher's own is a chainable
// sub-command. Its entry point <home>/<name>/<name>/<name>.yaml names the
// compiled command it runs. One invocation line can hold several commands;
// they run strictly left to right against one shared home.Context and the
// chain stops at the first failure.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/logger"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/unitcache"
)

var (
	// ErrNoCommand is returned for an empty chain.
	ErrNoCommand = errors.New("no sub-command given")

	// ErrUnknownCommand is returned when a chain starts with something other
	// than an available sub-command.
	ErrUnknownCommand = errors.New("unknown sub-command")
)

// UnknownCommandError names the offending token and what would have matched.
type UnknownCommandError struct {
	Name      string
	Available []string
}

func (e *UnknownCommandError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown sub-command %q: no sub-commands are installed", e.Name)
	}
	return fmt.Sprintf("unknown sub-command %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

func (e *UnknownCommandError) Is(target error) bool { return target == ErrUnknownCommand }

// Command is a chainable sub-command.
type Command interface {
	// Run executes the command with its own arguments.
	Run(ctx context.Context, hctx *home.Context, args []string) error
}

// Factory builds a command from its manifest.
type Factory func(m *Manifest) (Command, error)

// Catalog maps manifest command kinds to compiled commands.
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

// Segment is one command of a chain with the arguments that follow it.
type Segment struct {
	Name string
	Args []string
}

// Dispatcher discovers and runs sub-commands.
type Dispatcher struct {
	ctx     *home.Context
	catalog Catalog
	cache   *unitcache.Cache[*Unit]
	log     logger.Logger
}

// New creates a Dispatcher. A nil cache gets a private one; a nil log uses
// the global logger.
func New(hctx *home.Context, catalog Catalog, cache *unitcache.Cache[*Unit], log logger.Logger) *Dispatcher {
	if cache == nil {
		cache = unitcache.New[*Unit]()
	}
	if log == nil {
		log = logger.Global()
	}
	return &Dispatcher{ctx: hctx, catalog: catalog, cache: cache, log: log}
}

// Context returns the shared orchestration context.
func (d *Dispatcher) Context() *home.Context { return d.ctx }

// Available lists the sub-command directories of the installation root,
// sorted. It fails with NotInstallationRoot when the marker is missing.
func (d *Dispatcher) Available() ([]string, error) {
	if err := d.ctx.CheckInstallationRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.ctx.HomeDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.ctx.HomeDir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name == home.MarkerDir || !strings.HasPrefix(name, home.CommandPrefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Split cuts an invocation line into segments, starting a new one at every
// token that names an available sub-command. The first token must be one.
func (d *Dispatcher) Split(args []string) ([]Segment, error) {
	available, err := d.Available()
	if err != nil {
		return nil, err
	}
	return SplitArgs(args, available)
}

// SplitArgs is Split against a known list of command names.
func SplitArgs(args, available []string) ([]Segment, error) {
	if len(args) == 0 {
		return nil, ErrNoCommand
	}
	known := make(map[string]bool, len(available))
	for _, name := range available {
		known[name] = true
	}
	if !known[args[0]] {
		return nil, &UnknownCommandError{Name: args[0], Available: available}
	}

	var chain []Segment
	for _, arg := range args {
		if known[arg] {
			chain = append(chain, Segment{Name: arg})
			continue
		}
		last := &chain[len(chain)-1]
		last.Args = append(last.Args, arg)
	}
	return chain, nil
}

// StepStatus is the outcome of one chain step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// Step records one executed segment.
type Step struct {
	Segment  Segment
	Status   StepStatus
	Duration time.Duration
	Err      error
}

// Summary records a dispatched chain. Steps after a failure are absent.
type Summary struct {
	Steps    []Step
	Duration time.Duration
}

// Skipped returns the steps whose provider declined.
func (s *Summary) Skipped() []Step {
	var out []Step
	for _, st := range s.Steps {
		if st.Status == StepSkipped {
			out = append(out, st)
		}
	}
	return out
}

// Dispatch runs the chain left to right. A declined provider is logged and
// the chain continues; any other error stops it and is returned together
// with the summary so far. Completed steps are not rolled back.
func (d *Dispatcher) Dispatch(ctx context.Context, chain []Segment) (*Summary, error) {
	if err := d.ctx.CheckInstallationRoot(); err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, ErrNoCommand
	}

	summary := &Summary{}
	begin := time.Now()
	defer func() { summary.Duration = time.Since(begin) }()

	for _, seg := range chain {
		unit, err := d.Load(seg.Name)
		if err != nil {
			summary.Steps = append(summary.Steps, Step{Segment: seg, Status: StepFailed, Err: err})
			return summary, err
		}

		d.log.Info().Str("command", seg.Name).Strs("args", seg.Args).Msg("running sub-command")
		start := time.Now()
		err = unit.Command.Run(ctx, d.ctx, seg.Args)
		step := Step{Segment: seg, Status: StepOK, Duration: time.Since(start), Err: err}

		switch {
		case err == nil:
		case errors.Is(err, provider.ErrDeclined):
			step.Status = StepSkipped
			d.log.Warn().Str("command", seg.Name).Err(err).Msg("provider declined, skipping step")
		default:
			step.Status = StepFailed
			summary.Steps = append(summary.Steps, step)
			d.log.Error().Str("command", seg.Name).Err(err).Msg("sub-command failed, stopping chain")
			return summary, fmt.Errorf("%s: %w", seg.Name, err)
		}
		summary.Steps = append(summary.Steps, step)
	}
	return summary, nil
}

// Run splits args and dispatches the resulting chain.
func (d *Dispatcher) Run(ctx context.Context, args []string) (*Summary, error) {
	chain, err := d.Split(args)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, chain)
}
