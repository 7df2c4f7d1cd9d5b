// Package iostreams provides access to standard input, output and error
// streams with terminal detection, a progress spinner and colour output.
package iostreams

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"github.com/schmitthub/setup-servers/internal/logger"
)

// SpinnerDisabledEnv turns the animated spinner into plain status lines.
const SpinnerDisabledEnv = "SETUP_SERVERS_SPINNER_DISABLED"

// IOStreams provides access to standard input/output/error streams.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// Logger is the diagnostic logger for the command layer.
	Logger logger.Logger

	// -1 = unchecked, 0 = false, 1 = true
	isInputTTY  int
	isOutputTTY int
	isStderrTTY int

	// -1 = auto (detect from TTY), 0 = disabled, 1 = enabled
	colorEnabled int

	progressIndicatorEnabled bool
	progressIndicator        *spinner.Spinner
	progressIndicatorMu      sync.Mutex
	spinnerDisabled          bool
}

// NewIOStreams creates an IOStreams connected to standard streams.
func NewIOStreams() *IOStreams {
	ios := &IOStreams{
		In:           os.Stdin,
		Out:          os.Stdout,
		ErrOut:       os.Stderr,
		Logger:       logger.Global(),
		isInputTTY:   -1,
		isOutputTTY:  -1,
		isStderrTTY:  -1,
		colorEnabled: -1,
	}

	if ios.IsOutputTTY() && ios.IsStderrTTY() {
		ios.progressIndicatorEnabled = true
	}
	if os.Getenv(SpinnerDisabledEnv) != "" {
		ios.spinnerDisabled = true
	}
	return ios
}

func isTerminal(v any) int {
	if f, ok := v.(*os.File); ok {
		return boolToInt(term.IsTerminal(int(f.Fd())))
	}
	return 0
}

// IsInputTTY returns true if stdin is a terminal.
func (s *IOStreams) IsInputTTY() bool {
	if s.isInputTTY == -1 {
		s.isInputTTY = isTerminal(s.In)
	}
	return s.isInputTTY == 1
}

// IsOutputTTY returns true if stdout is a terminal.
func (s *IOStreams) IsOutputTTY() bool {
	if s.isOutputTTY == -1 {
		s.isOutputTTY = isTerminal(s.Out)
	}
	return s.isOutputTTY == 1
}

// IsStderrTTY returns true if stderr is a terminal.
func (s *IOStreams) IsStderrTTY() bool {
	if s.isStderrTTY == -1 {
		s.isStderrTTY = isTerminal(s.ErrOut)
	}
	return s.isStderrTTY == 1
}

// SetTTY overrides terminal detection for all three streams.
func (s *IOStreams) SetTTY(tty bool) {
	v := boolToInt(tty)
	s.isInputTTY, s.isOutputTTY, s.isStderrTTY = v, v, v
}

// ColorEnabled returns whether color output is enabled. In auto mode this
// follows stdout's TTY status, and NO_COLOR always disables it.
func (s *IOStreams) ColorEnabled() bool {
	if s.colorEnabled == -1 {
		if os.Getenv("NO_COLOR") != "" {
			return false
		}
		return s.IsOutputTTY()
	}
	return s.colorEnabled == 1
}

// SetColorEnabled explicitly enables or disables color output.
func (s *IOStreams) SetColorEnabled(enabled bool) {
	s.colorEnabled = boolToInt(enabled)
}

// ColorScheme returns a ColorScheme configured for this IOStreams.
func (s *IOStreams) ColorScheme() *ColorScheme {
	return NewColorScheme(s.ColorEnabled())
}

// TerminalWidth returns the width of stdout in columns, or 80.
func (s *IOStreams) TerminalWidth() int {
	if f, ok := s.Out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

// SetProgressEnabled enables or disables the progress indicator.
func (s *IOStreams) SetProgressEnabled(enabled bool) {
	s.progressIndicatorEnabled = enabled
}

// SetSpinnerDisabled replaces the animation with one status line per label.
func (s *IOStreams) SetSpinnerDisabled(v bool) {
	s.spinnerDisabled = v
}

// StartProgressIndicatorWithLabel starts a spinner with a label on stderr.
// Console logging is quieted while the spinner owns the terminal.
func (s *IOStreams) StartProgressIndicatorWithLabel(label string) {
	if !s.progressIndicatorEnabled {
		return
	}

	s.progressIndicatorMu.Lock()
	defer s.progressIndicatorMu.Unlock()

	if s.spinnerDisabled {
		s.startTextualProgressIndicatorLocked(label)
		return
	}

	if s.progressIndicator != nil {
		s.progressIndicator.Prefix = prefix(label)
		return
	}

	// CharSets[11] is braille.
	sp := spinner.New(spinner.CharSets[11], 120*time.Millisecond,
		spinner.WithWriter(s.ErrOut),
		spinner.WithColor("fgCyan"))
	sp.Prefix = prefix(label)

	logger.SetQuiet(true)
	sp.Start()
	s.progressIndicator = sp
}

func prefix(label string) string {
	if label == "" {
		return ""
	}
	return label + " "
}

// startTextualProgressIndicatorLocked prints a one-time status line.
// Caller must hold progressIndicatorMu.
func (s *IOStreams) startTextualProgressIndicatorLocked(label string) {
	if label == "" {
		label = "Working..."
	}
	if !strings.HasSuffix(label, "...") {
		label += "..."
	}
	fmt.Fprintf(s.ErrOut, "%s\n", s.ColorScheme().Cyan(label))
}

// StopProgressIndicator stops the spinner.
func (s *IOStreams) StopProgressIndicator() {
	s.progressIndicatorMu.Lock()
	defer s.progressIndicatorMu.Unlock()

	if s.progressIndicator == nil {
		return
	}
	s.progressIndicator.Stop()
	s.progressIndicator = nil
	logger.SetQuiet(false)
}

// RunWithProgress runs fn while showing a spinner.
func (s *IOStreams) RunWithProgress(label string, fn func() error) error {
	s.StartProgressIndicatorWithLabel(label)
	defer s.StopProgressIndicator()
	return fn()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
