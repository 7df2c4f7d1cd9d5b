package iostreams

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorError   = lipgloss.Color("#FF5F87")
	ColorWarning = lipgloss.Color("#FFAF00")
	ColorSuccess = lipgloss.Color("#00D787")
	ColorInfo    = lipgloss.Color("#00AFD7")
	ColorMuted   = lipgloss.Color("#6C6C6C")
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	warningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	infoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// ColorScheme formats terminal output. When colors are disabled, methods
// return the input string unmodified.
type ColorScheme struct {
	enabled bool
}

// NewColorScheme creates a new ColorScheme.
func NewColorScheme(enabled bool) *ColorScheme {
	return &ColorScheme{enabled: enabled}
}

// Enabled returns whether colors are enabled.
func (cs *ColorScheme) Enabled() bool { return cs.enabled }

func (cs *ColorScheme) render(style lipgloss.Style, s string) string {
	if !cs.enabled {
		return s
	}
	return style.Render(s)
}

func (cs *ColorScheme) Red(s string) string    { return cs.render(errorStyle, s) }
func (cs *ColorScheme) Yellow(s string) string { return cs.render(warningStyle, s) }
func (cs *ColorScheme) Green(s string) string  { return cs.render(successStyle, s) }
func (cs *ColorScheme) Cyan(s string) string   { return cs.render(infoStyle, s) }
func (cs *ColorScheme) Muted(s string) string  { return cs.render(mutedStyle, s) }
func (cs *ColorScheme) Bold(s string) string   { return cs.render(boldStyle, s) }

// Greenf returns a formatted string in green.
func (cs *ColorScheme) Greenf(format string, a ...any) string {
	return cs.Green(fmt.Sprintf(format, a...))
}

// Redf returns a formatted string in red.
func (cs *ColorScheme) Redf(format string, a ...any) string {
	return cs.Red(fmt.Sprintf(format, a...))
}

// SuccessIcon returns a green check mark.
func (cs *ColorScheme) SuccessIcon() string { return cs.Green("✓") }

// FailureIcon returns a red cross.
func (cs *ColorScheme) FailureIcon() string { return cs.Red("✗") }

// WarningIcon returns a yellow exclamation mark.
func (cs *ColorScheme) WarningIcon() string { return cs.Yellow("!") }
