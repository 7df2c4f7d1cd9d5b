package cmdutil

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/schmitthub/setup-servers/internal/iostreams"
)

// userFormattedError is a duck-typed interface for errors that can format
// themselves for user display. docker.DockerError satisfies this interface.
type userFormattedError interface {
	FormatUserError() string
}

// PrintError renders err to stderr, using the error's own formatting when it
// provides one.
func PrintError(ios *iostreams.IOStreams, err error) {
	if err == nil {
		return
	}
	var ufErr userFormattedError
	if errors.As(err, &ufErr) {
		fmt.Fprint(ios.ErrOut, ufErr.FormatUserError())
		return
	}
	fmt.Fprintf(ios.ErrOut, "Error: %s\n", err)
}

// PrintNextSteps prints numbered follow-up suggestions to stderr.
func PrintNextSteps(ios *iostreams.IOStreams, steps ...string) {
	if len(steps) == 0 {
		return
	}

	fmt.Fprintln(ios.ErrOut, "\nNext Steps:")
	for i, step := range steps {
		fmt.Fprintf(ios.ErrOut, "  %d. %s\n", i+1, step)
	}
}

// OutputJSON marshals data to stdout as JSON with indentation.
// Use this for machine-readable output when --json flag is set.
func OutputJSON(ios *iostreams.IOStreams, data any) error {
	enc := json.NewEncoder(ios.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintHelpHint prints a contextual help hint to stderr.
// cmdPath should be cmd.CommandPath() (e.g., "setup-servers state show")
func PrintHelpHint(ios *iostreams.IOStreams, cmdPath string) {
	fmt.Fprintf(ios.ErrOut, "\nRun '%s --help' for more information.\n", cmdPath)
}
