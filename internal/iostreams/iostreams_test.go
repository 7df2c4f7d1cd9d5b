package iostreams_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/setup-servers/internal/iostreams/iostreamstest"
)

func TestTestIOStreams_Defaults(t *testing.T) {
	tio := iostreamstest.New()

	assert.False(t, tio.IsInputTTY())
	assert.False(t, tio.IsOutputTTY())
	assert.False(t, tio.IsStderrTTY())
	assert.False(t, tio.ColorEnabled())

	tio.SetInteractive(true)
	assert.True(t, tio.IsOutputTTY())
}

func TestColorScheme_Disabled(t *testing.T) {
	cs := iostreamstest.New().ColorScheme()
	assert.Equal(t, "ok", cs.Green("ok"))
	assert.Equal(t, "✓", cs.SuccessIcon())
	assert.Equal(t, "n=2", cs.Redf("n=%d", 2))
}

func TestRunWithProgress_Textual(t *testing.T) {
	tio := iostreamstest.New()
	tio.SetProgressEnabled(true)
	tio.SetSpinnerDisabled(true)

	boom := errors.New("boom")
	err := tio.RunWithProgress("Applying postgres", func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "Applying postgres...\n", tio.ErrBuf.String())
}

func TestRunWithProgress_DisabledPrintsNothing(t *testing.T) {
	tio := iostreamstest.New()
	called := false
	require.NoError(t, tio.RunWithProgress("x", func() error { called = true; return nil }))
	assert.True(t, called)
	assert.Empty(t, tio.ErrBuf.String())
}

func TestTablePrinter_Plain(t *testing.T) {
	tio := iostreamstest.New()
	tp := tio.NewTablePrinter("Command", "Providers")
	tp.AddRow("setup-db", "mysql, postgres")
	tp.AddRow("setup-fhir-server")
	require.Equal(t, 2, tp.Len())
	require.NoError(t, tp.Render())

	lines := strings.Split(strings.TrimRight(tio.OutBuf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "COMMAND")
	assert.Contains(t, lines[0], "PROVIDERS")
	assert.Contains(t, lines[1], "mysql, postgres")
	assert.NotContains(t, tio.OutBuf.String(), "│")
}
