package loggertest_test

import (
	"strings"
	"testing"

	"github.com/schmitthub/setup-servers/internal/logger"
	"github.com/schmitthub/setup-servers/internal/logger/loggertest"
)

var _ logger.Logger = (*loggertest.TestLogger)(nil)

func TestNew_CapturesOutput(t *testing.T) {
	tl := loggertest.New()

	tl.Debug().Str("provider", "postgres").Msg("hello world")

	output := tl.Output()
	if !strings.Contains(output, "hello world") || !strings.Contains(output, `"provider":"postgres"`) {
		t.Errorf("Output() should contain logged message, got %q", output)
	}
}

func TestNew_Reset(t *testing.T) {
	tl := loggertest.New()

	tl.Info().Msg("first message")
	tl.Reset()
	tl.Info().Msg("second message")

	output := tl.Output()
	if strings.Contains(output, "first message") {
		t.Error("Reset() should clear earlier output")
	}
	if !strings.Contains(output, "second message") {
		t.Error("output after Reset() should be captured")
	}
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	tl := loggertest.NewNop()
	tl.Error().Msg("dropped")
	if tl.Output() != "" {
		t.Errorf("NewNop should discard output, got %q", tl.Output())
	}
}
