// Package loggertest provides test doubles for the logger package.
package loggertest

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger captures log output for assertions in tests.
// *TestLogger satisfies logger.Logger.
type TestLogger struct {
	mu     sync.Mutex
	logger zerolog.Logger
	buf    *bytes.Buffer
}

// New creates a test logger that captures all output to a buffer.
func New() *TestLogger {
	tl := &TestLogger{buf: &bytes.Buffer{}}
	tl.logger = zerolog.New(lockedWriter{tl}).Level(zerolog.DebugLevel)
	return tl
}

// NewNop creates a test logger that discards all output.
func NewNop() *TestLogger {
	return &TestLogger{
		logger: zerolog.Nop(),
		buf:    &bytes.Buffer{},
	}
}

func (tl *TestLogger) Debug() *zerolog.Event { return tl.logger.Debug() }
func (tl *TestLogger) Info() *zerolog.Event  { return tl.logger.Info() }
func (tl *TestLogger) Warn() *zerolog.Event  { return tl.logger.Warn() }
func (tl *TestLogger) Error() *zerolog.Event { return tl.logger.Error() }

// Output returns captured log output as a string.
func (tl *TestLogger) Output() string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.String()
}

// Reset clears captured output.
func (tl *TestLogger) Reset() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.buf.Reset()
}

type lockedWriter struct{ tl *TestLogger }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.tl.mu.Lock()
	defer w.tl.mu.Unlock()
	return w.tl.buf.Write(p)
}
