// Package logger holds the process-wide zerolog logger.
//
// The root command initialises it once per invocation. Console output is
// human readable on stderr; when the home directory is an installation root
// and file logging is enabled, JSON entries are also written to a rotating
// file under <home>/logs.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the name of the rotating log file.
const FileName = "setup-servers.log"

var (
	// Log is the global logger instance
	Log zerolog.Logger = zerolog.Nop()

	// fileWriter is the file output for logging (with rotation)
	fileWriter *lumberjack.Logger

	// fileOnlyLog writes only to file; used while console logs are quiet.
	fileOnlyLog zerolog.Logger

	// quiet suppresses console INFO/WARN/ERROR while a spinner owns the terminal.
	quiet   bool
	quietMu sync.RWMutex

	logContext   logContextData
	logContextMu sync.RWMutex
)

// Logger is the subset of the logging API handed to providers and commands.
type Logger interface {
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
}

// logContextData holds correlation fields added to every entry.
type logContextData struct {
	RunID string
	Setup string
}

// SetRunID tags all subsequent entries with the invocation's run id.
func SetRunID(runID string) {
	logContextMu.Lock()
	defer logContextMu.Unlock()
	logContext.RunID = runID
}

// SetSetup tags all subsequent entries with the setup being processed.
// Pass an empty string to clear.
func SetSetup(setup string) {
	logContextMu.Lock()
	defer logContextMu.Unlock()
	logContext.Setup = setup
}

// ClearContext clears all correlation fields.
func ClearContext() {
	logContextMu.Lock()
	defer logContextMu.Unlock()
	logContext = logContextData{}
}

func getContext() logContextData {
	logContextMu.RLock()
	defer logContextMu.RUnlock()
	return logContext
}

func addContext(event *zerolog.Event) *zerolog.Event {
	ctx := getContext()
	if ctx.RunID != "" {
		event = event.Str("run_id", ctx.RunID)
	}
	if ctx.Setup != "" {
		event = event.Str("setup", ctx.Setup)
	}
	return event
}

// LoggingConfig holds configuration for file-based logging.
// It mirrors config.LoggingConfig to avoid an import cycle.
type LoggingConfig struct {
	FileEnabled *bool
	MaxSizeMB   int
	MaxAgeDays  int
	MaxBackups  int
}

// IsFileEnabled returns whether file logging is enabled.
// Defaults to true if not explicitly set.
func (c *LoggingConfig) IsFileEnabled() bool {
	if c.FileEnabled == nil {
		return true
	}
	return *c.FileEnabled
}

// GetMaxSizeMB returns the max size in MB, defaulting to 20 if not set.
func (c *LoggingConfig) GetMaxSizeMB() int {
	if c.MaxSizeMB <= 0 {
		return 20
	}
	return c.MaxSizeMB
}

// GetMaxAgeDays returns the max age in days, defaulting to 14 if not set.
func (c *LoggingConfig) GetMaxAgeDays() int {
	if c.MaxAgeDays <= 0 {
		return 14
	}
	return c.MaxAgeDays
}

// GetMaxBackups returns the max backups, defaulting to 3 if not set.
func (c *LoggingConfig) GetMaxBackups() int {
	if c.MaxBackups <= 0 {
		return 3
	}
	return c.MaxBackups
}

// SetQuiet enables or disables console suppression. Debug entries and the
// log file are never affected.
func SetQuiet(enabled bool) {
	quietMu.Lock()
	defer quietMu.Unlock()
	quiet = enabled
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
}

func levelFor(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Init initializes console-only logging on stderr.
func Init(debug bool) {
	Log = zerolog.New(consoleWriter(os.Stderr)).
		Level(levelFor(debug)).
		With().
		Timestamp().
		Logger()
}

// InitWithFile initializes the logger with optional file output.
// If logsDir is empty or cfg disables file logging, this behaves like Init.
func InitWithFile(debug bool, logsDir string, cfg *LoggingConfig) error {
	level := levelFor(debug)
	console := consoleWriter(os.Stderr)

	if logsDir == "" || cfg == nil || !cfg.IsFileEnabled() {
		Log = zerolog.New(console).
			Level(level).
			With().
			Timestamp().
			Logger()
		return nil
	}

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	_ = CloseFileWriter()
	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, FileName),
		MaxSize:    cfg.GetMaxSizeMB(),
		MaxAge:     cfg.GetMaxAgeDays(),
		MaxBackups: cfg.GetMaxBackups(),
		LocalTime:  true,
	}

	fileOnlyLog = zerolog.New(fileWriter).
		Level(level).
		With().
		Timestamp().
		Logger()

	Log = zerolog.New(io.MultiWriter(console, fileWriter)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return nil
}

// CloseFileWriter closes the file writer if it exists.
func CloseFileWriter() error {
	if fileWriter != nil {
		err := fileWriter.Close()
		fileWriter = nil
		return err
	}
	return nil
}

// GetLogFilePath returns the path of the log file, or "" when file logging is off.
func GetLogFilePath() string {
	if fileWriter != nil {
		return fileWriter.Filename
	}
	return ""
}

func shouldSuppress() bool {
	quietMu.RLock()
	q := quiet
	quietMu.RUnlock()
	return q && Log.GetLevel() != zerolog.DebugLevel
}

func suppressed(level zerolog.Level) *zerolog.Event {
	if fileWriter != nil {
		return addContext(fileOnlyLog.WithLevel(level))
	}
	nop := zerolog.Nop()
	return nop.WithLevel(level)
}

// Debug logs a debug message.
func Debug() *zerolog.Event {
	return addContext(Log.Debug())
}

// Info logs an info message.
func Info() *zerolog.Event {
	if shouldSuppress() {
		return suppressed(zerolog.InfoLevel)
	}
	return addContext(Log.Info())
}

// Warn logs a warning message.
func Warn() *zerolog.Event {
	if shouldSuppress() {
		return suppressed(zerolog.WarnLevel)
	}
	return addContext(Log.Warn())
}

// Error logs an error message.
func Error() *zerolog.Event {
	if shouldSuppress() {
		return suppressed(zerolog.ErrorLevel)
	}
	return addContext(Log.Error())
}

// Global returns the package-level functions as a Logger.
func Global() Logger { return global{} }

type global struct{}

func (global) Debug() *zerolog.Event { return Debug() }
func (global) Info() *zerolog.Event  { return Info() }
func (global) Warn() *zerolog.Event  { return Warn() }
func (global) Error() *zerolog.Event { return Error() }
