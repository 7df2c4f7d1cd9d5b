package cmdutil

import (
	"github.com/schmitthub/setup-servers/internal/logger"
)

// InitLogging configures the global logger for this invocation. File
// logging under <home>/logs is enabled only when the home directory is an
// installation root; otherwise, or on any error, logging stays console-only.
func InitLogging(f *Factory) {
	logger.Init(f.Debug)

	hctx, err := f.Context()
	if err != nil {
		logger.Warn().Err(err).Msg("file logging unavailable: cannot resolve home directory")
		return
	}
	logger.SetRunID(hctx.RunID)
	if !hctx.IsInstallationRoot() {
		return
	}

	settings, err := f.Settings()
	if err != nil {
		logger.Warn().Err(err).Msg("file logging unavailable: failed to load settings")
		return
	}
	if err := logger.InitWithFile(f.Debug, hctx.LogsDir(), settings.Logging.ToLoggerConfig()); err != nil {
		logger.Init(f.Debug)
		logger.Warn().Err(err).Msg("file logging unavailable: failed to initialize file writer")
	}
}
