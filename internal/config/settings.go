// Package config loads the installation settings file
// <home>/setup-servers/setup-servers.yaml.
package config

import (
	"time"

	"github.com/schmitthub/setup-servers/internal/logger"
)

// Settings represents installation-wide configuration.
type Settings struct {
	// Logging configures file-based logging.
	Logging LoggingConfig `yaml:"logging,omitempty" mapstructure:"logging"`

	// WorkingDirectory overrides <home>/working-directory. Relative paths
	// are resolved against the home directory.
	WorkingDirectory string `yaml:"working_directory,omitempty" mapstructure:"working_directory"`

	Docker DockerConfig `yaml:"docker,omitempty" mapstructure:"docker"`
	Hapi   HapiConfig   `yaml:"hapi,omitempty" mapstructure:"hapi"`
}

// LoggingConfig configures file-based logging.
// File logging is ENABLED by default.
type LoggingConfig struct {
	FileEnabled *bool `yaml:"file_enabled,omitempty" mapstructure:"file_enabled"`
	MaxSizeMB   int   `yaml:"max_size_mb,omitempty" mapstructure:"max_size_mb"`
	MaxAgeDays  int   `yaml:"max_age_days,omitempty" mapstructure:"max_age_days"`
	MaxBackups  int   `yaml:"max_backups,omitempty" mapstructure:"max_backups"`
}

// DockerConfig configures containers created by database providers.
type DockerConfig struct {
	// LabelPrefix namespaces the labels put on managed containers.
	LabelPrefix string `yaml:"label_prefix,omitempty" mapstructure:"label_prefix"`
	// ReadyTimeout bounds how long a started database may take to report running.
	ReadyTimeout time.Duration `yaml:"ready_timeout,omitempty" mapstructure:"ready_timeout"`
}

// HapiConfig configures the HAPI FHIR JPA starter provider.
type HapiConfig struct {
	GitURL       string `yaml:"git_url,omitempty" mapstructure:"git_url"`
	MavenURL     string `yaml:"maven_url,omitempty" mapstructure:"maven_url"`
	MavenVersion string `yaml:"maven_version,omitempty" mapstructure:"maven_version"`
	DefaultPort  int    `yaml:"default_port,omitempty" mapstructure:"default_port"`
}

// ToLoggerConfig converts the logging settings for logger.InitWithFile.
func (c LoggingConfig) ToLoggerConfig() *logger.LoggingConfig {
	return &logger.LoggingConfig{
		FileEnabled: c.FileEnabled,
		MaxSizeMB:   c.MaxSizeMB,
		MaxAgeDays:  c.MaxAgeDays,
		MaxBackups:  c.MaxBackups,
	}
}
