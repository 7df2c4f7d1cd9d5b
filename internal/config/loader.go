package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// SettingsFileName is the settings file inside the root marker directory.
	SettingsFileName = "setup-servers.yaml"
	// EnvPrefix prefixes environment overrides, e.g. SETUP_SERVERS_HAPI_GIT_URL.
	EnvPrefix = "SETUP_SERVERS"
)

// SettingsLoader reads the settings file of one installation.
type SettingsLoader struct {
	path  string
	viper *viper.Viper
}

// NewSettingsLoader creates a loader for the settings file at path.
func NewSettingsLoader(path string) *SettingsLoader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return &SettingsLoader{path: path, viper: v}
}

// SettingsPath returns <markerDir>/setup-servers.yaml.
func SettingsPath(markerDir string) string {
	return filepath.Join(markerDir, SettingsFileName)
}

// Path returns the settings file path.
func (l *SettingsLoader) Path() string { return l.path }

// Exists checks if the settings file exists.
func (l *SettingsLoader) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Load reads the settings. A missing file yields the defaults.
func (l *SettingsLoader) Load() (*Settings, error) {
	if l.Exists() {
		l.viper.SetConfigFile(l.path)
		l.viper.SetConfigType("yaml")
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", l.path, err)
		}
	}

	var s Settings
	if err := l.viper.Unmarshal(&s, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", l.path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", l.path, err)
	}
	return &s, nil
}

// Validate checks values that would otherwise fail deep inside a provider.
func (s *Settings) Validate() error {
	var errs []error
	if s.Docker.LabelPrefix == "" {
		errs = append(errs, errors.New("docker.label_prefix must not be empty"))
	}
	if s.Docker.ReadyTimeout < 0 {
		errs = append(errs, errors.New("docker.ready_timeout must not be negative"))
	}
	if s.Hapi.DefaultPort < 0 || s.Hapi.DefaultPort > 65535 {
		errs = append(errs, fmt.Errorf("hapi.default_port %d out of range", s.Hapi.DefaultPort))
	}
	return errors.Join(errs...)
}

// ResolveWorkingDirectory returns the configured working directory resolved
// against homeDir, or "" when unset.
func (s *Settings) ResolveWorkingDirectory(homeDir string) string {
	if s.WorkingDirectory == "" {
		return ""
	}
	if filepath.IsAbs(s.WorkingDirectory) || strings.HasPrefix(s.WorkingDirectory, "~") {
		return s.WorkingDirectory
	}
	return filepath.Join(homeDir, s.WorkingDirectory)
}
