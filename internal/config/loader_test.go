package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsLoader_Defaults(t *testing.T) {
	l := NewSettingsLoader(filepath.Join(t.TempDir(), SettingsFileName))
	require.False(t, l.Exists())

	s, err := l.Load()
	require.NoError(t, err)

	require.NotNil(t, s.Logging.FileEnabled)
	assert.True(t, *s.Logging.FileEnabled)
	assert.Equal(t, 20, s.Logging.MaxSizeMB)
	assert.Equal(t, DefaultLabelPrefix, s.Docker.LabelPrefix)
	assert.Equal(t, DefaultReadyTimeout, s.Docker.ReadyTimeout)
	assert.Equal(t, DefaultHapiGitURL, s.Hapi.GitURL)
	assert.Equal(t, DefaultMavenURL, s.Hapi.MavenURL)
	assert.Equal(t, DefaultHapiPort, s.Hapi.DefaultPort)
	assert.Empty(t, s.WorkingDirectory)
}

func TestSettingsLoader_File(t *testing.T) {
	dir := t.TempDir()
	path := SettingsPath(dir)
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  file_enabled: false
  max_backups: 9
working_directory: work
docker:
  label_prefix: com.example
  ready_timeout: 5s
hapi:
  default_port: 9090
`), 0o644))

	s, err := NewSettingsLoader(path).Load()
	require.NoError(t, err)

	assert.False(t, *s.Logging.FileEnabled)
	assert.Equal(t, 9, s.Logging.MaxBackups)
	assert.Equal(t, 14, s.Logging.MaxAgeDays, "unset keys keep defaults")
	assert.Equal(t, "com.example", s.Docker.LabelPrefix)
	assert.Equal(t, 5*time.Second, s.Docker.ReadyTimeout)
	assert.Equal(t, 9090, s.Hapi.DefaultPort)
	assert.Equal(t, filepath.Join("/h", "work"), s.ResolveWorkingDirectory("/h"))
}

func TestSettingsLoader_EnvOverride(t *testing.T) {
	t.Setenv("SETUP_SERVERS_HAPI_GIT_URL", "https://git.example.com/hapi.git")
	t.Setenv("SETUP_SERVERS_DOCKER_READY_TIMEOUT", "90s")

	s, err := NewSettingsLoader(filepath.Join(t.TempDir(), SettingsFileName)).Load()
	require.NoError(t, err)
	assert.Equal(t, "https://git.example.com/hapi.git", s.Hapi.GitURL)
	assert.Equal(t, 90*time.Second, s.Docker.ReadyTimeout)
}

func TestSettingsLoader_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := SettingsPath(dir)
	require.NoError(t, os.WriteFile(path, []byte("hapi:\n  default_port: 70000\n"), 0o644))

	_, err := NewSettingsLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hapi.default_port")
}

func TestSettings_ResolveWorkingDirectory(t *testing.T) {
	s := &Settings{}
	assert.Empty(t, s.ResolveWorkingDirectory("/h"))

	s.WorkingDirectory = "/abs/work"
	assert.Equal(t, "/abs/work", s.ResolveWorkingDirectory("/h"))

	s.WorkingDirectory = "~/work"
	assert.Equal(t, "~/work", s.ResolveWorkingDirectory("/h"))
}

func TestLoggingConfig_ToLoggerConfig(t *testing.T) {
	off := false
	lc := LoggingConfig{FileEnabled: &off, MaxSizeMB: 1, MaxAgeDays: 2, MaxBackups: 3}.ToLoggerConfig()
	assert.False(t, lc.IsFileEnabled())
	assert.Equal(t, 1, lc.MaxSizeMB)
	assert.Equal(t, 2, lc.MaxAgeDays)
	assert.Equal(t, 3, lc.MaxBackups)
}
