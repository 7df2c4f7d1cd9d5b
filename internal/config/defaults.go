package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultLabelPrefix  = "dev.setup-servers"
	DefaultReadyTimeout = 60 * time.Second
	DefaultHapiGitURL   = "https://github.com/hapifhir/hapi-fhir-jpaserver-starter.git"
	DefaultMavenVersion = "3.8.6"
	DefaultMavenURL     = "https://archive.apache.org/dist/maven/maven-3/3.8.6/binaries/apache-maven-3.8.6-bin.tar.gz"
	DefaultHapiPort     = 8080
)

// SetDefaults registers every settings key with viper. Keys must be known
// for SETUP_SERVERS_* environment overrides to apply on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.file_enabled", true)
	v.SetDefault("logging.max_size_mb", 20)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("working_directory", "")
	v.SetDefault("docker.label_prefix", DefaultLabelPrefix)
	v.SetDefault("docker.ready_timeout", DefaultReadyTimeout)
	v.SetDefault("hapi.git_url", DefaultHapiGitURL)
	v.SetDefault("hapi.maven_url", DefaultMavenURL)
	v.SetDefault("hapi.maven_version", DefaultMavenVersion)
	v.SetDefault("hapi.default_port", DefaultHapiPort)
}
