package config

import "time"

// Config is the top-level configuration structure for kcdev.
//
// The zero value is not usable directly; Load applies defaults and
// environment overrides before handing the config to callers.
type Config struct {
	// Version is the Keycloak distribution version to install and run.
	Version string `yaml:"version,omitempty"`

	// InstallDir is the shared cache directory holding extracted
	// distributions, one subdirectory per version (default: ~/.keycloak-test).
	InstallDir string `yaml:"installDir,omitempty"`

	// HTTPPort is the public HTTP port. When zero a free port pair is
	// allocated automatically starting from the default base port.
	HTTPPort int `yaml:"httpPort,omitempty"`

	// ManagementPort is the management/health port. When zero it defaults
	// to HTTPPort plus the management offset.
	ManagementPort int `yaml:"managementPort,omitempty"`

	// AdminUser and AdminPassword are the bootstrap admin credentials
	// passed to the server process.
	AdminUser     string `yaml:"adminUser,omitempty"`
	AdminPassword string `yaml:"adminPassword,omitempty"`

	// DataDir is the parent directory for per-instance working directories
	// (default: ./keycloak-dev-server).
	DataDir string `yaml:"dataDir,omitempty"`

	// RealmFile is an optional realm definition imported on startup.
	RealmFile string `yaml:"realmFile,omitempty"`

	// StartTimeoutSeconds bounds the readiness wait after spawning the
	// server process.
	StartTimeoutSeconds int `yaml:"startTimeoutSeconds,omitempty"`

	// StopTimeoutSeconds bounds the graceful termination wait before the
	// process group is killed.
	StopTimeoutSeconds int `yaml:"stopTimeoutSeconds,omitempty"`

	// ExplicitPorts records whether ports were pinned by the user (file,
	// environment or flag). Pinned ports are never searched: a busy port
	// fails startup instead of falling back to another one.
	ExplicitPorts bool `yaml:"-"`
}

// StartTimeout returns the readiness wait budget as a duration.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSeconds) * time.Second
}

// StopTimeout returns the graceful termination budget as a duration.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutSeconds) * time.Second
}
