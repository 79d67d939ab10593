package keycloak

import (
	"fmt"
	"time"

	"kcdev/internal/config"
	"kcdev/internal/realm"
)

// Options configures a Server instance.
type Options struct {
	// Version of Keycloak to install and run.
	Version string

	// InstallDir caches downloaded distributions.
	InstallDir string

	// HTTPPort and ManagementPort select the listening ports. With
	// ExplicitPorts set both must be free or startup fails fast. Otherwise
	// HTTPPort is the base the automatic port search starts from and the
	// pair actually bound is reported by the running server.
	HTTPPort       int
	ManagementPort int
	ExplicitPorts  bool

	// AdminUser and AdminPassword are the bootstrap admin credentials
	// handed to the Keycloak process.
	AdminUser     string
	AdminPassword string

	// DataDir is the parent directory for per-instance state (logs and
	// distribution snapshots).
	DataDir string

	// Realm, when set, is imported during startup and its endpoint becomes
	// part of the readiness check.
	Realm *realm.Config

	// StartTimeout bounds the readiness wait, StopTimeout the graceful
	// shutdown before the process group is killed.
	StartTimeout time.Duration
	StopTimeout  time.Duration
}

// OptionsFromConfig maps a resolved configuration onto server options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Version:        cfg.Version,
		InstallDir:     cfg.InstallDir,
		HTTPPort:       cfg.HTTPPort,
		ManagementPort: cfg.ManagementPort,
		ExplicitPorts:  cfg.ExplicitPorts,
		AdminUser:      cfg.AdminUser,
		AdminPassword:  cfg.AdminPassword,
		DataDir:        cfg.DataDir,
		StartTimeout:   cfg.StartTimeout(),
		StopTimeout:    cfg.StopTimeout(),
	}
}

func (o *Options) applyDefaults() {
	if o.Version == "" {
		o.Version = config.DefaultVersion
	}
	if o.AdminUser == "" {
		o.AdminUser = config.DefaultAdminUser
	}
	if o.AdminPassword == "" {
		o.AdminPassword = config.DefaultAdminPassword
	}
	if o.HTTPPort == 0 {
		o.HTTPPort = config.DefaultHTTPPort
	}
	if o.ManagementPort == 0 {
		o.ManagementPort = o.HTTPPort + config.ManagementPortOffset
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = time.Duration(config.DefaultStartTimeoutSeconds) * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = time.Duration(config.DefaultStopTimeoutSeconds) * time.Second
	}
}

func (o *Options) validate() error {
	if o.InstallDir == "" {
		return fmt.Errorf("install dir must not be empty")
	}
	if o.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if o.HTTPPort < 1 || o.HTTPPort > 65535 {
		return fmt.Errorf("http port %d out of range", o.HTTPPort)
	}
	if o.ManagementPort < 1 || o.ManagementPort > 65535 {
		return fmt.Errorf("management port %d out of range", o.ManagementPort)
	}
	if o.ManagementPort == o.HTTPPort {
		return fmt.Errorf("http and management port must differ, both are %d", o.HTTPPort)
	}
	if o.Realm != nil {
		if err := o.Realm.Validate(); err != nil {
			return fmt.Errorf("invalid realm configuration: %w", err)
		}
	}
	return nil
}
