package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"kcdev/pkg/logging"

	"gopkg.in/yaml.v3"
)

const configFileName = "kcdev.yaml"

// Environment variables honored by Load. The admin credential variables use
// the names Keycloak itself understands so a single exported pair drives both
// kcdev and any scripts talking to the server.
const (
	EnvAdminUser     = "KEYCLOAK_ADMIN"
	EnvAdminPassword = "KEYCLOAK_ADMIN_PASSWORD"
	EnvVersion       = "KCDEV_VERSION"
	EnvInstallDir    = "KCDEV_INSTALL_DIR"
	EnvHTTPPort      = "KCDEV_HTTP_PORT"
)

// userHomeDir is swapped in tests.
var userHomeDir = os.UserHomeDir

// Load reads configuration from the given file path and applies environment
// overrides and defaults on top.
//
// When path is empty, kcdev.yaml in the current directory is used if present
// and silently skipped otherwise. An explicitly given path must exist.
func Load(path string) (Config, error) {
	cfg := Config{}

	explicitFile := path != ""
	if path == "" {
		path = configFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		logging.Info("Config", "Loaded configuration from %s", path)
	case errors.Is(err, os.ErrNotExist) && !explicitFile:
		logging.Debug("Config", "No %s found, using defaults", configFileName)
	default:
		return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvAdminUser); v != "" {
		cfg.AdminUser = v
	}
	if v := os.Getenv(EnvAdminPassword); v != "" {
		cfg.AdminPassword = v
	}
	if v := os.Getenv(EnvVersion); v != "" {
		cfg.Version = v
	}
	if v := os.Getenv(EnvInstallDir); v != "" {
		cfg.InstallDir = v
	}
	if v := os.Getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvHTTPPort, v, err)
		}
		cfg.HTTPPort = port
	}
	return nil
}

// applyDefaults fills unset fields. Port defaults are applied after the
// ExplicitPorts flag is derived, so a user-pinned port is distinguishable
// from the search base port even when both are 8080.
func applyDefaults(cfg *Config) error {
	defaults := GetDefaultConfig()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.AdminUser == "" {
		cfg.AdminUser = defaults.AdminUser
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = defaults.AdminPassword
	}
	if cfg.StartTimeoutSeconds == 0 {
		cfg.StartTimeoutSeconds = defaults.StartTimeoutSeconds
	}
	if cfg.StopTimeoutSeconds == 0 {
		cfg.StopTimeoutSeconds = defaults.StopTimeoutSeconds
	}

	cfg.ExplicitPorts = cfg.HTTPPort != 0 || cfg.ManagementPort != 0
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.ManagementPort == 0 {
		cfg.ManagementPort = cfg.HTTPPort + ManagementPortOffset
	}

	if cfg.InstallDir == "" {
		home, err := userHomeDir()
		if err != nil {
			return fmt.Errorf("could not determine home directory for install dir: %w", err)
		}
		cfg.InstallDir = filepath.Join(home, defaultInstallDirName)
	}
	if cfg.DataDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("could not determine working directory for data dir: %w", err)
		}
		cfg.DataDir = filepath.Join(wd, defaultDataDirName)
	}
	return nil
}

// Validate checks a fully resolved config for inconsistencies.
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("version must not be empty")
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("httpPort %d out of range", cfg.HTTPPort)
	}
	if cfg.ManagementPort < 1 || cfg.ManagementPort > 65535 {
		return fmt.Errorf("managementPort %d out of range", cfg.ManagementPort)
	}
	if cfg.ManagementPort == cfg.HTTPPort {
		return fmt.Errorf("httpPort and managementPort must differ, both are %d", cfg.HTTPPort)
	}
	if cfg.StartTimeoutSeconds <= 0 {
		return fmt.Errorf("startTimeoutSeconds must be positive, got %d", cfg.StartTimeoutSeconds)
	}
	if cfg.StopTimeoutSeconds <= 0 {
		return fmt.Errorf("stopTimeoutSeconds must be positive, got %d", cfg.StopTimeoutSeconds)
	}
	return nil
}
