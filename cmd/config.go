package cmd

import (
	"kcdev/internal/config"

	"github.com/spf13/cobra"
)

// configFlags binds the flags shared by every command that resolves a full
// configuration. Flag values override the configuration file and the
// environment.
type configFlags struct {
	configPath     string
	version        string
	installDir     string
	port           int
	managementPort int
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to a kcdev.yaml configuration file")
	cmd.Flags().StringVar(&f.version, "version", "", "Keycloak version to use")
	cmd.Flags().StringVar(&f.installDir, "install-dir", "", "Directory caching extracted distributions")
	cmd.Flags().IntVar(&f.port, "port", 0, "HTTP port; pins the port pair instead of searching for a free one")
	cmd.Flags().IntVar(&f.managementPort, "management-port", 0, "Management port (default: HTTP port + 1000)")
}

func (f *configFlags) resolve() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if f.version != "" {
		cfg.Version = f.version
	}
	if f.installDir != "" {
		cfg.InstallDir = f.installDir
	}
	if f.port != 0 {
		cfg.HTTPPort = f.port
		cfg.ManagementPort = f.port + config.ManagementPortOffset
		cfg.ExplicitPorts = true
	}
	if f.managementPort != 0 {
		cfg.ManagementPort = f.managementPort
		cfg.ExplicitPorts = true
	}

	if err := config.Validate(&cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
