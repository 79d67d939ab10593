package config

const (
	// DefaultVersion is the Keycloak version installed when none is configured.
	DefaultVersion = "26.0.7"

	// DefaultHTTPPort is the base port the automatic port search starts from.
	DefaultHTTPPort = 8080

	// ManagementPortOffset is the fixed distance between the HTTP port and
	// the management port of an instance.
	ManagementPortOffset = 1000

	// DefaultAdminUser and DefaultAdminPassword are the bootstrap admin
	// credentials used when none are configured. Development use only.
	DefaultAdminUser     = "admin"
	DefaultAdminPassword = "admin"

	// DefaultStartTimeoutSeconds bounds the readiness wait after startup.
	DefaultStartTimeoutSeconds = 60

	// DefaultStopTimeoutSeconds bounds the graceful shutdown wait.
	DefaultStopTimeoutSeconds = 10

	// defaultInstallDirName is the install cache directory under $HOME.
	defaultInstallDirName = ".keycloak-test"

	// defaultDataDirName is the instance data directory under the cwd.
	defaultDataDirName = "keycloak-dev-server"
)

// GetDefaultConfig returns the built-in defaults. Fields that depend on the
// environment (install dir, data dir) are left empty here and resolved by
// applyDefaults during Load.
func GetDefaultConfig() Config {
	return Config{
		Version:             DefaultVersion,
		AdminUser:           DefaultAdminUser,
		AdminPassword:       DefaultAdminPassword,
		StartTimeoutSeconds: DefaultStartTimeoutSeconds,
		StopTimeoutSeconds:  DefaultStopTimeoutSeconds,
	}
}
