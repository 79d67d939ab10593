package keycloak

// State describes where a server instance is in its lifecycle.
type State string

const (
	StateUninstalled State = "uninstalled"
	StateInstalled   State = "installed"
	StateStarting    State = "starting"
	StateRunning     State = "running"
	StateStopping    State = "stopping"
)
