package keycloak

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kcdev/internal/config"
	"kcdev/internal/install"
	"kcdev/internal/netutil"
	"kcdev/internal/process"
	"kcdev/internal/realm"
	"kcdev/pkg/logging"

	"github.com/google/uuid"
)

const (
	// settleDelay is how long Start waits after spawning before checking
	// whether the process survived its own startup.
	settleDelay = 2 * time.Second

	// readerJoinTimeout bounds the wait for the output reader during
	// shutdown. A reader that has not drained by then is abandoned.
	readerJoinTimeout = 2 * time.Second

	// logFileName is the per-instance server log inside the instance
	// directory.
	logFileName = "keycloak.log"
)

// Server manages one logical Keycloak instance: a distribution in the
// install cache, a port pair, an optional realm import, and at most one
// child process at a time. Start and Stop may be called repeatedly; the
// distribution directory is reused across cycles and rolled back to its
// pre-start state after each stop.
//
// All methods are safe for concurrent use; a state transition holds the
// server mutex from beginning to end.
type Server struct {
	id        string
	opts      Options
	registry  *Registry
	installer *install.Installer

	// instanceDir holds this instance's log file and snapshots. It is
	// timestamped so concurrent instances never collide on disk.
	instanceDir string
	logPath     string

	mu             sync.Mutex
	state          State
	httpPort       int
	managementPort int
	portsAllocated bool
	handle         *process.Handle
	importFile     string
	backupDir      string

	// settle and probeEvery shorten the startup delays in tests.
	settle     time.Duration
	probeEvery time.Duration

	// probeCheck overrides the readiness endpoint check in tests.
	probeCheck func(ctx context.Context, url string) bool
}

// New creates a Server and registers it. Any other instance in the
// registry that is currently running is stopped first, so a caller who
// constructs servers back to back without cleaning up does not end up
// with competing processes.
func New(ctx context.Context, registry *Registry, opts Options) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry must not be nil")
	}
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	instanceDir := filepath.Join(opts.DataDir,
		fmt.Sprintf("instance_%s_%06d", now.Format("20060102_150405"), now.Nanosecond()/1000))

	s := &Server{
		id:             uuid.NewString(),
		opts:           opts,
		registry:       registry,
		installer:      install.New(opts.InstallDir),
		instanceDir:    instanceDir,
		logPath:        filepath.Join(instanceDir, logFileName),
		state:          StateUninstalled,
		httpPort:       opts.HTTPPort,
		managementPort: opts.ManagementPort,
		settle:         settleDelay,
		probeEvery:     probeInterval,
	}
	if s.installer.IsInstalled(opts.Version) {
		s.state = StateInstalled
	}

	registry.register(ctx, s)
	return s, nil
}

// ID returns the unique instance identifier.
func (s *Server) ID() string { return s.id }

// Version returns the Keycloak version this server runs.
func (s *Server) Version() string { return s.opts.Version }

// DistributionDir returns the extracted distribution this server runs
// from.
func (s *Server) DistributionDir() string {
	return s.installer.DistributionDir(s.opts.Version)
}

// LogPath returns the server log file of this instance.
func (s *Server) LogPath() string { return s.logPath }

// AdminUser returns the bootstrap admin username.
func (s *Server) AdminUser() string { return s.opts.AdminUser }

// AdminPassword returns the bootstrap admin password.
func (s *Server) AdminPassword() string { return s.opts.AdminPassword }

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HTTPPort returns the public HTTP port. Before the first start of an
// auto-allocating server this is the search base port.
func (s *Server) HTTPPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpPort
}

// ManagementPort returns the management/health port.
func (s *Server) ManagementPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.managementPort
}

// BaseURL returns the public base URL of the instance.
func (s *Server) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d", s.HTTPPort())
}

// ManagementURL returns the management base URL of the instance.
func (s *Server) ManagementURL() string {
	return fmt.Sprintf("http://localhost:%d", s.ManagementPort())
}

// PID returns the process ID of the running server, or 0 when no process
// is live.
func (s *Server) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0
	}
	return s.handle.PID()
}

// IsRunning reports whether the server process is currently alive.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && s.handle.Alive()
}

// Install makes sure the configured Keycloak version is present in the
// install cache. It is idempotent: an installed version is detected
// without network access.
func (s *Server) Install(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.installer.EnsureInstalled(ctx, s.opts.Version); err != nil {
		return err
	}
	if s.state == StateUninstalled {
		s.state = StateInstalled
	}
	return nil
}

// Start brings the server up and blocks until it answers its readiness
// probes. Starting an already running server is a no-op. On any failure
// the partial startup is rolled back completely: the process is
// terminated, the import file removed, the distribution state restored
// and automatically allocated ports released.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil && s.handle.Alive() {
		logging.Debug("Keycloak", "Instance %s already running (PID %d)", s.id, s.handle.PID())
		return nil
	}

	if !s.installer.IsInstalled(s.opts.Version) {
		return &StartError{
			Reason: fmt.Sprintf("Keycloak %s is not installed in %s, run install first",
				s.opts.Version, s.opts.InstallDir),
		}
	}

	s.state = StateStarting
	if err := s.startLocked(ctx); err != nil {
		s.rollbackLocked()
		return err
	}
	s.state = StateRunning

	logging.Info("Keycloak", "Instance %s ready at %s (PID %d)", s.id, s.baseURLLocked(), s.handle.PID())
	return nil
}

// startLocked performs the start sequence. The caller holds the mutex and
// rolls back on error.
func (s *Server) startLocked(ctx context.Context) error {
	if err := s.claimPortsLocked(); err != nil {
		return err
	}

	distDir := s.DistributionDir()

	if s.opts.Realm != nil {
		path, err := realm.WriteImportFile(s.opts.Realm.Document(), distDir, s.httpPort)
		if err != nil {
			return &StartError{Port: s.httpPort, Reason: "could not write realm import file", Err: err}
		}
		s.importFile = path
	}

	if err := os.MkdirAll(s.instanceDir, 0o755); err != nil {
		return &StartError{Reason: "could not create instance directory", Err: err}
	}

	backupDir, err := snapshotDirs(distDir, s.instanceDir)
	if err != nil {
		return &StartError{Reason: "could not snapshot distribution state", Err: err}
	}
	s.backupDir = backupDir

	args := []string{
		"start-dev",
		fmt.Sprintf("--http-port=%d", s.httpPort),
		fmt.Sprintf("--http-management-port=%d", s.managementPort),
		"--health-enabled=true",
	}
	if s.opts.Realm != nil {
		args = append(args, "--import-realm")
	}

	logging.Info("Keycloak", "Starting Keycloak %s on port %d (management %d)",
		s.opts.Version, s.httpPort, s.managementPort)

	handle, err := process.Spawn(process.SpawnOptions{
		Path: s.installer.Launcher(s.opts.Version),
		Args: args,
		Dir:  distDir,
		Env: []string{
			"KEYCLOAK_ADMIN=" + s.opts.AdminUser,
			"KEYCLOAK_ADMIN_PASSWORD=" + s.opts.AdminPassword,
		},
		LogPath: s.logPath,
	})
	if err != nil {
		return &StartError{Port: s.httpPort, Reason: "could not spawn server process", Err: err}
	}
	s.handle = handle

	// Give the launcher a moment; a process that dies right away is a
	// startup failure, not a readiness timeout.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.settle):
	}
	if !handle.Alive() {
		return &StartError{
			Port:    s.httpPort,
			LogPath: s.logPath,
			Reason:  fmt.Sprintf("process exited immediately with code %d", handle.ExitCode()),
		}
	}

	return s.probeLocked(ctx, s.opts.StartTimeout)
}

// probeLocked waits for readiness using this server's probe settings.
func (s *Server) probeLocked(ctx context.Context, budget time.Duration) error {
	realmName := ""
	if s.opts.Realm != nil {
		realmName = s.opts.Realm.Realm
	}
	probe := newReadinessProbe(s.httpPort, s.managementPort, realmName, s.logPath, s.handle.Alive)
	probe.interval = s.probeEvery
	if s.probeCheck != nil {
		probe.check = s.probeCheck
	}
	return probe.wait(ctx, budget)
}

// claimPortsLocked settles which ports the instance uses. Pinned ports are
// probed and a conflict is fatal; otherwise a free pair is allocated
// starting at the configured base port.
func (s *Server) claimPortsLocked() error {
	if s.opts.ExplicitPorts {
		if !netutil.Probe(s.opts.HTTPPort) {
			return &StartError{Port: s.opts.HTTPPort, Reason: "http port is already in use"}
		}
		if !netutil.Probe(s.opts.ManagementPort) {
			return &StartError{Port: s.opts.ManagementPort, Reason: "management port is already in use"}
		}
		s.httpPort = s.opts.HTTPPort
		s.managementPort = s.opts.ManagementPort
		return nil
	}

	httpPort, managementPort, err := s.registry.Allocator().AllocatePair(
		s.opts.HTTPPort, config.ManagementPortOffset, s.id)
	if err != nil {
		return &StartError{Port: s.opts.HTTPPort, Reason: "no free port pair", Err: err}
	}
	s.httpPort = httpPort
	s.managementPort = managementPort
	s.portsAllocated = true
	return nil
}

// rollbackLocked undoes a failed start. After it returns the server holds
// no process handle, no import file, no snapshot and no port
// reservations.
func (s *Server) rollbackLocked() {
	if s.handle != nil {
		if s.handle.Alive() {
			if _, err := s.handle.Terminate(s.opts.StopTimeout); err != nil {
				logging.Warn("Keycloak", "Could not terminate instance %s during rollback: %v", s.id, err)
			}
		}
		s.handle.JoinReader(readerJoinTimeout)
		s.handle = nil
	}
	s.cleanupLocked()
	s.state = StateInstalled
}

// cleanupLocked removes the import file, restores the distribution
// snapshot and releases allocated ports. Safe to call when none of those
// exist.
func (s *Server) cleanupLocked() RestoreStatus {
	if err := realm.RemoveImportFile(s.importFile); err != nil {
		logging.Warn("Keycloak", "Could not remove import file for instance %s: %v", s.id, err)
	}
	s.importFile = ""

	status := restoreDirs(s.DistributionDir(), s.backupDir)
	s.backupDir = ""
	if status == RestoreFailed {
		logging.Warn("Keycloak", "Distribution state of instance %s was not fully restored", s.id)
	}

	if s.portsAllocated {
		s.registry.Allocator().Release(s.id, s.httpPort, s.managementPort)
		s.portsAllocated = false
	}
	return status
}

// Stop shuts the server down: graceful termination first, a kill of the
// process group after the stop timeout. It is safe from any state;
// stopping a server that is not running only cleans up leftovers from a
// previous failed start. The returned RestoreStatus tells whether the
// distribution state was rolled back, so callers can decide how much to
// trust a reused distribution directory.
func (s *Server) Stop(ctx context.Context) (RestoreStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.state = StateStopping
		logging.Info("Keycloak", "Stopping instance %s (PID %d)", s.id, s.handle.PID())

		forced, err := s.handle.Terminate(s.opts.StopTimeout)
		if err != nil {
			logging.Warn("Keycloak", "Could not terminate instance %s: %v", s.id, err)
		} else if forced {
			logging.Warn("Keycloak", "Instance %s ignored graceful shutdown and was killed", s.id)
		}
		s.handle.JoinReader(readerJoinTimeout)
		s.handle = nil
	}

	status := s.cleanupLocked()
	if s.state != StateUninstalled {
		s.state = StateInstalled
	}

	return status, nil
}

// WaitUntilReady re-checks readiness of a running server, e.g. after the
// caller suspects it became unresponsive. It fails immediately when the
// server is not running.
func (s *Server) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil || !s.handle.Alive() {
		return &StartError{Reason: "server is not running"}
	}
	return s.probeLocked(ctx, timeout)
}

// Close is the terminal teardown: stop the instance and remove it from
// the registry. The installation is kept on disk so the next instance
// starts without a download.
func (s *Server) Close(ctx context.Context) error {
	if _, err := s.Stop(ctx); err != nil {
		return err
	}
	s.registry.Deregister(s)
	return nil
}

func (s *Server) baseURLLocked() string {
	return fmt.Sprintf("http://localhost:%d", s.httpPort)
}
