package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kcdev/internal/admin"
	"kcdev/internal/config"
	"kcdev/internal/keycloak"
	"kcdev/internal/realm"
	"kcdev/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/coreos/go-systemd/v22/daemon"
)

// reimportTimeout bounds a single realm reimport triggered by the watcher.
const reimportTimeout = 30 * time.Second

// realmImporter is the slice of the admin API the watcher needs.
type realmImporter interface {
	ReimportRealm(ctx context.Context, doc *realm.Document) error
}

// Application runs the full `kcdev up` lifecycle: install, start, summary,
// optional realm watching, and shutdown on SIGINT/SIGTERM.
type Application struct {
	cfg   config.Config
	quiet bool
	watch bool

	registry *keycloak.Registry
	out      io.Writer
	notify   func(unsetEnv bool, state string) (bool, error)
}

// New creates an application for the given resolved configuration. With
// quiet set, spinners are suppressed; with watch set, the configured realm
// file is monitored for changes while the server runs.
func New(cfg config.Config, quiet, watch bool) *Application {
	return &Application{
		cfg:      cfg,
		quiet:    quiet,
		watch:    watch,
		registry: keycloak.NewRegistry(),
		out:      os.Stdout,
		notify:   daemon.SdNotify,
	}
}

// Run executes the lifecycle and blocks until an interrupt arrives or the
// context is cancelled. Whatever happened in between, no server process is
// left running when it returns.
func (a *Application) Run(ctx context.Context) error {
	opts := keycloak.OptionsFromConfig(a.cfg)

	var realmCfg *realm.Config
	if a.cfg.RealmFile != "" {
		var err error
		realmCfg, err = realm.LoadFile(a.cfg.RealmFile)
		if err != nil {
			return fmt.Errorf("failed to load realm file: %w", err)
		}
		opts.Realm = realmCfg
	}

	server, err := keycloak.New(ctx, a.registry, opts)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := a.registry.StopAll(context.Background()); stopErr != nil {
			logging.Warn("App", "Shutdown left instances behind: %v", stopErr)
		}
	}()

	if err := a.step(fmt.Sprintf("Installing Keycloak %s", server.Version()), func() error {
		return server.Install(ctx)
	}); err != nil {
		return err
	}
	if err := a.step("Starting Keycloak", func() error {
		return server.Start(ctx)
	}); err != nil {
		return err
	}

	a.printSummary(server, realmCfg)

	if _, err := a.notify(false, daemon.SdNotifyReady); err != nil {
		logging.Debug("App", "systemd notification failed: %v", err)
	}

	if a.watch && realmCfg != nil {
		adminClient := admin.New(server.BaseURL(), realmCfg.Realm, server.AdminUser(), server.AdminPassword())
		watcher, err := realm.NewWatcher(realm.WatcherConfig{
			Path: a.cfg.RealmFile,
			OnChange: func() {
				a.reimport(adminClient)
			},
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
		logging.Info("App", "Watching %s for realm changes", a.cfg.RealmFile)
	}

	a.waitForShutdown(ctx)

	if _, err := a.notify(false, daemon.SdNotifyStopping); err != nil {
		logging.Debug("App", "systemd notification failed: %v", err)
	}
	logging.Info("App", "Shutting down")
	return nil
}

// step runs fn with a spinner unless quiet mode is active.
func (a *Application) step(message string, fn func() error) error {
	if a.quiet {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message + "..."
	s.Start()
	defer s.Stop()
	return fn()
}

func (a *Application) printSummary(server *keycloak.Server, realmCfg *realm.Config) {
	fmt.Fprintf(a.out, "\nKeycloak %s is ready\n", server.Version())
	fmt.Fprintf(a.out, "  Base URL:       %s\n", server.BaseURL())
	fmt.Fprintf(a.out, "  Admin console:  %s/admin (%s / %s)\n", server.BaseURL(), server.AdminUser(), server.AdminPassword())
	fmt.Fprintf(a.out, "  Management:     %s\n", server.ManagementURL())
	if realmCfg != nil {
		fmt.Fprintf(a.out, "  Realm:          %s (%s/realms/%s)\n", realmCfg.Realm, server.BaseURL(), realmCfg.Realm)
	}
	fmt.Fprintf(a.out, "  Log file:       %s\n\n", server.LogPath())
}

// reimport reloads the realm file and replaces the realm in the running
// server. Called from the watcher goroutine; errors only get logged.
func (a *Application) reimport(client realmImporter) {
	realmCfg, err := realm.LoadFile(a.cfg.RealmFile)
	if err != nil {
		logging.Warn("App", "Realm file changed but could not be loaded: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reimportTimeout)
	defer cancel()

	if err := client.ReimportRealm(ctx, realmCfg.Document()); err != nil {
		logging.Warn("App", "Realm reimport failed: %v", err)
		return
	}
	logging.Info("App", "Realm %q reimported", realmCfg.Realm)
}

// waitForShutdown blocks until SIGINT/SIGTERM arrives or ctx is cancelled.
func (a *Application) waitForShutdown(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logging.Info("App", "Press Ctrl+C to stop the server and exit.")

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
}
