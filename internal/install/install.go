// Package install manages the local Keycloak installation cache.
//
// Distributions are downloaded from the official GitHub releases and
// extracted into a shared cache directory, one subdirectory per version.
// Installation is idempotent: an already extracted version is reused, and
// concurrent installs of the same version are collapsed into a single
// download.
package install

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"kcdev/pkg/logging"

	"golang.org/x/sync/singleflight"
)

// defaultBaseURL is where official Keycloak release archives are published.
const defaultBaseURL = "https://github.com/keycloak/keycloak/releases/download"

// checkJava is swapped in tests.
var checkJava = CheckJava

// Installer downloads and unpacks Keycloak distributions into a local cache
// directory. It is safe for concurrent use.
type Installer struct {
	// InstallDir is the cache directory holding one extracted
	// distribution per version.
	InstallDir string

	// BaseURL overrides the release download location, mainly for tests.
	BaseURL string

	// Client is the HTTP client used for downloads. Defaults to
	// http.DefaultClient.
	Client *http.Client

	group singleflight.Group
}

// New creates an Installer caching distributions under installDir.
func New(installDir string) *Installer {
	return &Installer{
		InstallDir: installDir,
		BaseURL:    defaultBaseURL,
		Client:     http.DefaultClient,
	}
}

// DistributionDir returns the directory the given version is extracted to.
func (i *Installer) DistributionDir(version string) string {
	return filepath.Join(i.InstallDir, "keycloak-"+version)
}

// Launcher returns the path of the start script inside the distribution.
func (i *Installer) Launcher(version string) string {
	name := "kc.sh"
	if runtime.GOOS == "windows" {
		name = "kc.bat"
	}
	return filepath.Join(i.DistributionDir(version), "bin", name)
}

// IsInstalled reports whether the version is already extracted and its
// launcher is present.
func (i *Installer) IsInstalled(version string) bool {
	_, err := os.Stat(i.Launcher(version))
	return err == nil
}

// EnsureInstalled makes sure the given Keycloak version is available in the
// install cache, downloading and extracting it if necessary. The Java
// prerequisite is verified first so a missing runtime is reported before
// any download starts. Concurrent calls for the same version share one
// installation.
func (i *Installer) EnsureInstalled(ctx context.Context, version string) error {
	if err := checkJava(ctx); err != nil {
		return err
	}

	if i.IsInstalled(version) {
		logging.Debug("Installer", "Keycloak %s already installed at %s", version, i.DistributionDir(version))
		return nil
	}

	_, err, shared := i.group.Do(version, func() (interface{}, error) {
		// Re-check inside the flight: another caller may have finished
		// the install while we were waiting to enter.
		if i.IsInstalled(version) {
			return nil, nil
		}
		return nil, i.installVersion(ctx, version)
	})
	if shared {
		logging.Debug("Installer", "Joined in-flight installation of Keycloak %s", version)
	}
	return err
}

// installVersion performs the actual download and extraction. On failure the
// partially extracted distribution is removed so a later attempt starts
// clean.
func (i *Installer) installVersion(ctx context.Context, version string) (err error) {
	distDir := i.DistributionDir(version)
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(distDir); rmErr != nil {
				logging.Warn("Installer", "Could not remove partial installation %s: %v", distDir, rmErr)
			}
		}
	}()

	if err := os.MkdirAll(i.InstallDir, 0o755); err != nil {
		return NewInstallError(version, "prepare", err)
	}

	url := i.releaseURL(version)
	zipPath := filepath.Join(i.InstallDir, fmt.Sprintf("keycloak-%s.zip", version))
	// The archive is an intermediate artifact; remove it no matter how the
	// installation ends.
	defer func() {
		if rmErr := os.Remove(zipPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn("Installer", "Could not remove archive %s: %v", zipPath, rmErr)
		}
	}()

	logging.Info("Installer", "Downloading Keycloak %s from %s", version, url)
	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}
	if err := downloadFile(ctx, client, url, zipPath); err != nil {
		return NewInstallError(version, "download", err)
	}

	logging.Info("Installer", "Extracting Keycloak %s to %s", version, i.InstallDir)
	if err := extractZip(zipPath, i.InstallDir); err != nil {
		return NewInstallError(version, "extract", err)
	}

	if _, statErr := os.Stat(distDir); statErr != nil {
		return NewInstallError(version, "extract",
			fmt.Errorf("archive did not contain keycloak-%s: %w", version, statErr))
	}

	if err := i.markScriptsExecutable(version); err != nil {
		return NewInstallError(version, "prepare", err)
	}

	logging.Info("Installer", "Keycloak %s installed at %s", version, distDir)
	return nil
}

// markScriptsExecutable restores the executable bit on the launcher scripts.
// Zip archives do not reliably carry it.
func (i *Installer) markScriptsExecutable(version string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	scripts, err := filepath.Glob(filepath.Join(i.DistributionDir(version), "bin", "*.sh"))
	if err != nil {
		return err
	}
	for _, script := range scripts {
		if err := os.Chmod(script, 0o755); err != nil {
			return fmt.Errorf("failed to mark %s executable: %w", script, err)
		}
	}
	return nil
}

func (i *Installer) releaseURL(version string) string {
	base := i.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return fmt.Sprintf("%s/%s/keycloak-%s.zip", base, version, version)
}
