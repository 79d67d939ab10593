package keycloak

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"kcdev/pkg/logging"
)

// RestoreStatus reports how restoring the distribution state went after a
// server instance stopped.
type RestoreStatus string

const (
	// RestoreOK means the distribution's mutable state was rolled back to
	// the snapshot taken at startup.
	RestoreOK RestoreStatus = "restored"

	// RestoreFailed means rolling back did not fully succeed; the
	// distribution may retain state from the stopped instance.
	RestoreFailed RestoreStatus = "restore-failed"

	// RestoreSkipped means there was no snapshot to roll back to.
	RestoreSkipped RestoreStatus = "skipped"
)

// mutableDirs are the distribution directories Keycloak writes into while
// running. They are snapshotted before startup and rolled back after stop so
// a shared distribution stays pristine between instances.
var mutableDirs = []string{"data", "conf"}

// snapshotDirs copies the distribution's mutable directories into a
// timestamped backup below instanceDir and returns the backup path. A
// mutable directory that does not exist yet is simply skipped.
func snapshotDirs(distDir, instanceDir string) (string, error) {
	now := time.Now()
	backupDir := filepath.Join(instanceDir,
		fmt.Sprintf("backup_%s_%06d", now.Format("20060102_150405"), now.Nanosecond()/1000))

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	for _, dir := range mutableDirs {
		src := filepath.Join(distDir, dir)
		if _, err := os.Stat(src); err != nil {
			logging.Debug("Snapshot", "Skipping %s, not present in distribution", src)
			continue
		}
		if err := copyTree(src, filepath.Join(backupDir, dir)); err != nil {
			// A partial snapshot must not be restored later.
			os.RemoveAll(backupDir)
			return "", fmt.Errorf("failed to snapshot %s: %w", src, err)
		}
	}

	logging.Debug("Snapshot", "Snapshotted distribution state to %s", backupDir)
	return backupDir, nil
}

// restoreDirs rolls the distribution's mutable directories back to the
// snapshot and removes the backup. Restore problems are logged and reported
// through the status; stopping must carry on regardless.
func restoreDirs(distDir, backupDir string) RestoreStatus {
	if backupDir == "" {
		return RestoreSkipped
	}
	if _, err := os.Stat(backupDir); err != nil {
		logging.Debug("Snapshot", "No backup at %s, nothing to restore", backupDir)
		return RestoreSkipped
	}

	status := RestoreOK
	for _, dir := range mutableDirs {
		src := filepath.Join(backupDir, dir)
		if _, err := os.Stat(src); err != nil {
			continue
		}

		target := filepath.Join(distDir, dir)
		if err := os.RemoveAll(target); err != nil {
			logging.Error("Snapshot", err, "Failed to clear %s before restore", target)
			status = RestoreFailed
			continue
		}
		if err := copyTree(src, target); err != nil {
			logging.Error("Snapshot", err, "Failed to restore %s", target)
			status = RestoreFailed
		}
	}

	if err := os.RemoveAll(backupDir); err != nil {
		logging.Warn("Snapshot", "Could not remove backup %s: %v", backupDir, err)
	}

	if status == RestoreOK {
		logging.Debug("Snapshot", "Restored distribution state from %s", backupDir)
	}
	return status
}

// copyTree recursively copies a directory, preserving permissions and
// symlinks. Irregular files (sockets, devices) are skipped.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case !info.Mode().IsRegular():
			return nil
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
