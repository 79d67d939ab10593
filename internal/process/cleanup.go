package process

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"kcdev/pkg/logging"
)

// CleanupStale kills processes left behind by previous runs. Candidates are
// found by matching their full command line against pattern with pgrep; the
// current process is never touched. The function is best-effort and logs
// errors rather than returning them, since cleanup failures should not block
// a fresh start. It returns the number of processes signalled.
func CleanupStale(pattern string) int {
	// Get current process ID to avoid killing ourselves
	currentPID := os.Getpid()

	cmd := exec.Command("pgrep", "-f", pattern)
	output, err := cmd.Output()
	if err != nil {
		// pgrep returns exit code 1 when no processes found, which is fine
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			logging.Debug("Cleanup", "No stale processes matching %q found", pattern)
			return 0
		}
		// Other errors are unexpected but not fatal
		logging.Debug("Cleanup", "Could not check for stale processes: %v", err)
		return 0
	}

	killedCount := 0
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}

		// Don't kill ourselves
		if pid == currentPID {
			continue
		}

		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}

		// Send SIGTERM for graceful shutdown; the process might already
		// be gone, which is fine.
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			logging.Debug("Cleanup", "Could not send SIGTERM to PID %d: %v", pid, err)
			continue
		}

		killedCount++
		logging.Debug("Cleanup", "Killed stale process PID %d", pid)
	}

	return killedCount
}
