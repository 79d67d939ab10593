// Package process spawns and supervises Keycloak server processes.
//
// Every child runs in its own process group so that termination reaches the
// shell launcher and the Java process it spawns. Combined stdout/stderr is
// streamed line by line into a log file; the last lines are kept in memory
// for error diagnostics.
package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"kcdev/pkg/logging"
)

// tailLines is the number of recent output lines retained in memory.
const tailLines = 50

// maxLineSize bounds a single captured output line. Keycloak stack traces
// can be long but stay well below this.
const maxLineSize = 1024 * 1024

// SpawnOptions describes the child process to start.
type SpawnOptions struct {
	// Path is the executable to run.
	Path string

	// Args are the command arguments, without the executable name.
	Args []string

	// Dir is the working directory of the child.
	Dir string

	// Env holds extra KEY=VALUE entries layered over the parent
	// environment. Entries override inherited variables of the same name.
	Env []string

	// LogPath is the file receiving the combined stdout/stderr stream.
	LogPath string
}

// Handle supervises a spawned process. All methods are safe for concurrent
// use.
type Handle struct {
	cmd        *exec.Cmd
	logPath    string
	pipeWriter *io.PipeWriter

	// done is closed after the process has been reaped; waitErr is set
	// before the close and must only be read after done.
	done    chan struct{}
	waitErr error

	// readerDone is closed once the log capture goroutine has drained all
	// output and closed the log file.
	readerDone chan struct{}

	mu   sync.Mutex
	tail []string
}

// Spawn starts the process described by opts in a new process group and
// begins capturing its output. The returned Handle owns the process.
func Spawn(opts SpawnOptions) (*Handle, error) {
	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = mergeEnv(os.Environ(), opts.Env)

	// Configure the process attributes (platform-specific)
	configureProcAttr(cmd)

	logFile, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", opts.LogPath, err)
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	h := &Handle{
		cmd:        cmd,
		logPath:    opts.LogPath,
		pipeWriter: pw,
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		pw.Close()
		logFile.Close()
		return nil, fmt.Errorf("failed to start %s: %w", filepath.Base(opts.Path), err)
	}

	logging.Debug("Process", "Started %s (PID %d), logging to %s", filepath.Base(opts.Path), cmd.Process.Pid, opts.LogPath)

	go h.captureOutput(pr, logFile)
	go func() {
		err := cmd.Wait()
		h.waitErr = err
		// Closing the writer unblocks the capture goroutine once all
		// buffered output has been drained.
		pw.Close()
		close(h.done)
	}()

	return h, nil
}

// captureOutput copies the combined output stream into the log file line by
// line and keeps the most recent lines in memory.
func (h *Handle) captureOutput(reader io.Reader, logFile *os.File) {
	defer close(h.readerDone)
	defer logFile.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if _, err := logFile.WriteString(line + "\n"); err != nil {
			logging.Warn("Process", "Failed to write to log file %s: %v", h.logPath, err)
		}
		h.appendTail(line)
	}
	if err := scanner.Err(); err != nil && err != io.ErrClosedPipe {
		logging.Warn("Process", "Log capture for PID %d stopped scanning: %v", h.PID(), err)
		// The pipe must keep flowing: a stalled reader blocks the child's
		// next write and with it cmd.Wait, so Terminate could never reap
		// the process. Pass the rest through unscanned.
		if _, copyErr := io.Copy(logFile, reader); copyErr != nil {
			_, _ = io.Copy(io.Discard, reader)
		}
	}
}

func (h *Handle) appendTail(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tail = append(h.tail, line)
	if len(h.tail) > tailLines {
		h.tail = h.tail[len(h.tail)-tailLines:]
	}
}

// PID returns the process ID of the child.
func (h *Handle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Alive reports whether the process has not been reaped yet. It never
// blocks.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code of a finished process, or -1 while the
// process is still running or when it was killed by a signal.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
	default:
		return -1
	}
	if h.waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Terminate shuts the process group down, first with SIGTERM and after
// timeout with SIGKILL. It returns whether force was needed. Terminate does
// not return until the process has been reaped, except when even the kill
// signal could not be delivered.
func (h *Handle) Terminate(timeout time.Duration) (bool, error) {
	if h.cmd == nil || h.cmd.Process == nil {
		return false, fmt.Errorf("no process to terminate")
	}
	pid := h.cmd.Process.Pid

	if !h.Alive() {
		return false, nil
	}

	logging.Debug("Process", "Shutting down process group for PID %d", pid)

	// First, signal the entire process group so children terminate too.
	if err := killProcessGroup(pid, syscall.SIGTERM); err != nil {
		logging.Debug("Process", "Failed to send SIGTERM to process group %d: %v", pid, err)
	}

	select {
	case <-h.done:
		logging.Debug("Process", "Process %d exited gracefully", pid)
		// Ensure any remaining child processes are killed.
		_ = killProcessGroup(pid, syscall.SIGKILL)
		return false, nil
	case <-time.After(timeout):
		logging.Debug("Process", "Graceful shutdown timeout for PID %d, forcing kill of process group", pid)
		if err := killProcessGroup(pid, syscall.SIGKILL); err != nil {
			return true, fmt.Errorf("failed to kill process group %d: %w", pid, err)
		}
		<-h.done
		return true, nil
	}
}

// JoinReader waits for the log capture goroutine to finish, bounded by
// timeout. It reports whether the reader drained in time.
func (h *Handle) JoinReader(timeout time.Duration) bool {
	select {
	case <-h.readerDone:
		return true
	case <-time.After(timeout):
		logging.Warn("Process", "Log reader for PID %d did not drain within %s", h.PID(), timeout)
		return false
	}
}

// Tail returns a copy of the most recent output lines.
func (h *Handle) Tail() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.tail))
	copy(out, h.tail)
	return out
}

// LogPath returns the path of the log file receiving the process output.
func (h *Handle) LogPath() string {
	return h.logPath
}

// mergeEnv layers extra KEY=VALUE entries over base, replacing entries with
// the same key so the child sees exactly one value per variable.
func mergeEnv(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(extra))
	for _, entry := range base {
		key, _, ok := strings.Cut(entry, "=")
		if ok && envContainsKey(extra, key) {
			continue
		}
		merged = append(merged, entry)
	}
	return append(merged, extra...)
}

func envContainsKey(env []string, key string) bool {
	for _, entry := range env {
		if k, _, ok := strings.Cut(entry, "="); ok && k == key {
			return true
		}
	}
	return false
}
