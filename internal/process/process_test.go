package process

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires /bin/sh")
	}
}

func spawnShell(t *testing.T, script string) *Handle {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "out.log")
	h, err := Spawn(SpawnOptions{
		Path:    "/bin/sh",
		Args:    []string{"-c", script},
		LogPath: logPath,
	})
	require.NoError(t, err)
	return h
}

func waitForExit(t *testing.T, h *Handle) {
	t.Helper()
	require.Eventually(t, func() bool { return !h.Alive() }, 5*time.Second, 20*time.Millisecond,
		"process did not exit in time")
}

func TestSpawn_CapturesOutput(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "echo hello; echo world 1>&2")
	waitForExit(t, h)
	require.True(t, h.JoinReader(2*time.Second))

	data, err := os.ReadFile(h.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "world", "stderr must be captured too")

	tail := h.Tail()
	assert.Contains(t, tail, "hello")
	assert.Contains(t, tail, "world")
}

func TestSpawn_MissingExecutable(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	_, err := Spawn(SpawnOptions{
		Path:    filepath.Join(t.TempDir(), "does-not-exist"),
		LogPath: logPath,
	})
	assert.Error(t, err)
}

func TestSpawn_UnwritableLogPath(t *testing.T) {
	_, err := Spawn(SpawnOptions{
		Path:    "/bin/sh",
		Args:    []string{"-c", "true"},
		LogPath: filepath.Join(t.TempDir(), "missing-dir", "out.log"),
	})
	assert.Error(t, err)
}

func TestAlive_WhileRunningAndAfterExit(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "sleep 5")
	defer h.Terminate(time.Second)

	assert.True(t, h.Alive())
	assert.Equal(t, -1, h.ExitCode(), "exit code is undefined while running")
	assert.NotZero(t, h.PID())

	_, err := h.Terminate(2 * time.Second)
	require.NoError(t, err)
	assert.False(t, h.Alive())
}

func TestExitCode_NonZero(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "exit 3")
	waitForExit(t, h)

	assert.Equal(t, 3, h.ExitCode())
}

func TestExitCode_Zero(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "true")
	waitForExit(t, h)

	assert.Equal(t, 0, h.ExitCode())
}

func TestTerminate_Graceful(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "trap 'exit 0' TERM; while true; do sleep 0.1; done")

	escalated, err := h.Terminate(5 * time.Second)
	require.NoError(t, err)
	assert.False(t, escalated, "a process honoring SIGTERM must not be force killed")
	assert.False(t, h.Alive())
}

func TestTerminate_EscalatesToKill(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "trap '' TERM; while true; do sleep 0.1; done")

	escalated, err := h.Terminate(500 * time.Millisecond)
	require.NoError(t, err)
	assert.True(t, escalated, "a process ignoring SIGTERM must be force killed")
	assert.False(t, h.Alive())
}

func TestTerminate_SurvivesOverlongOutputLine(t *testing.T) {
	skipOnWindows(t)

	// A single line beyond the scanner's buffer limit must not stall the
	// output pipe; Terminate still has to reap the process.
	h := spawnShell(t, "head -c 2097152 /dev/zero | tr '\\0' 'a'; echo; sleep 60")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := h.Terminate(500 * time.Millisecond)
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Terminate did not return after an over-long output line")
	}
	assert.False(t, h.Alive())
	assert.True(t, h.JoinReader(2*time.Second))
}

func TestTerminate_AlreadyExited(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "true")
	waitForExit(t, h)

	escalated, err := h.Terminate(time.Second)
	require.NoError(t, err)
	assert.False(t, escalated)
}

func TestJoinReader_DrainsAfterExit(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "echo done")
	waitForExit(t, h)

	assert.True(t, h.JoinReader(2*time.Second))
}

func TestTail_KeepsOnlyRecentLines(t *testing.T) {
	skipOnWindows(t)

	h := spawnShell(t, "i=0; while [ $i -lt 60 ]; do echo line$i; i=$((i+1)); done")
	waitForExit(t, h)
	require.True(t, h.JoinReader(2*time.Second))

	tail := h.Tail()
	require.Len(t, tail, tailLines)
	assert.Equal(t, "line59", tail[len(tail)-1])
	assert.NotContains(t, tail, "line0")
}

func TestSpawn_EnvOverride(t *testing.T) {
	skipOnWindows(t)

	t.Setenv("KCDEV_TEST_ENV", "parent")

	logPath := filepath.Join(t.TempDir(), "out.log")
	h, err := Spawn(SpawnOptions{
		Path:    "/bin/sh",
		Args:    []string{"-c", "echo value=$KCDEV_TEST_ENV"},
		Env:     []string{"KCDEV_TEST_ENV=child"},
		LogPath: logPath,
	})
	require.NoError(t, err)
	waitForExit(t, h)
	require.True(t, h.JoinReader(2*time.Second))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "value=child")
}

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2", "PATH=/usr/bin"}

	merged := mergeEnv(base, []string{"B=override", "C=3"})

	assert.Contains(t, merged, "A=1")
	assert.Contains(t, merged, "PATH=/usr/bin")
	assert.Contains(t, merged, "B=override")
	assert.Contains(t, merged, "C=3")
	assert.NotContains(t, merged, "B=2")
}

func TestMergeEnv_NoExtras(t *testing.T) {
	base := []string{"A=1"}
	assert.Equal(t, base, mergeEnv(base, nil))
}

func TestCleanupStale_NoMatches(t *testing.T) {
	skipOnWindows(t)

	count := CleanupStale("kcdev-test-pattern-that-matches-nothing-[x]")
	assert.Zero(t, count)
}
