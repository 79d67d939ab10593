package keycloak

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"kcdev/internal/realm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVersion = "0.0.0-test"

// sleepScript keeps the fake server alive until it is terminated.
const sleepScript = "#!/bin/sh\nexec sleep 60\n"

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires /bin/sh")
	}
}

// fakeDistribution lays out an install cache entry that looks like an
// extracted Keycloak: a launcher script plus seeded data/ and conf/
// directories.
func fakeDistribution(t *testing.T, installDir, script string) string {
	t.Helper()

	distDir := filepath.Join(installDir, "keycloak-"+testVersion)
	require.NoError(t, os.MkdirAll(filepath.Join(distDir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(distDir, "bin", "kc.sh"), []byte(script), 0o755))

	for _, dir := range []string{"data", "conf"} {
		require.NoError(t, os.MkdirAll(filepath.Join(distDir, dir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(distDir, dir, "seed.txt"), []byte(dir+" seed\n"), 0o644))
	}
	return distDir
}

func testOptions(t *testing.T, installDir string, basePort int) Options {
	t.Helper()
	return Options{
		Version:      testVersion,
		InstallDir:   installDir,
		DataDir:      t.TempDir(),
		HTTPPort:     basePort,
		StartTimeout: 10 * time.Second,
		StopTimeout:  5 * time.Second,
	}
}

// newTestServer builds a registered server whose startup delays are
// shortened and whose readiness check always succeeds.
func newTestServer(t *testing.T, reg *Registry, opts Options) *Server {
	t.Helper()

	s, err := New(context.Background(), reg, opts)
	require.NoError(t, err)
	s.settle = 50 * time.Millisecond
	s.probeEvery = 20 * time.Millisecond
	s.probeCheck = func(context.Context, string) bool { return true }

	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	return s
}

func treeChecksums(t *testing.T, root string) map[string]string {
	t.Helper()

	sums := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		sums[rel] = hex.EncodeToString(sum[:])
		return nil
	})
	require.NoError(t, err)
	return sums
}

func TestStartStop_Scenario(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	s := newTestServer(t, NewRegistry(), testOptions(t, installDir, 18080))

	require.Equal(t, StateInstalled, s.State(), "launcher present means installed")
	require.NoError(t, s.Start(context.Background()))

	assert.True(t, s.IsRunning())
	assert.Equal(t, StateRunning, s.State())
	assert.NotZero(t, s.PID())
	assert.Equal(t, "http://localhost:"+strconv.Itoa(s.HTTPPort()), s.BaseURL())
	assert.Equal(t, s.HTTPPort()+1000, s.ManagementPort())

	stopped := time.Now()
	status, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RestoreOK, status)
	assert.False(t, s.IsRunning())
	assert.Zero(t, s.PID())
	assert.Equal(t, StateInstalled, s.State())
	assert.Less(t, time.Since(stopped), 10*time.Second)
}

func TestStart_NoopWhenAlreadyRunning(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	s := newTestServer(t, NewRegistry(), testOptions(t, installDir, 18180))

	require.NoError(t, s.Start(context.Background()))
	pid := s.PID()

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, pid, s.PID(), "second start must not respawn")
}

func TestStop_NoopWhenNeverStarted(t *testing.T) {
	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	s := newTestServer(t, NewRegistry(), testOptions(t, installDir, 18280))

	status, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RestoreSkipped, status)

	// And a second one is just as silent.
	status, err = s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RestoreSkipped, status)
}

func TestStart_FailsWhenNotInstalled(t *testing.T) {
	s := newTestServer(t, NewRegistry(), testOptions(t, t.TempDir(), 18380))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsStart(err))
	assert.False(t, IsReadyTimeout(err))
}

func TestStart_ImmediateExitIsStartError(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	fakeDistribution(t, installDir, "#!/bin/sh\necho boom\nexit 1\n")
	s := newTestServer(t, NewRegistry(), testOptions(t, installDir, 18480))

	err := s.Start(context.Background())
	require.Error(t, err)
	require.True(t, IsStart(err), "immediate death must be a start failure, got %v", err)
	assert.False(t, IsReadyTimeout(err))

	var startErr *StartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, s.LogPath(), startErr.LogPath)

	assert.False(t, s.IsRunning())
	assert.Equal(t, StateInstalled, s.State(), "failed start must roll back")
}

func TestStart_ReadinessTimeoutIsDistinctError(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	opts := testOptions(t, installDir, 18580)
	opts.StartTimeout = 300 * time.Millisecond
	s := newTestServer(t, NewRegistry(), opts)
	s.probeCheck = func(context.Context, string) bool { return false }

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsReadyTimeout(err), "a running but unready server must time out, got %v", err)
	assert.False(t, IsStart(err))

	assert.False(t, s.IsRunning(), "rollback must terminate the process")
	assert.Equal(t, StateInstalled, s.State())
}

func TestStart_ExplicitPortConflictFailsFast(t *testing.T) {
	skipOnWindows(t)

	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()
	busyPort := ln.Addr().(*net.TCPAddr).Port

	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	opts := testOptions(t, installDir, busyPort)
	opts.ManagementPort = busyPort + 1000
	opts.ExplicitPorts = true
	s := newTestServer(t, NewRegistry(), opts)

	err = s.Start(context.Background())
	require.Error(t, err)
	require.True(t, IsStart(err))

	var startErr *StartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, busyPort, startErr.Port, "the conflicting port must be reported")
}

func TestImportFileWrittenAndRemovedOnStop(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	distDir := fakeDistribution(t, installDir, sleepScript)

	opts := testOptions(t, installDir, 18680)
	opts.Realm = &realm.Config{
		Realm: "dev",
		Users: []realm.User{{Username: "alice", Password: "secret"}},
	}
	s := newTestServer(t, NewRegistry(), opts)

	require.NoError(t, s.Start(context.Background()))
	importFile := realm.ImportFilePath(distDir, s.HTTPPort())
	assert.FileExists(t, importFile)

	_, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, importFile, "stop must remove the import file")
}

func TestImportFileRemovedAfterFailedStart(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	distDir := fakeDistribution(t, installDir, "#!/bin/sh\nexit 1\n")

	opts := testOptions(t, installDir, 18780)
	opts.Realm = &realm.Config{
		Realm: "dev",
		Users: []realm.User{{Username: "alice", Password: "secret"}},
	}
	s := newTestServer(t, NewRegistry(), opts)

	require.Error(t, s.Start(context.Background()))

	matches, err := filepath.Glob(filepath.Join(distDir, "data", "import", "realm-*.json"))
	require.NoError(t, err)
	assert.Empty(t, matches, "rollback must remove the import file")
}

func TestRestoreRoundTrip(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	// The fake server mutates the distribution the way a real Keycloak
	// does: new files in data/, changed files in conf/.
	distDir := fakeDistribution(t, installDir,
		"#!/bin/sh\necho mutated > data/mutated.txt\necho changed > conf/seed.txt\nexec sleep 60\n")

	before := treeChecksums(t, distDir)

	s := newTestServer(t, NewRegistry(), testOptions(t, installDir, 18880))
	require.NoError(t, s.Start(context.Background()))
	status, err := s.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, RestoreOK, status)

	assert.Equal(t, before, treeChecksums(t, distDir),
		"distribution must be byte-identical after stop")
}

func TestPortUniquenessAcrossInstances(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	reg := NewRegistry()

	// Construct all servers first, then start them: registration only
	// evicts instances that are already running.
	var servers []*Server
	for i := 0; i < 3; i++ {
		servers = append(servers, newTestServer(t, reg, testOptions(t, installDir, 18980)))
	}
	for _, s := range servers {
		require.NoError(t, s.Start(context.Background()))
	}
	assert.Equal(t, 3, reg.CountRunning())

	seen := make(map[int]bool)
	for _, s := range servers {
		assert.False(t, seen[s.HTTPPort()], "http port %d handed out twice", s.HTTPPort())
		assert.False(t, seen[s.ManagementPort()], "management port %d handed out twice", s.ManagementPort())
		seen[s.HTTPPort()] = true
		seen[s.ManagementPort()] = true
	}

	require.NoError(t, reg.StopAll(context.Background()))
	assert.Zero(t, reg.CountRunning())
}

func TestRegistry_EvictsRunningInstanceOnNew(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	reg := NewRegistry()

	first := newTestServer(t, reg, testOptions(t, installDir, 19080))
	require.NoError(t, first.Start(context.Background()))
	require.True(t, first.IsRunning())

	second := newTestServer(t, reg, testOptions(t, installDir, 19080))
	assert.False(t, first.IsRunning(), "constructing a new instance must stop the running one")
	assert.False(t, second.IsRunning())
	assert.Len(t, reg.Servers(), 2, "eviction stops, it does not deregister")
}

func TestWaitUntilReady_FailsWhenNotRunning(t *testing.T) {
	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	s := newTestServer(t, NewRegistry(), testOptions(t, installDir, 19180))

	err := s.WaitUntilReady(context.Background(), time.Second)
	require.Error(t, err)
	assert.True(t, IsStart(err))
}

func TestClose_StopsAndDeregisters(t *testing.T) {
	skipOnWindows(t)

	installDir := t.TempDir()
	fakeDistribution(t, installDir, sleepScript)
	reg := NewRegistry()
	s := newTestServer(t, reg, testOptions(t, installDir, 19280))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	assert.False(t, s.IsRunning())
	assert.Empty(t, reg.Servers())
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	_, err := New(context.Background(), NewRegistry(), Options{})
	assert.Error(t, err, "empty install dir must be rejected")

	_, err = New(context.Background(), nil, Options{InstallDir: t.TempDir(), DataDir: t.TempDir()})
	assert.Error(t, err, "nil registry must be rejected")
}
