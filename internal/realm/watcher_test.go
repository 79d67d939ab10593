package realm

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RequiresPath(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{})
	assert.Error(t, err)
}

func TestWatcher_NotifiesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("realm: dev\n"), 0o644))

	changed := make(chan struct{}, 8)
	w, err := NewWatcher(WatcherConfig{
		Path:     path,
		OnChange: func() { changed <- struct{}{} },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Give the watcher a moment to settle before producing events.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("realm: dev2\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("realm: dev\n"), 0o644))

	changed := make(chan struct{}, 8)
	w, err := NewWatcher(WatcherConfig{
		Path:     path,
		OnChange: func() { changed <- struct{}{} },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x\n"), 0o644))

	select {
	case <-changed:
		t.Fatal("sibling file changes must not notify")
	case <-time.After(DefaultDebounceInterval + 500*time.Millisecond):
	}
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("realm: dev\n"), 0o644))

	w, err := NewWatcher(WatcherConfig{Path: path})
	require.NoError(t, err)

	require.NoError(t, w.Start())
	require.NoError(t, w.Start(), "second Start must be a no-op")
	assert.True(t, w.IsRunning())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop(), "second Stop must be a no-op")
	assert.False(t, w.IsRunning())
}

func TestWatcher_NoNotificationsAfterStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("realm: dev\n"), 0o644))

	changed := make(chan struct{}, 8)
	w, err := NewWatcher(WatcherConfig{
		Path:     path,
		OnChange: func() { changed <- struct{}{} },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())

	require.NoError(t, os.WriteFile(path, []byte("realm: dev2\n"), 0o644))

	select {
	case <-changed:
		t.Fatal("stopped watcher must not notify")
	case <-time.After(DefaultDebounceInterval + 500*time.Millisecond):
	}
}
