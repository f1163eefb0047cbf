package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/tunelib/internal/logger"
	"github.com/tejashwikalptaru/tunelib/internal/testutil"
)

func mp3Only(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

func newTestWatcher(t *testing.T, dirs ...string) *Watcher {
	t.Helper()
	w, err := New(logger.NewTestLogger(), mp3Only, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.AddAll(dirs))
	return w
}

// next waits for the next event or fails the test.
func next(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return Event{}
	}
}

// quiet asserts nothing is reported for a while.
func quiet(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %s %s", ev.Kind, ev.Path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_AddedAfterQuietPeriod(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	dir := t.TempDir()
	w := newTestWatcher(t, dir)
	w.Start(context.Background())
	defer w.Stop()

	path := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	// A second write inside the quiet period is coalesced
	require.NoError(t, os.WriteFile(path, []byte("ab"), 0o644))

	ev := next(t, w)
	assert.Equal(t, Added, ev.Kind)
	assert.Equal(t, path, ev.Path)
	quiet(t, w)
}

func TestWatcher_IgnoresUnsupportedAndHidden(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	dir := t.TempDir()
	w := newTestWatcher(t, dir)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.mp3.part"), nil, 0o644))

	quiet(t, w)
}

func TestWatcher_Removed(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w := newTestWatcher(t, dir)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	ev := next(t, w)
	assert.Equal(t, Removed, ev.Kind)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	dir := t.TempDir()
	w := newTestWatcher(t, dir)
	w.Start(context.Background())
	defer w.Stop()

	sub := filepath.Join(dir, "album")
	require.NoError(t, os.Mkdir(sub, 0o755))
	path := filepath.Join(sub, "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	ev := next(t, w)
	assert.Equal(t, Added, ev.Kind)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	w := newTestWatcher(t, t.TempDir())
	w.Start(context.Background())

	w.Stop()
	w.Stop()

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestWatcher_ContextCancel(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	w := newTestWatcher(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	cancel()
	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
	w.Stop()
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())

	w.Stop()

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestAddAll(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.mp3")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	w, err := New(logger.NewTestLogger(), mp3Only, 0)
	require.NoError(t, err)
	defer w.Stop()

	assert.NoError(t, w.AddAll([]string{dir, filepath.Join(dir, "missing")}))
	assert.ErrorIs(t, w.AddAll([]string{file}), ErrNotDirectory)
}
