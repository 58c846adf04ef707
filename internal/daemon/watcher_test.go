package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotWatcher_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.toml")
	require.NoError(t, os.WriteFile(path, []byte("# empty\n"), 0644))

	changes := make(chan struct{}, 16)
	w := NewSnapshotWatcher(path, 20*time.Millisecond, nil)
	w.SetChangeCallback(func() { changes <- struct{}{} })
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Writes to other files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0644))
	select {
	case <-changes:
		t.Fatal("unexpected change notification")
	case <-time.After(150 * time.Millisecond):
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("# changed\n"), 0644))
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestSnapshotWatcher_CreatedLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.yaml")

	changes := make(chan struct{}, 16)
	w := NewSnapshotWatcher(path, 0, nil)
	w.SetChangeCallback(func() { changes <- struct{}{} })
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Atomic replacement: write a temp file and rename it into place.
	tmp := filepath.Join(dir, ".snapshot.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("interfaces: []\n"), 0644))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestSnapshotWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWatcher(filepath.Join(dir, "snapshot.toml"), 0, nil)

	// Stop before Start is a no-op.
	w.Stop()

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()), "second start is a no-op")
	w.Stop()
	w.Stop()

	missing := NewSnapshotWatcher(filepath.Join(dir, "nope", "snapshot.toml"), 0, nil)
	assert.Error(t, missing.Start(context.Background()))
}
