package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/xref/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("github.com/fsnotify/fsnotify.(*inotify).readEvents"),
		goleak.IgnoreAnyFunction("github.com/fsnotify/fsnotify.(*Watcher).readEvents"),
	)
}

// invariant 5 of spec.md §8: Watch ORs mode into the per-directory
// bitset and Unwatch clears it (AND NOT) — a directory with any other bit
// still set stays registered, and clearing every bit drops the entry.
func TestWatch_bitsetOrOnWatchClearOnUnwatch(t *testing.T) {
	dir := t.TempDir()
	tbl, err := New(Options{})
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Watch(dir, types.WatchSourceFile))
	require.NoError(t, tbl.Watch(dir, types.WatchDependency))

	paths := tbl.WatchedPaths()
	assert.Equal(t, types.WatchSourceFile|types.WatchDependency, paths[filepath.Clean(dir)])

	tbl.Unwatch(dir, types.WatchSourceFile)
	paths = tbl.WatchedPaths()
	assert.Equal(t, types.WatchDependency, paths[filepath.Clean(dir)], "clearing one bit must leave the other set")

	tbl.Unwatch(dir, types.WatchDependency)
	paths = tbl.WatchedPaths()
	_, present := paths[filepath.Clean(dir)]
	assert.False(t, present, "clearing every bit must drop the directory entirely")
}

func TestClearWatch_onlyAffectsMaskedBits(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	tbl, err := New(Options{})
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Watch(dirA, types.WatchSourceFile|types.WatchDependency))
	require.NoError(t, tbl.Watch(dirB, types.WatchCompilationDatabase))

	tbl.ClearWatch(types.WatchSourceFile)

	paths := tbl.WatchedPaths()
	assert.Equal(t, types.WatchDependency, paths[filepath.Clean(dirA)])
	assert.Equal(t, types.WatchCompilationDatabase, paths[filepath.Clean(dirB)])
}

func TestDispatch_writeTriggersDirtyForKnownFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(target, []byte("int main(){}"), 0o644))

	dirty := make(chan types.FileID, 1)
	tbl, err := New(Options{
		FileIDForPath: func(path string) (types.FileID, bool) {
			if filepath.Clean(path) == filepath.Clean(target) {
				return 42, true
			}
			return 0, false
		},
		OnDirty: func(f types.FileID) { dirty <- f },
	})
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Watch(dir, types.WatchSourceFile))
	require.NoError(t, os.WriteFile(target, []byte("int main(){return 1;}"), 0o644))

	select {
	case f := <-dirty:
		assert.Equal(t, types.FileID(42), f)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dirty dispatch from a write event")
	}
}

func TestDispatch_compilationDBEditSkipsSourceDirty(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "compile_commands.json")
	require.NoError(t, os.WriteFile(dbPath, []byte("[]"), 0o644))

	edits := make(chan struct{}, 1)
	tbl, err := New(Options{
		IsCompilationDB:     func(path string) bool { return filepath.Clean(path) == filepath.Clean(dbPath) },
		OnCompilationDBEdit: func() { edits <- struct{}{} },
		FileIDForPath:       func(string) (types.FileID, bool) { return 0, false },
	})
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Watch(dir, types.WatchCompilationDatabase))
	require.NoError(t, os.WriteFile(dbPath, []byte("[{}]"), 0o644))

	select {
	case <-edits:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for compilation database edit dispatch")
	}
}
