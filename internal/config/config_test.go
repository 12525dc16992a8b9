package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default("/tmp/proj")
	assert.Equal(t, "/tmp/proj", cfg.Project.Root)
	assert.True(t, cfg.Index.WatchMode)
	assert.Equal(t, 50, cfg.Index.WatchDebounceMs)
	assert.Equal(t, 64, cfg.Index.ScopeMax)
}

func TestLoadKDL_missingFileReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadKDL_parsesKnownKeys(t *testing.T) {
	dir := t.TempDir()
	content := `
project {
  root "."
  name "demo"
}
index {
  watch_mode false
  watch_debounce_ms 250
  worker_count 8
  scope_max 128
  compilation_database "compile_commands.json"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".xref.kdl"), []byte(content), 0o644))

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "demo", cfg.Project.Name)
	assert.False(t, cfg.Index.WatchMode)
	assert.Equal(t, 250, cfg.Index.WatchDebounceMs)
	assert.Equal(t, 8, cfg.Index.WorkerCount)
	assert.Equal(t, 128, cfg.Index.ScopeMax)
	assert.Equal(t, "compile_commands.json", cfg.Index.CompilationDB)
}

func TestLoadKDL_relativeRootResolvedAgainstProjectDir(t *testing.T) {
	dir := t.TempDir()
	content := `
project {
  root "sub"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".xref.kdl"), []byte(content), 0o644))

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(dir, "sub"), cfg.Project.Root)
}
