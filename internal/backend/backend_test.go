package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/xref/internal/filemap"
	"github.com/standardbeagle/xref/internal/jobindex"
	"github.com/standardbeagle/xref/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestHeuristic_Run_walksTransitiveIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.h", `#pragma once`)
	writeFile(t, dir, "a.h", `#include "b.h"`)
	root := writeFile(t, dir, "a.c", "#include \"a.h\"\nint main(){}\n")

	locs := types.NewLocations()
	store := filemap.NewStore(filepath.Join(dir, ".xref"), filemap.OptionNone)
	h := NewHeuristic(locs, store)

	src := types.NewSource(root, nil, "")
	job := jobindex.NewJob(src)
	registry := jobindex.NewRegistry(nil)
	registry.Index(job)

	result := h.Run(context.Background(), job, registry)

	rootID, ok := locs.Lookup(root)
	require.True(t, ok)
	aHeaderID, ok := locs.Lookup(filepath.Join(dir, "a.h"))
	require.True(t, ok)
	bHeaderID, ok := locs.Lookup(filepath.Join(dir, "b.h"))
	require.True(t, ok)

	assert.True(t, result.Visited[rootID])
	assert.True(t, result.Visited[aHeaderID])
	assert.True(t, result.Visited[bHeaderID])
	assert.Equal(t, []types.FileID{aHeaderID}, result.Dependencies[rootID])
	assert.Equal(t, []types.FileID{bHeaderID}, result.Dependencies[aHeaderID])

	sm, err := store.OpenSymbols(rootID)
	require.NoError(t, err)
	defer sm.Close()
	entries := sm.All()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Value.IsDefinition())
}

func TestHeuristic_Run_cancelledJobReleasesClaims(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "a.c", `int main(){}`)

	locs := types.NewLocations()
	h := NewHeuristic(locs, nil)

	src := types.NewSource(root, nil, "")
	job := jobindex.NewJob(src)
	registry := jobindex.NewRegistry(nil)
	registry.Index(job)
	job.Cancel()

	result := h.Run(context.Background(), job, registry)
	assert.Empty(t, result.Visited)
	assert.Equal(t, jobindex.Aborted, job.State())
	assert.Empty(t, registry.VisitedFiles())
}

func TestHeuristic_Run_secondJobSkipsAlreadyClaimedInclude(t *testing.T) {
	dir := t.TempDir()
	shared := writeFile(t, dir, "shared.h", `#pragma once`)
	rootA := writeFile(t, dir, "a.c", `#include "shared.h"`)

	locs := types.NewLocations()
	h := NewHeuristic(locs, nil)
	registry := jobindex.NewRegistry(nil)

	sharedID := locs.InsertFile(shared)
	require.True(t, registry.VisitFile(sharedID, shared, 999))

	srcA := types.NewSource(rootA, nil, "")
	jobA := jobindex.NewJob(srcA)
	registry.Index(jobA)

	result := h.Run(context.Background(), jobA, registry)
	rootID, _ := locs.Lookup(rootA)
	assert.True(t, result.Visited[rootID])
	assert.False(t, result.Visited[sharedID], "already-claimed include must not be re-visited")
}

func TestScanIncludes_quotedAndGoImports(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mixed.go", "package main\n\nimport (\n\t\"fmt\"\n\t\"os\"\n)\n")
	includes, err := scanIncludes(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"fmt", "os"}, includes)
}

func TestResolveInclude_missingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", resolveInclude(dir, "nope.h"))
}
