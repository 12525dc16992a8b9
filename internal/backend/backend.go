// Package backend defines the IndexerBackend collaborator (spec.md §6,
// §1 "out of scope": the actual compiler front-end) and ships a
// heuristic include-scanning reference implementation so the rest of
// the engine can be exercised end-to-end without a real parser.
//
// The heuristic scanner is ported in spirit from the teacher's
// resolveIncludesHeuristic (internal/indexing/include_resolver.go):
// same quoted-#include walk (done here by line-prefix matching, not a
// regex) and candidate-resolution-by-basename idea, generalized into a standing interface so a real compiler-backed
// implementation can be swapped in without touching internal/jobindex
// or internal/project.
package backend

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/xref/internal/debug"
	"github.com/standardbeagle/xref/internal/filemap"
	"github.com/standardbeagle/xref/internal/jobindex"
	"github.com/standardbeagle/xref/internal/types"
)

// Locations is the subset of *types.Locations the backend needs to turn
// discovered include paths into FileIDs.
type Locations interface {
	InsertFile(path string) types.FileID
	Path(types.FileID) string
}

// IndexerBackend runs one IndexerJob to completion, claiming visited
// files via VisitFile/ReleaseFileIds and reporting a final IndexResult.
// Run must respect job.Cancelled() cooperatively (spec.md §5: "no forced
// termination").
type IndexerBackend interface {
	Run(ctx context.Context, job *jobindex.Job, registry *jobindex.Registry) types.IndexResult
}

// Heuristic is the reference IndexerBackend: it scans a source file and
// its transitively discovered includes for quoted C/C++ #include
// directives and Go import blocks, recording a trivial definition
// Symbol for each visited file (enough to drive findSymbol/findTargets
// in tests) and writing the resulting file maps via store.
type Heuristic struct {
	Locations Locations
	Store     *filemap.Store
}

// NewHeuristic builds a Heuristic backend bound to the given Locations
// registry and FileMapStore.
func NewHeuristic(locs Locations, store *filemap.Store) *Heuristic {
	return &Heuristic{Locations: locs, Store: store}
}

// Run walks src.Path's transitive includes breadth-first, claiming
// first-visit rights via registry.VisitFile so two concurrent jobs never
// double-walk the same header, and returns the accumulated IndexResult.
func (h *Heuristic) Run(ctx context.Context, job *jobindex.Job, registry *jobindex.Registry) types.IndexResult {
	src := job.Source
	result := types.NewIndexResult(src.Key)

	rootID := h.Locations.InsertFile(src.Path)
	queue := []types.FileID{rootID}
	queued := map[types.FileID]bool{rootID: true}

	for len(queue) > 0 {
		select {
		case <-job.Cancelled():
			job.SetState(jobindex.Aborted)
			registry.ReleaseFileIds(job.Visited())
			return result
		case <-ctx.Done():
			job.SetState(jobindex.Aborted)
			registry.ReleaseFileIds(job.Visited())
			return result
		default:
		}

		cur := queue[0]
		queue = queue[1:]
		path := h.Locations.Path(cur)
		if path == "" {
			continue
		}

		if !registry.VisitFile(cur, path, src.Key) && cur != rootID {
			continue
		}
		result.Visited[cur] = true

		includes, err := scanIncludes(path)
		if err != nil {
			result.Diagnostics[cur] = append(result.Diagnostics[cur], types.Diagnostic{
				Level:   types.DiagWarning,
				Message: fmt.Sprintf("backend: scan %s: %v", path, err),
			})
			continue
		}

		var includeIDs []types.FileID
		for _, inc := range includes {
			resolved := resolveInclude(filepath.Dir(path), inc)
			if resolved == "" {
				continue
			}
			incID := h.Locations.InsertFile(resolved)
			includeIDs = append(includeIDs, incID)
			if !queued[incID] {
				queued[incID] = true
				queue = append(queue, incID)
			}
		}
		result.Dependencies[cur] = includeIDs

		h.writeTrivialSymbol(cur, src)
	}

	job.SetState(jobindex.Complete)
	debug.LogIndexing("heuristic backend: source %s visited %d files", src.Path, len(result.Visited))
	return result
}

// writeTrivialSymbol persists a single definition Symbol for fileID so
// findSymbol/findTargets have something real to resolve in tests — a
// stand-in for what a real compiler backend would emit for every symbol
// it parses.
func (h *Heuristic) writeTrivialSymbol(fileID types.FileID, src types.Source) {
	if h.Store == nil {
		return
	}
	loc := types.Location{FileID: fileID, Line: 1, Column: 1}
	name := filepath.Base(h.Locations.Path(fileID))
	usr := fmt.Sprintf("heuristic:%d:%s", fileID, name)
	sym := types.Symbol{
		Location: loc,
		Kind:     types.KindUnknown,
		USR:      usr,
		Name:     name,
		Flags:    types.FlagDefinition,
		Length:   len(name),
	}
	_ = h.Store.WriteSymbols(fileID, []filemap.Entry[types.Location, types.Symbol]{{Key: loc, Value: sym}})
	_ = h.Store.WriteSymbolNames(fileID, []filemap.Entry[string, []types.Location]{{Key: name, Value: []types.Location{loc}}})
	_ = h.Store.WriteTargets(fileID, []filemap.Entry[string, []types.Location]{{Key: usr, Value: []types.Location{loc}}})
	_ = h.Store.WriteUsrs(fileID, nil)
}

// includePrefixes are the directive forms the heuristic scanner
// recognizes, grounded on the teacher's "breadth" note (SPEC_FULL.md
// §4.9): C/C++ quoted includes plus a Go import line, scanned the same
// simple line-prefix way.
var includePrefixes = []string{`#include "`, `import "`}

func scanIncludes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var includes []string
	sc := bufio.NewScanner(f)
	inGoImportBlock := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if inGoImportBlock {
			if line == ")" {
				inGoImportBlock = false
				continue
			}
			if imp := parseGoImportLine(line); imp != "" {
				includes = append(includes, imp)
			}
			continue
		}
		if line == "import (" {
			inGoImportBlock = true
			continue
		}

		for _, prefix := range includePrefixes {
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			rest := line[len(prefix):]
			end := strings.Index(rest, `"`)
			if end < 0 {
				continue
			}
			includes = append(includes, rest[:end])
		}
	}
	return includes, sc.Err()
}

func parseGoImportLine(line string) string {
	start := strings.Index(line, `"`)
	if start < 0 {
		return ""
	}
	rest := line[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// resolveInclude resolves a quoted include relative to baseDir,
// returning "" if the candidate doesn't exist on disk. Go-style import
// paths (containing "/" with no file extension) are left unresolved by
// this heuristic backend — they name packages, not files.
func resolveInclude(baseDir, includeName string) string {
	if !strings.Contains(filepath.Base(includeName), ".") {
		return ""
	}
	candidate := filepath.Clean(filepath.Join(baseDir, includeName))
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
