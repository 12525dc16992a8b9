// Package persist implements C8: saving and restoring Sources,
// Dependencies and VisitedFiles under a project's state directory
// (spec.md §4.8). sources.rct and project.rct are written as indented
// JSON, atomically (write-to-temp, then os.Rename), exactly the idiom
// the teacher's internal/mcp/context_manifest_tool.go uses for its own
// persisted artifacts (saveManifestToFile/loadManifestFromFile).
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/standardbeagle/xref/internal/depgraph"
	"github.com/standardbeagle/xref/internal/types"
	"github.com/standardbeagle/xref/internal/xrefserr"
)

const persistVersion = 1

// CompilationDatabaseInfo mirrors spec.md §4.8's metadata sidecar about
// where a project's compile_commands.json came from and how it was
// interpreted.
type CompilationDatabaseInfo struct {
	Dir             string   `json:"dir"`
	LastModified    int64    `json:"lastModified"`
	PathEnvironment []string `json:"pathEnvironment"`
	IndexFlags      []string `json:"indexFlags"`
}

// sourcesFile is the on-disk shape of sources.rct.
type sourcesFile struct {
	Version     int                          `json:"version"`
	Sources     types.Sources                `json:"sources"`
	CompileInfo CompilationDatabaseInfo      `json:"compileInfo"`
}

// projectFile is the on-disk shape of project.rct.
type projectFile struct {
	Version      int                        `json:"version"`
	Edges        map[types.FileID][]types.FileID `json:"edges"`
	VisitedFiles map[types.FileID]string   `json:"visitedFiles"`
	DirtyFiles   []types.FileID             `json:"dirtyFiles"`
}

func sourcesPath(projectFilePath string) string { return filepath.Join(projectFilePath, "sources.rct") }
func projectPath(projectFilePath string) string { return filepath.Join(projectFilePath, "project.rct") }

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("persist: mkdir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persist: write temp for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist: rename into place for %s: %w", path, err)
	}
	return nil
}

// SaveSources writes sources.rct under projectFilePath.
func SaveSources(projectFilePath string, sources types.Sources, info CompilationDatabaseInfo) error {
	return writeJSONAtomic(sourcesPath(projectFilePath), sourcesFile{
		Version:     persistVersion,
		Sources:     sources,
		CompileInfo: info,
	})
}

// ReadSources is the static helper of spec.md §4.8, usable by external
// restore code without going through a live *project.Project.
func ReadSources(projectFilePath string) (types.Sources, CompilationDatabaseInfo, error) {
	path := sourcesPath(projectFilePath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Sources{}, CompilationDatabaseInfo{}, nil
		}
		return nil, CompilationDatabaseInfo{}, xrefserr.New(xrefserr.KindCorruptPersistence, "readSources", err).WithPath(path)
	}
	var sf sourcesFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, CompilationDatabaseInfo{}, xrefserr.New(xrefserr.KindCorruptPersistence, "readSources", err).WithPath(path)
	}
	if sf.Version != persistVersion {
		return nil, CompilationDatabaseInfo{}, xrefserr.New(xrefserr.KindCorruptPersistence, "readSources", fmt.Errorf("version mismatch: got %d want %d", sf.Version, persistVersion)).WithPath(path)
	}
	if sf.Sources == nil {
		sf.Sources = types.Sources{}
	}
	return sf.Sources, sf.CompileInfo, nil
}

// SaveProject writes project.rct: the dependency graph's edges,
// VisitedFiles and the set of currently-dirty file ids.
func SaveProject(projectFilePath string, graph *depgraph.Graph, visited map[types.FileID]string, dirty map[types.FileID]bool) error {
	dirtyList := make([]types.FileID, 0, len(dirty))
	for f := range dirty {
		dirtyList = append(dirtyList, f)
	}
	return writeJSONAtomic(projectPath(projectFilePath), projectFile{
		Version:      persistVersion,
		Edges:        graph.Edges(),
		VisitedFiles: visited,
		DirtyFiles:   dirtyList,
	})
}

// ReadProject loads project.rct and rebuilds the dependency graph,
// recomputing reverse links from the persisted includer->includes
// edges (spec.md §4.8: "reverse links recomputed on load").
func ReadProject(projectFilePath string) (*depgraph.Graph, map[types.FileID]string, map[types.FileID]bool, error) {
	path := projectPath(projectFilePath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return depgraph.New(), map[types.FileID]string{}, map[types.FileID]bool{}, nil
		}
		return nil, nil, nil, xrefserr.New(xrefserr.KindCorruptPersistence, "readProject", err).WithPath(path)
	}
	var pf projectFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, nil, nil, xrefserr.New(xrefserr.KindCorruptPersistence, "readProject", err).WithPath(path)
	}
	if pf.Version != persistVersion {
		return nil, nil, nil, xrefserr.New(xrefserr.KindCorruptPersistence, "readProject", fmt.Errorf("version mismatch: got %d want %d", pf.Version, persistVersion)).WithPath(path)
	}

	graph := depgraph.LoadEdges(pf.Edges)
	visited := pf.VisitedFiles
	if visited == nil {
		visited = map[types.FileID]string{}
	}
	dirty := make(map[types.FileID]bool, len(pf.DirtyFiles))
	for _, f := range pf.DirtyFiles {
		dirty[f] = true
	}
	return graph, visited, dirty, nil
}
