package project

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/xref/internal/filemap"
	"github.com/standardbeagle/xref/internal/persist"
	"github.com/standardbeagle/xref/internal/types"
)

// Save writes sources.rct and project.rct, per spec.md §4.8. Per the
// design note in spec.md §9, callers must never call Save while a job
// is active — onJobFinished already enforces this for the automatic
// save path; callers of the exported Save should check IsIndexing
// themselves if they want the same guarantee.
func (p *Project) Save() error {
	p.mu.Lock()
	sources := p.sources
	info := p.compileInfo
	graph := p.graph
	p.mu.Unlock()

	if err := persist.SaveSources(p.opts.ProjectFilePath, sources, info); err != nil {
		return err
	}
	return persist.SaveProject(p.opts.ProjectFilePath, graph, p.jobs.VisitedFiles(), p.dirtySet.Pending())
}

// IsIndexing reports whether any job is currently active.
func (p *Project) IsIndexing() bool { return p.jobs.IsIndexing() }

// Prepare warms a file's QueryScope-visible state by opening its
// Symbols map once, so the first real query against it doesn't pay the
// cold-open cost. Returns the error a load would have hit, if any.
func (p *Project) Prepare(fileID types.FileID) error {
	scope := p.beginScope()
	defer scope.EndScope()
	_, err := scope.OpenSymbols(fileID)
	return err
}

// MemoryEstimate summarizes the project's approximate in-memory
// footprint, for the administrative estimateMemory operation.
type MemoryEstimate struct {
	Sources          int
	DependencyNodes  int
	ActiveJobs       int
	VisitedFiles     int
	FixItFiles       int
	DiagnosticsFiles int
	SuspendedFiles   int
	WatchedPaths     int
}

// EstimateMemory returns a coarse count-based estimate of project state
// size (spec.md §6 estimateMemory). The reference implementation counts
// entries rather than bytes, since most of the real cost (mmap'd file
// maps) lives outside this process's heap by construction.
func (p *Project) EstimateMemory() MemoryEstimate {
	p.mu.Lock()
	sourceCount := 0
	for _, srcs := range p.sources {
		sourceCount += len(srcs)
	}
	est := MemoryEstimate{
		Sources:          sourceCount,
		DependencyNodes:  p.graph.Len(),
		FixItFiles:       len(p.fixIts),
		DiagnosticsFiles: len(p.diagnostics),
		SuspendedFiles:   len(p.suspended),
	}
	p.mu.Unlock()

	est.ActiveJobs = p.jobs.ActiveCount()
	est.VisitedFiles = len(p.jobs.VisitedFiles())
	est.WatchedPaths = len(p.WatchedPaths())
	return est
}

// Diagnose returns a human-readable summary of fileID's current
// diagnostics and fix-its, the administrative diagnose operation.
func (p *Project) Diagnose(fileID types.FileID) string {
	p.mu.Lock()
	diags := append([]types.Diagnostic(nil), p.diagnostics[fileID]...)
	fixits := append([]types.FixIt(nil), p.fixIts[fileID]...)
	p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "file %d: %d diagnostic(s), %d fix-it(s)\n", fileID, len(diags), len(fixits))
	for _, d := range diags {
		fmt.Fprintf(&b, "  [%d] %s:%d:%d %s\n", d.Level, d.Location, d.Location.Line, d.Location.Column, d.Message)
	}
	for _, fx := range fixits {
		fmt.Fprintf(&b, "  fixit %d:%d (%d chars) -> %q\n", fx.Line, fx.Column, fx.Length, fx.Replacement)
	}
	return b.String()
}

// DiagnoseAll runs Diagnose over every file that currently has
// diagnostics or fix-its recorded.
func (p *Project) DiagnoseAll() string {
	p.mu.Lock()
	seen := make(map[types.FileID]bool)
	for f := range p.diagnostics {
		seen[f] = true
	}
	for f := range p.fixIts {
		seen[f] = true
	}
	p.mu.Unlock()

	var b strings.Builder
	for f := range seen {
		b.WriteString(p.Diagnose(f))
	}
	return b.String()
}

// DumpFileMaps returns the on-disk path and entry count of every file
// map kind for fileID, for the administrative dumpFileMaps operation.
func (p *Project) DumpFileMaps(fileID types.FileID) map[string]string {
	out := make(map[string]string)
	scope := p.beginScope()
	defer scope.EndScope()

	if m, err := scope.OpenSymbols(fileID); err == nil {
		out["symbols"] = fmt.Sprintf("%s (%d entries)", p.store.Path(fileID, filemap.KindSymbols), m.Count())
	}
	if m, err := scope.OpenSymbolNames(fileID); err == nil {
		out["symnames"] = fmt.Sprintf("%s (%d entries)", p.store.Path(fileID, filemap.KindSymbolNames), m.Count())
	}
	if m, err := scope.OpenTargets(fileID); err == nil {
		out["targets"] = fmt.Sprintf("%s (%d entries)", p.store.Path(fileID, filemap.KindTargets), m.Count())
	}
	if m, err := scope.OpenUsrs(fileID); err == nil {
		out["usrs"] = fmt.Sprintf("%s (%d entries)", p.store.Path(fileID, filemap.KindUsrs), m.Count())
	}
	return out
}
