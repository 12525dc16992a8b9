// facade.go implements C7's query surface (spec.md §4.7) atop C1-C3.
// Method set and priority rules (bestTarget, sort order) are ported in
// meaning from RTags' Project::findSymbol/findTargets/findAllReferences/
// findCallers/findVirtuals/findSubclasses/findByUsr/findSymbols/sort
// (original_source/src/Project.h), laid out the teacher's thin
// method-per-operation style (internal/server/client.go), adapted from
// an HTTP client to an in-process facade.
package project

import (
	"sort"
	"strings"

	"github.com/standardbeagle/xref/internal/depgraph"
	"github.com/standardbeagle/xref/internal/filemap"
	"github.com/standardbeagle/xref/internal/queryscope"
	"github.com/standardbeagle/xref/internal/types"
)

// beginScope opens a query scope implicit to every query entry point
// (spec.md §9 "Scope lifetime"); callers must defer scope.EndScope() on
// every exit path.
func (p *Project) beginScope() *queryscope.Scope {
	return queryscope.BeginScope(p.store, p.opts.ScopeMax, p.loadFailed)
}

// loadFailed marks fileID dirty so a corrupt/missing file map gets
// re-indexed (spec.md §7 LoadFailure).
func (p *Project) loadFailed(fileID types.FileID) {
	p.dirtySet.Dirty(fileID)
}

// candidateFiles returns fileID plus its transitive dependency set in
// the requested direction, the file set every multi-file query scans.
func (p *Project) candidateFiles(fileID types.FileID, mode depgraph.DependencyMode) map[types.FileID]bool {
	p.mu.Lock()
	deps := p.graph.Dependencies(fileID, mode)
	p.mu.Unlock()
	deps[fileID] = true
	return deps
}

// FindSymbol resolves loc to the Symbol at or covering it (spec.md
// §4.7 findSymbol). idx receives the symbol's position within its
// file's sorted Symbols list. Returns (Symbol{}, -1, false, nil) rather than
// an error when loc's file is simply unknown (spec.md §7
// MissingFileID).
func (p *Project) FindSymbol(loc types.Location) (types.Symbol, int, bool, error) {
	scope := p.beginScope()
	defer scope.EndScope()

	m, err := scope.OpenSymbols(loc.FileID)
	if err != nil {
		return types.Symbol{}, -1, false, nil
	}

	if sym, ok := m.Lookup(loc); ok {
		return sym, symbolIndex(m.All(), loc), true, nil
	}
	if entry, ok := m.Floor(loc); ok && entry.Value.Covers(loc) {
		return entry.Value, symbolIndex(m.All(), entry.Key), true, nil
	}
	return types.Symbol{}, -1, false, nil
}

func symbolIndex(entries []filemap.Entry[types.Location, types.Symbol], key types.Location) int {
	for i, e := range entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

// FindTargets resolves sym's USR to the set of symbols it points at
// (definitions preferred), scanning Targets maps of sym's dependency
// closure (DependsOnArg) (spec.md §4.7 findTargets).
func (p *Project) FindTargets(sym types.Symbol) []types.Symbol {
	candidates := p.candidateFiles(sym.Location.FileID, depgraph.DependsOnArg)

	scope := p.beginScope()
	defer scope.EndScope()

	var out []types.Symbol
	seen := make(map[types.Location]bool)
	for fileID := range candidates {
		targets, err := scope.OpenTargets(fileID)
		if err != nil {
			continue
		}
		locs, ok := targets.Lookup(sym.USR)
		if !ok {
			continue
		}
		for _, loc := range locs {
			if seen[loc] {
				continue
			}
			symbols, err := scope.OpenSymbols(loc.FileID)
			if err != nil {
				continue
			}
			if target, ok := symbols.Lookup(loc); ok {
				seen[loc] = true
				out = append(out, target)
			}
		}
	}
	return out
}

// BestTarget picks the single best match out of FindTargets' result set
// (spec.md §4.7 bestTarget), by priority: definitions first, then
// function-like symbols, then any other symbol; among equally ranked
// targets the first one wins. USRs and signatures are not compared: the
// candidates are assumed to share the queried USR already.
func BestTarget(targets []types.Symbol) (types.Symbol, bool) {
	if len(targets) == 0 {
		return types.Symbol{}, false
	}
	best := targets[0]
	bestScore := targetPriority(best)
	for _, t := range targets[1:] {
		if score := targetPriority(t); score > bestScore {
			best, bestScore = t, score
		}
	}
	return best, true
}

func targetPriority(s types.Symbol) int {
	switch {
	case s.IsDefinition():
		return 3
	case s.Kind.IsFunctionLike():
		return 2
	default:
		return 1
	}
}

// FindAllReferences returns every location in sym's dependents
// (DependsOnArg) closure whose Targets entry names sym's USR, confirmed
// by re-fetching the Symbol at that location (spec.md §4.7
// findAllReferences).
func (p *Project) FindAllReferences(sym types.Symbol) []types.Symbol {
	candidates := p.candidateFiles(sym.Location.FileID, depgraph.DependsOnArg)

	scope := p.beginScope()
	defer scope.EndScope()

	var out []types.Symbol
	for fileID := range candidates {
		targets, err := scope.OpenTargets(fileID)
		if err != nil {
			continue
		}
		locs, ok := targets.Lookup(sym.USR)
		if !ok {
			continue
		}
		symbols, err := scope.OpenSymbols(fileID)
		if err != nil {
			continue
		}
		for _, loc := range locs {
			if ref, ok := symbols.Lookup(loc); ok && ref.USR == sym.USR {
				out = append(out, ref)
			}
		}
	}
	return out
}

// FindCallers is FindAllReferences filtered to function-like symbols
// (spec.md §4.7 findCallers).
func (p *Project) FindCallers(sym types.Symbol) []types.Symbol {
	refs := p.FindAllReferences(sym)
	out := refs[:0:0]
	for _, r := range refs {
		if r.Kind.IsFunctionLike() {
			out = append(out, r)
		}
	}
	return out
}

// FindVirtuals walks the Usrs class-hierarchy edges to find sym's
// overriders/overridees, if sym is a virtual method (spec.md §4.7
// findVirtuals).
func (p *Project) FindVirtuals(sym types.Symbol) []types.Symbol {
	if !sym.IsVirtual() {
		return nil
	}
	return p.walkUsrHierarchy(sym)
}

// FindSubclasses walks the Usrs class-hierarchy edges to find sym's
// subclasses (spec.md §4.7 findSubclasses). The reference
// implementation treats subclass and virtual-override edges
// identically: both are simply "what does the Usrs map say points at
// this USR", since a real compiler backend is what would populate the
// distinction.
func (p *Project) FindSubclasses(sym types.Symbol) []types.Symbol {
	return p.walkUsrHierarchy(sym)
}

func (p *Project) walkUsrHierarchy(sym types.Symbol) []types.Symbol {
	candidates := p.candidateFiles(sym.Location.FileID, depgraph.DependsOnArg)

	scope := p.beginScope()
	defer scope.EndScope()

	var out []types.Symbol
	for fileID := range candidates {
		usrs, err := scope.OpenUsrs(fileID)
		if err != nil {
			continue
		}
		locs, ok := usrs.Lookup(sym.USR)
		if !ok {
			continue
		}
		symbols, err := scope.OpenSymbols(fileID)
		if err != nil {
			continue
		}
		for _, loc := range locs {
			if s, ok := symbols.Lookup(loc); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// FindByUsr returns every symbol matching usr in files selected by
// dependencies(fileID, mode), optionally excluding filteredLoc (spec.md
// §4.7 findByUsr).
func (p *Project) FindByUsr(usr string, fileID types.FileID, mode depgraph.DependencyMode, filteredLoc types.Location) []types.Symbol {
	candidates := p.candidateFiles(fileID, mode)

	scope := p.beginScope()
	defer scope.EndScope()

	var out []types.Symbol
	for candidate := range candidates {
		targets, err := scope.OpenTargets(candidate)
		if err != nil {
			continue
		}
		locs, ok := targets.Lookup(usr)
		if !ok {
			continue
		}
		symbols, err := scope.OpenSymbols(candidate)
		if err != nil {
			continue
		}
		for _, loc := range locs {
			if loc == filteredLoc {
				continue
			}
			if s, ok := symbols.Lookup(loc); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// MatchType classifies how a candidate name matched a FindSymbols
// pattern (spec.md §4.7 findSymbols).
type MatchType int

const (
	MatchExact MatchType = iota
	MatchWildcard
	MatchStartsWith
)

// QueryFlags reserved for FindSymbols call-site options; the reference
// implementation defines none yet beyond the fileFilter parameter.
type QueryFlags uint32

// FindSymbols iterates SymbolNames maps (restricted to fileFilter if
// non-zero) and invokes cb for every name matching pattern, classified
// as Exact, Wildcard (pattern contains * or ?) or StartsWith (spec.md
// §4.7 findSymbols).
func (p *Project) FindSymbols(pattern string, cb func(MatchType, string, []types.Location), _ QueryFlags, fileFilter types.FileID) error {
	files := p.knownFiles()
	if fileFilter != types.InvalidFileID {
		files = map[types.FileID]bool{fileFilter: true}
	}

	hasWildcard := strings.ContainsAny(pattern, "*?")

	scope := p.beginScope()
	defer scope.EndScope()

	for fileID := range files {
		names, err := scope.OpenSymbolNames(fileID)
		if err != nil {
			continue
		}
		for _, e := range names.All() {
			switch {
			case e.Key == pattern:
				cb(MatchExact, e.Key, e.Value)
			case hasWildcard:
				if ok, _ := doublestarMatch(pattern, e.Key); ok {
					cb(MatchWildcard, e.Key, e.Value)
				}
			case strings.HasPrefix(e.Key, pattern):
				cb(MatchStartsWith, e.Key, e.Value)
			}
		}
	}
	return nil
}

// knownFiles returns every FileID that currently has a Source, the
// default scan set for FindSymbols when no fileFilter is given.
func (p *Project) knownFiles() map[types.FileID]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[types.FileID]bool, len(p.sources))
	for f := range p.sources {
		out[f] = true
	}
	return out
}

// SortFlags controls Sort's ordering (spec.md §4.7 sort()).
type SortFlags uint32

const (
	SortReverse    SortFlags = 1 << 0
	SortStripPaths SortFlags = 1 << 1
)

// SortedSymbol pairs a Symbol with the path its Location's FileID
// resolves to, since sort order depends on path text (spec.md §4.7).
type SortedSymbol struct {
	Symbol types.Symbol
	Path   string
}

func kindPriority(k types.SymbolKind) int {
	if k.IsFunctionLike() {
		return 0
	}
	return 1
}

// Sort orders symbols by (kind priority, definition-first, path, line,
// column), honoring SortReverse/SortStripPaths (spec.md §4.7 sort()).
func (p *Project) Sort(symbols []types.Symbol, flags SortFlags) []SortedSymbol {
	out := make([]SortedSymbol, len(symbols))
	for i, s := range symbols {
		path := p.locations.Path(s.Location.FileID)
		if flags&SortStripPaths != 0 {
			if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
				path = path[idx+1:]
			}
		}
		out[i] = SortedSymbol{Symbol: s, Path: path}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if pa, pb := kindPriority(a.Symbol.Kind), kindPriority(b.Symbol.Kind); pa != pb {
			return pa < pb
		}
		if a.Symbol.IsDefinition() != b.Symbol.IsDefinition() {
			return a.Symbol.IsDefinition()
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Symbol.Location.Line != b.Symbol.Location.Line {
			return a.Symbol.Location.Line < b.Symbol.Location.Line
		}
		return a.Symbol.Location.Column < b.Symbol.Location.Column
	})

	if flags&SortReverse != 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}
