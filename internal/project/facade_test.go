package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/xref/internal/depgraph"
	"github.com/standardbeagle/xref/internal/filemap"
	"github.com/standardbeagle/xref/internal/types"
)

// seedSymbol adds a definition/declaration Symbol to the project's file
// maps (keeping entries seeded earlier for the same file), bypassing the
// indexer backend so facade queries can be tested against a known,
// hand-built symbol table.
func seedSymbol(t *testing.T, p *Project, fileID types.FileID, loc types.Location, usr, name string, flags types.SymbolFlags, kind types.SymbolKind) types.Symbol {
	t.Helper()
	sym := types.Symbol{Location: loc, Kind: kind, USR: usr, Name: name, Flags: flags, Length: len(name)}
	var symbols []filemap.Entry[types.Location, types.Symbol]
	if m, err := p.store.OpenSymbols(fileID); err == nil {
		symbols = m.All()
	}
	var names, targets []filemap.Entry[string, []types.Location]
	if m, err := p.store.OpenSymbolNames(fileID); err == nil {
		names = m.All()
	}
	if m, err := p.store.OpenTargets(fileID); err == nil {
		targets = m.All()
	}
	require.NoError(t, p.store.WriteSymbols(fileID, append(symbols, filemap.Entry[types.Location, types.Symbol]{Key: loc, Value: sym})))
	require.NoError(t, p.store.WriteSymbolNames(fileID, append(names, filemap.Entry[string, []types.Location]{Key: name, Value: []types.Location{loc}})))
	require.NoError(t, p.store.WriteTargets(fileID, append(targets, filemap.Entry[string, []types.Location]{Key: usr, Value: []types.Location{loc}})))
	return sym
}

func TestFindTargets_and_BestTarget_preferDefinition(t *testing.T) {
	p, root := newTestProject(t, false)
	declPath := writeSrc(t, root, "decl.h", "")
	defPath := writeSrc(t, root, "def.c", "")

	declID := p.locations.InsertFile(declPath)
	defID := p.locations.InsertFile(defPath)

	p.mu.Lock()
	p.graph.Link(defID, declID) // def.c includes decl.h
	p.mu.Unlock()

	declLoc := types.Location{FileID: declID, Line: 1, Column: 1}
	defLoc := types.Location{FileID: defID, Line: 5, Column: 1}
	seedSymbol(t, p, declID, declLoc, "usr:widget", "widget", 0, types.KindUnknown)
	seedSymbol(t, p, defID, defLoc, "usr:widget", "widget", types.FlagDefinition, types.KindUnknown)

	// FindTargets scans dependencies(fileID, DependsOnArg) ∪ {fileID} —
	// the files that depend on (include) the querying symbol's file —
	// so the query must originate from decl.h, which def.c includes.
	referrerSym, _, ok, err := p.FindSymbol(declLoc)
	require.NoError(t, err)
	require.True(t, ok)

	targets := p.FindTargets(referrerSym)
	require.Len(t, targets, 2)

	best, ok := BestTarget(targets)
	require.True(t, ok)
	assert.True(t, best.IsDefinition())
	assert.Equal(t, defID, best.Location.FileID)
}

func TestFindCallers_filtersToFunctionLikeSymbols(t *testing.T) {
	p, root := newTestProject(t, false)
	defPath := writeSrc(t, root, "def.c", "")
	callerPath := writeSrc(t, root, "caller.c", "")
	varPath := writeSrc(t, root, "var.c", "")

	defID := p.locations.InsertFile(defPath)
	callerID := p.locations.InsertFile(callerPath)
	varID := p.locations.InsertFile(varPath)

	p.mu.Lock()
	p.graph.Link(callerID, defID)
	p.graph.Link(varID, defID)
	p.mu.Unlock()

	defLoc := types.Location{FileID: defID, Line: 1, Column: 1}
	seedSymbol(t, p, defID, defLoc, "usr:fn", "fn", types.FlagDefinition, types.KindFunction)

	fnCallLoc := types.Location{FileID: callerID, Line: 2, Column: 3}
	seedSymbol(t, p, callerID, fnCallLoc, "usr:fn", "fn", 0, types.KindFunction)

	varRefLoc := types.Location{FileID: varID, Line: 4, Column: 1}
	seedSymbol(t, p, varID, varRefLoc, "usr:fn", "fn", 0, types.KindVariable)

	defSym, _, ok, err := p.FindSymbol(defLoc)
	require.NoError(t, err)
	require.True(t, ok)

	callers := p.FindCallers(defSym)
	for _, c := range callers {
		assert.True(t, c.Kind.IsFunctionLike())
	}
	assert.NotEmpty(t, callers)
}

func TestFindSymbols_wildcardAndExactAndPrefixMatches(t *testing.T) {
	p, root := newTestProject(t, false)
	path := writeSrc(t, root, "a.c", "")
	fileID := p.locations.InsertFile(path)

	loc1 := types.Location{FileID: fileID, Line: 1, Column: 1}
	loc2 := types.Location{FileID: fileID, Line: 2, Column: 1}
	loc3 := types.Location{FileID: fileID, Line: 3, Column: 1}
	seedSymbol(t, p, fileID, loc1, "usr:widget_init", "widget_init", types.FlagDefinition, types.KindFunction)
	seedSymbol(t, p, fileID, loc2, "usr:widget_destroy", "widget_destroy", types.FlagDefinition, types.KindFunction)
	seedSymbol(t, p, fileID, loc3, "usr:gadget", "gadget", types.FlagDefinition, types.KindFunction)

	p.mu.Lock()
	p.sources.Add(fileID, types.NewSource(path, nil, ""))
	p.mu.Unlock()

	var exact, wildcard, prefix []string
	err := p.FindSymbols("widget_init", func(mt MatchType, name string, _ []types.Location) {
		switch mt {
		case MatchExact:
			exact = append(exact, name)
		case MatchWildcard:
			wildcard = append(wildcard, name)
		case MatchStartsWith:
			prefix = append(prefix, name)
		}
	}, 0, types.InvalidFileID)
	require.NoError(t, err)
	assert.Equal(t, []string{"widget_init"}, exact)

	err = p.FindSymbols("widget*", func(mt MatchType, name string, _ []types.Location) {
		if mt == MatchWildcard {
			wildcard = append(wildcard, name)
		}
	}, 0, types.InvalidFileID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"widget_init", "widget_destroy"}, wildcard)

	err = p.FindSymbols("widget", func(mt MatchType, name string, _ []types.Location) {
		if mt == MatchStartsWith {
			prefix = append(prefix, name)
		}
	}, 0, types.InvalidFileID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"widget_init", "widget_destroy"}, prefix)
}

func TestSort_ordersByKindThenDefinitionThenPathThenPosition(t *testing.T) {
	p, root := newTestProject(t, false)
	path := writeSrc(t, root, "z.c", "")
	fileID := p.locations.InsertFile(path)

	fn := types.Symbol{Location: types.Location{FileID: fileID, Line: 10, Column: 1}, Kind: types.KindFunction, Flags: types.FlagDefinition}
	decl := types.Symbol{Location: types.Location{FileID: fileID, Line: 1, Column: 1}, Kind: types.KindFunction}
	variable := types.Symbol{Location: types.Location{FileID: fileID, Line: 1, Column: 1}, Kind: types.KindVariable}

	sorted := p.Sort([]types.Symbol{variable, decl, fn}, 0)
	require.Len(t, sorted, 3)
	assert.True(t, sorted[0].Symbol.Kind.IsFunctionLike())
	assert.True(t, sorted[1].Symbol.Kind.IsFunctionLike())
	assert.Equal(t, types.KindVariable, sorted[2].Symbol.Kind)
	assert.True(t, sorted[0].Symbol.IsDefinition())

	reversed := p.Sort([]types.Symbol{variable, decl, fn}, SortReverse)
	assert.Equal(t, types.KindVariable, reversed[0].Symbol.Kind)
}

func TestFindByUsr_excludesFilteredLocation(t *testing.T) {
	p, root := newTestProject(t, false)
	path := writeSrc(t, root, "a.c", "")
	fileID := p.locations.InsertFile(path)

	loc1 := types.Location{FileID: fileID, Line: 1, Column: 1}
	loc2 := types.Location{FileID: fileID, Line: 2, Column: 1}
	require.NoError(t, p.store.WriteTargets(fileID, []filemap.Entry[string, []types.Location]{
		{Key: "usr:x", Value: []types.Location{loc1, loc2}},
	}))
	require.NoError(t, p.store.WriteSymbols(fileID, []filemap.Entry[types.Location, types.Symbol]{
		{Key: loc1, Value: types.Symbol{Location: loc1, USR: "usr:x"}},
		{Key: loc2, Value: types.Symbol{Location: loc2, USR: "usr:x"}},
	}))

	results := p.FindByUsr("usr:x", fileID, depgraph.ArgDependsOn, loc1)
	require.Len(t, results, 1)
	assert.Equal(t, loc2, results[0].Location)
}
