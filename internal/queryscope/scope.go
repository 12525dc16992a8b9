// Package queryscope implements C3: a per-query cache of opened file
// maps with a bounded LRU, matching RTags' Project::FileMapScope
// (original_source/src/Project.h) and generalized from the teacher's
// single-kind container/list LRU (internal/semantic/lru_cache.go) to the
// four-kind (Kind, FileID) keyspace described in spec.md §3/§4.3.
//
// A Scope belongs to exactly one query handler invocation and is not
// safe for concurrent use — per spec.md §4.3, scope operations are not
// thread-safe.
package queryscope

import (
	"container/list"
	"fmt"

	"github.com/standardbeagle/xref/internal/filemap"
	"github.com/standardbeagle/xref/internal/types"
)

type entryKey struct {
	kind   filemap.Kind
	fileID types.FileID
}

// Closer is satisfied by filemap.FileMap[K,V] via its Close method; the
// scope stores opened maps behind this interface since Go's generics
// don't let the four kind-maps share a single concrete element type.
type Closer interface {
	Close() error
}

type lruEntry struct {
	key   entryKey
	value Closer
}

// Scope is the bounded LRU cache of opened file maps for one query.
type Scope struct {
	store *filemap.Store
	max   int

	maps map[filemap.Kind]map[types.FileID]Closer
	lru  *list.List // of *lruEntry, front = most recently used
	elem map[entryKey]*list.Element

	totalOpened int
	onLoadFailed func(types.FileID)
}

// BeginScope opens a new query scope bounded to max total live entries
// across all four kinds. onLoadFailed is invoked (if non-nil) whenever
// opening a map fails, so the caller can mark that file dirty.
func BeginScope(store *filemap.Store, max int, onLoadFailed func(types.FileID)) *Scope {
	if max <= 0 {
		max = 1
	}
	s := &Scope{
		store:        store,
		max:          max,
		maps:         make(map[filemap.Kind]map[types.FileID]Closer),
		lru:          list.New(),
		elem:         make(map[entryKey]*list.Element),
		onLoadFailed: onLoadFailed,
	}
	for _, k := range filemap.Kinds {
		s.maps[k] = make(map[types.FileID]Closer)
	}
	return s
}

// EndScope closes every map still held by the scope. Every query
// handler must call EndScope on every exit path (spec.md §9).
func (s *Scope) EndScope() {
	for _, byFile := range s.maps {
		for _, m := range byFile {
			_ = m.Close()
		}
	}
	for _, k := range filemap.Kinds {
		s.maps[k] = make(map[types.FileID]Closer)
	}
	s.lru.Init()
	s.elem = make(map[entryKey]*list.Element)
}

// touch moves key's LRU entry to the front (most-recently-used end).
func (s *Scope) touch(key entryKey) {
	if el, ok := s.elem[key]; ok {
		s.lru.MoveToFront(el)
	}
}

// insert records a freshly opened map and evicts the least-recently-used
// entry if that pushes the scope over its budget.
func (s *Scope) insert(key entryKey, value Closer) {
	s.maps[key.kind][key.fileID] = value
	el := s.lru.PushFront(&lruEntry{key: key, value: value})
	s.elem[key] = el
	s.totalOpened++

	if len(s.elem) > s.max {
		back := s.lru.Back()
		evicted := back.Value.(*lruEntry)
		s.lru.Remove(back)
		delete(s.elem, evicted.key)
		delete(s.maps[evicted.key.kind], evicted.key.fileID)
		_ = evicted.value.Close()
	}
}

// openedEntries returns the number of live (kind, fileID) entries. Used
// by tests to verify the LRU-list/kind-maps invariant (spec.md §8,
// invariant 4).
func (s *Scope) openedEntries() int { return len(s.elem) }

// TotalOpened returns how many opens have happened in this scope's
// lifetime, including ones later evicted.
func (s *Scope) TotalOpened() int { return s.totalOpened }

// OpenedEntries exposes openedEntries for callers outside the package
// (e.g. administrative diagnostics).
func (s *Scope) OpenedEntries() int { return s.openedEntries() }

func openTyped[K any, V any](
	s *Scope,
	kind filemap.Kind,
	fileID types.FileID,
	load func(*filemap.Store, types.FileID) (*filemap.FileMap[K, V], error),
) (*filemap.FileMap[K, V], error) {
	key := entryKey{kind: kind, fileID: fileID}
	if existing, ok := s.maps[kind][fileID]; ok {
		s.touch(key)
		return existing.(*filemap.FileMap[K, V]), nil
	}

	m, err := load(s.store, fileID)
	if err != nil {
		if s.onLoadFailed != nil {
			s.onLoadFailed(fileID)
		}
		return nil, fmt.Errorf("queryscope: open %s for file %d: %w", kind, fileID, err)
	}

	s.insert(key, m)
	return m, nil
}

// OpenSymbols opens (or returns the cached) Symbols map for fileID.
func (s *Scope) OpenSymbols(fileID types.FileID) (*filemap.FileMap[types.Location, types.Symbol], error) {
	return openTyped(s, filemap.KindSymbols, fileID, (*filemap.Store).OpenSymbols)
}

// OpenSymbolNames opens (or returns the cached) SymbolNames map for fileID.
func (s *Scope) OpenSymbolNames(fileID types.FileID) (*filemap.FileMap[string, []types.Location], error) {
	return openTyped(s, filemap.KindSymbolNames, fileID, (*filemap.Store).OpenSymbolNames)
}

// OpenTargets opens (or returns the cached) Targets map for fileID.
func (s *Scope) OpenTargets(fileID types.FileID) (*filemap.FileMap[string, []types.Location], error) {
	return openTyped(s, filemap.KindTargets, fileID, (*filemap.Store).OpenTargets)
}

// OpenUsrs opens (or returns the cached) Usrs map for fileID.
func (s *Scope) OpenUsrs(fileID types.FileID) (*filemap.FileMap[string, []types.Location], error) {
	return openTyped(s, filemap.KindUsrs, fileID, (*filemap.Store).OpenUsrs)
}
