// Package types holds the shared data model of the cross-reference engine:
// file identifiers, source locations, symbols, translation units and the
// small value types that flow between the job registry, the dependency
// graph and the on-disk file maps.
package types

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// FileID is a process-wide stable identifier for a filesystem path.
// Zero is the invalid/sentinel value.
type FileID uint32

// InvalidFileID is the sentinel value for "no file".
const InvalidFileID FileID = 0

// Location is a totally ordered (file, line, column) triple.
type Location struct {
	FileID FileID
	Line   int
	Column int
}

// Less orders locations lexicographically by (FileID, Line, Column).
func (l Location) Less(other Location) bool {
	if l.FileID != other.FileID {
		return l.FileID < other.FileID
	}
	if l.Line != other.Line {
		return l.Line < other.Line
	}
	return l.Column < other.Column
}

// IsValid reports whether the location refers to a real file.
func (l Location) IsValid() bool {
	return l.FileID != InvalidFileID
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d:%d", l.FileID, l.Line, l.Column)
}

// SortLocations sorts a slice of Locations in place.
func SortLocations(locs []Location) {
	sort.Slice(locs, func(i, j int) bool { return locs[i].Less(locs[j]) })
}

// SymbolKind classifies a Symbol's role.
type SymbolKind int

const (
	KindUnknown SymbolKind = iota
	KindFunction
	KindMethod
	KindConstructor
	KindDestructor
	KindVariable
	KindField
	KindClass
	KindStruct
	KindInterface
	KindEnum
	KindEnumMember
	KindNamespace
	KindTypeAlias
	KindMacro
)

func (k SymbolKind) String() string {
	switch k {
	case KindFunction:
		return "Function"
	case KindMethod:
		return "Method"
	case KindConstructor:
		return "Constructor"
	case KindDestructor:
		return "Destructor"
	case KindVariable:
		return "Variable"
	case KindField:
		return "Field"
	case KindClass:
		return "Class"
	case KindStruct:
		return "Struct"
	case KindInterface:
		return "Interface"
	case KindEnum:
		return "Enum"
	case KindEnumMember:
		return "EnumMember"
	case KindNamespace:
		return "Namespace"
	case KindTypeAlias:
		return "TypeAlias"
	case KindMacro:
		return "Macro"
	default:
		return "Unknown"
	}
}

// IsFunctionLike reports whether callers/virtuals queries should consider
// this kind.
func (k SymbolKind) IsFunctionLike() bool {
	switch k {
	case KindFunction, KindMethod, KindConstructor, KindDestructor:
		return true
	default:
		return false
	}
}

// SymbolFlags is a bitset of boolean symbol attributes.
type SymbolFlags uint32

const (
	FlagNone SymbolFlags = 0
	// FlagDefinition marks the location as the symbol's definition rather
	// than a declaration or reference.
	FlagDefinition SymbolFlags = 1 << iota
	FlagVirtual
	FlagPureVirtual
	FlagStatic
	FlagReference
)

func (f SymbolFlags) Has(bit SymbolFlags) bool { return f&bit != 0 }

// Symbol is a record keyed by Location with the data needed to resolve
// targets, references and class hierarchies.
type Symbol struct {
	Location   Location
	Kind       SymbolKind
	USR        string
	Name       string
	Flags      SymbolFlags
	Length     int // number of columns the symbol's name spans at Location
	Targets    []Location
	References []Location
	Parents    []Location // base-class / overridden-method locations
}

// IsDefinition reports whether this occurrence is a definition.
func (s Symbol) IsDefinition() bool { return s.Flags.Has(FlagDefinition) }

// IsVirtual reports whether the symbol is a virtual method.
func (s Symbol) IsVirtual() bool { return s.Flags.Has(FlagVirtual) }

// IsReference reports whether this occurrence is a use rather than a
// declaration/definition.
func (s Symbol) IsReference() bool { return s.Flags.Has(FlagReference) }

// IsValid reports whether the symbol has a resolvable location.
func (s Symbol) IsValid() bool { return s.Location.IsValid() }

// Covers reports whether loc falls within this symbol's occurrence range:
// same file and line, column within [Location.Column, Location.Column+Length).
func (s Symbol) Covers(loc Location) bool {
	if s.Location.FileID != loc.FileID || s.Location.Line != loc.Line {
		return false
	}
	length := s.Length
	if length <= 0 {
		length = 1
	}
	return loc.Column >= s.Location.Column && loc.Column < s.Location.Column+length
}

// Source is one compilable translation unit.
type Source struct {
	Path     string
	Args     []string
	Compiler string
	Key      uint64 // stable hash of (Path, Args, Compiler)
}

// NewSource builds a Source and computes its stable key, the same way
// across repeated calls for identical (path, args, compiler).
func NewSource(path string, args []string, compiler string) Source {
	s := Source{Path: path, Args: append([]string(nil), args...), Compiler: compiler}
	s.Key = s.computeKey()
	return s
}

func (s Source) computeKey() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(s.Path)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(s.Compiler)
	_, _ = h.WriteString("\x00")
	for _, a := range s.Args {
		_, _ = h.WriteString(a)
		_, _ = h.WriteString("\x1f")
	}
	return h.Sum64()
}

// Sources maps a FileID to every Source compiled from it (a file may be
// compiled under several distinct argument sets).
type Sources map[FileID][]Source

// Add inserts or replaces the Source with a matching Key under fileID.
func (s Sources) Add(fileID FileID, src Source) {
	list := s[fileID]
	for i, existing := range list {
		if existing.Key == src.Key {
			list[i] = src
			return
		}
	}
	s[fileID] = append(list, src)
}

// Remove deletes fileID's entry entirely.
func (s Sources) Remove(fileID FileID) {
	delete(s, fileID)
}

// ByKey returns the Source with the given key, if any.
func (s Sources) ByKey(key uint64) (FileID, Source, bool) {
	for fileID, list := range s {
		for _, src := range list {
			if src.Key == key {
				return fileID, src, true
			}
		}
	}
	return InvalidFileID, Source{}, false
}

// FixIt is a single suggested textual replacement.
type FixIt struct {
	Line        int
	Column      int
	Length      int
	Replacement string
}

// DiagnosticLevel classifies a Diagnostic's severity.
type DiagnosticLevel int

const (
	DiagNote DiagnosticLevel = iota
	DiagWarning
	DiagError
	DiagFixit
)

// Diagnostic is a single compiler-emitted note attached to a Location.
type Diagnostic struct {
	Level    DiagnosticLevel
	Location Location
	Message  string
}

// WatchMode is a bitset of reasons a directory is being watched.
type WatchMode uint8

const (
	WatchFileManager         WatchMode = 1 << 0
	WatchSourceFile          WatchMode = 1 << 1
	WatchDependency          WatchMode = 1 << 2
	WatchCompilationDatabase WatchMode = 1 << 3
)

func (m WatchMode) Has(bit WatchMode) bool { return m&bit != 0 }

// IndexResult is what an IndexerBackend reports back to the job registry
// once a translation unit (and everything it transitively includes) has
// been processed. Symbol/target/usr/symbol-name data is written directly
// to file maps on disk by the backend; only bookkeeping crosses this
// boundary.
type IndexResult struct {
	SourceKey    uint64
	Visited      map[FileID]bool
	Dependencies map[FileID][]FileID // includer -> its direct includes
	FixIts       map[FileID][]FixIt
	Diagnostics  map[FileID][]Diagnostic
	Err          error
}

// NewIndexResult returns an IndexResult with initialized maps.
func NewIndexResult(sourceKey uint64) IndexResult {
	return IndexResult{
		SourceKey:    sourceKey,
		Visited:      make(map[FileID]bool),
		Dependencies: make(map[FileID][]FileID),
		FixIts:       make(map[FileID][]FixIt),
		Diagnostics:  make(map[FileID][]Diagnostic),
	}
}
