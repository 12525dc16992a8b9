// Package filemap implements C2 (FileMapStore) and a concrete reference
// FileMap[K,V]: the on-disk sorted key/value table the spec treats as an
// external collaborator (spec.md §1, §6). A real deployment would swap
// this for a proper memory-mapped table; this implementation gives the
// rest of the engine something real to read and write against, in the
// shape of RTags' own FileMap<Key,Value> template
// (original_source/src/Project.h).
package filemap

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/xref/internal/types"
)

// Kind identifies one of the four per-file maps a project keeps.
type Kind int

const (
	KindSymbols Kind = iota
	KindSymbolNames
	KindTargets
	KindUsrs
)

// ShortName is the on-disk basename for a Kind, matching RTags'
// Project::fileMapName.
func (k Kind) ShortName() string {
	switch k {
	case KindSymbols:
		return "symbols"
	case KindSymbolNames:
		return "symnames"
	case KindTargets:
		return "targets"
	case KindUsrs:
		return "usrs"
	default:
		return "unknown"
	}
}

func (k Kind) String() string { return k.ShortName() }

// Kinds lists every map kind, in a stable order.
var Kinds = []Kind{KindSymbols, KindSymbolNames, KindTargets, KindUsrs}

// Options is a bitset of file-map open flags, passed straight through
// from the project's configuration (reserved for a real backend's
// compression/validation flags; the reference implementation ignores
// it beyond round-tripping it).
type Options uint32

const OptionNone Options = 0

const (
	magic      uint32 = 0x46584d31 // "FXM1"
	headerSize        = 4 + 2 + 4 // magic + version + count
	version    uint16 = 1
)

// Entry is one (key, value) pair of a FileMap.
type Entry[K any, V any] struct {
	Key   K
	Value V
}

// Comparator orders keys the way the map is sorted on disk.
type Comparator[K any] func(a, b K) int

// FileMap is a read-only, in-memory view of a loaded on-disk map: a
// slice of Entry sorted by Comparator, supporting exact lookup and
// ordered range scans, per spec.md §3 (FileMap<K,V>).
type FileMap[K any, V any] struct {
	entries []Entry[K, V]
	cmp     Comparator[K]
}

// Count returns the number of entries.
func (m *FileMap[K, V]) Count() int { return len(m.entries) }

// Close releases the map. The reference implementation holds no
// OS resources, but every caller should still call Close so that a real
// mmap-backed implementation can be swapped in without touching call
// sites (spec.md §5, "file maps are reference-counted").
func (m *FileMap[K, V]) Close() error { return nil }

func (m *FileMap[K, V]) search(k K) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return m.cmp(m.entries[i].Key, k) >= 0
	})
}

// Lookup performs an exact lookup.
func (m *FileMap[K, V]) Lookup(k K) (V, bool) {
	i := m.search(k)
	if i < len(m.entries) && m.cmp(m.entries[i].Key, k) == 0 {
		return m.entries[i].Value, true
	}
	var zero V
	return zero, false
}

// Floor returns the entry with the largest key <= k, if any.
func (m *FileMap[K, V]) Floor(k K) (Entry[K, V], bool) {
	i := m.search(k)
	if i < len(m.entries) && m.cmp(m.entries[i].Key, k) == 0 {
		return m.entries[i], true
	}
	if i == 0 {
		return Entry[K, V]{}, false
	}
	return m.entries[i-1], true
}

// Range returns every entry with key in [from, to).
func (m *FileMap[K, V]) Range(from, to K) []Entry[K, V] {
	start := m.search(from)
	end := sort.Search(len(m.entries), func(i int) bool {
		return m.cmp(m.entries[i].Key, to) >= 0
	})
	if end < start {
		end = start
	}
	out := make([]Entry[K, V], end-start)
	copy(out, m.entries[start:end])
	return out
}

// All returns every entry, in key order.
func (m *FileMap[K, V]) All() []Entry[K, V] {
	out := make([]Entry[K, V], len(m.entries))
	copy(out, m.entries)
	return out
}

// Write sorts entries by cmp and writes them to path atomically
// (write-to-temp, then os.Rename), exactly the idiom the teacher uses
// for its own persisted artifacts (context manifest save).
func Write[K any, V any](path string, cmp Comparator[K], entries []Entry[K, V]) error {
	sorted := make([]Entry[K, V], len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return cmp(sorted[i].Key, sorted[j].Key) < 0 })

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(sorted); err != nil {
		return fmt.Errorf("filemap: encode %s: %w", path, err)
	}

	var buf bytes.Buffer
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[0:4], magic)
	binary.BigEndian.PutUint16(header[4:6], version)
	binary.BigEndian.PutUint32(header[6:10], uint32(len(sorted)))
	buf.Write(header)
	buf.Write(payload.Bytes())

	checksum := xxhash.Sum64(buf.Bytes())
	var trailer [8]byte
	binary.BigEndian.PutUint64(trailer[:], checksum)
	buf.Write(trailer[:])

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filemap: mkdir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("filemap: write temp for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("filemap: rename into place for %s: %w", path, err)
	}
	return nil
}

// Load opens path and verifies its checksum, returning a failure
// description on any corruption — the caller (QueryScope, via
// FileMapStore) is responsible for treating that as a LoadFailure
// (spec.md §7) and marking the file dirty.
func Load[K any, V any](path string, cmp Comparator[K]) (*FileMap[K, V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filemap: open %s: %w", path, err)
	}
	if len(data) < headerSize+8 {
		return nil, fmt.Errorf("filemap: %s: truncated (%d bytes)", path, len(data))
	}

	body := data[:len(data)-8]
	wantChecksum := binary.BigEndian.Uint64(data[len(data)-8:])
	if gotChecksum := xxhash.Sum64(body); gotChecksum != wantChecksum {
		return nil, fmt.Errorf("filemap: %s: checksum mismatch (corrupt)", path)
	}

	gotMagic := binary.BigEndian.Uint32(body[0:4])
	if gotMagic != magic {
		return nil, fmt.Errorf("filemap: %s: bad magic %x", path, gotMagic)
	}
	gotVersion := binary.BigEndian.Uint16(body[4:6])
	if gotVersion != version {
		return nil, fmt.Errorf("filemap: %s: unsupported version %d", path, gotVersion)
	}

	var entries []Entry[K, V]
	if err := gob.NewDecoder(bytes.NewReader(body[headerSize:])).Decode(&entries); err != nil {
		return nil, fmt.Errorf("filemap: %s: decode: %w", path, err)
	}

	return &FileMap[K, V]{entries: entries, cmp: cmp}, nil
}

// CompareLocation orders Locations lexicographically, matching
// types.Location.Less.
func CompareLocation(a, b types.Location) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// CompareString is the natural ordering used for the SymbolNames,
// Targets and Usrs maps, which are all keyed by string (symbol name or
// USR).
func CompareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Store resolves (FileID, Kind) pairs to on-disk paths and opens/writes
// the four map kinds a project keeps, per spec.md §4.2.
type Store struct {
	BasePath string
	Options  Options
}

// NewStore creates a Store rooted at base.
func NewStore(base string, opts Options) *Store {
	return &Store{BasePath: base, Options: opts}
}

// Path returns "<base>/<fileId>/<kind-short-name>".
func (s *Store) Path(f types.FileID, kind Kind) string {
	return filepath.Join(s.BasePath, strconv.FormatUint(uint64(f), 10), kind.ShortName())
}

// OpenSymbols opens f's Location->Symbol map.
func (s *Store) OpenSymbols(f types.FileID) (*FileMap[types.Location, types.Symbol], error) {
	return Load[types.Location, types.Symbol](s.Path(f, KindSymbols), CompareLocation)
}

// OpenSymbolNames opens f's name->locations map.
func (s *Store) OpenSymbolNames(f types.FileID) (*FileMap[string, []types.Location], error) {
	return Load[string, []types.Location](s.Path(f, KindSymbolNames), CompareString)
}

// OpenTargets opens f's USR->locations map.
func (s *Store) OpenTargets(f types.FileID) (*FileMap[string, []types.Location], error) {
	return Load[string, []types.Location](s.Path(f, KindTargets), CompareString)
}

// OpenUsrs opens f's USR->locations map (class-hierarchy edges).
func (s *Store) OpenUsrs(f types.FileID) (*FileMap[string, []types.Location], error) {
	return Load[string, []types.Location](s.Path(f, KindUsrs), CompareString)
}

// WriteSymbols persists f's Symbols map. Called by an IndexerBackend
// once it has finished parsing f.
func (s *Store) WriteSymbols(f types.FileID, entries []Entry[types.Location, types.Symbol]) error {
	return Write(s.Path(f, KindSymbols), CompareLocation, entries)
}

// WriteSymbolNames persists f's SymbolNames map.
func (s *Store) WriteSymbolNames(f types.FileID, entries []Entry[string, []types.Location]) error {
	return Write(s.Path(f, KindSymbolNames), CompareString, entries)
}

// WriteTargets persists f's Targets map.
func (s *Store) WriteTargets(f types.FileID, entries []Entry[string, []types.Location]) error {
	return Write(s.Path(f, KindTargets), CompareString, entries)
}

// WriteUsrs persists f's Usrs map.
func (s *Store) WriteUsrs(f types.FileID, entries []Entry[string, []types.Location]) error {
	return Write(s.Path(f, KindUsrs), CompareString, entries)
}

// Remove deletes every map file for f, satisfying the invariant that
// after a source is removed no symbol map files remain on disk for it
// (spec.md §8, invariant 7).
func (s *Store) Remove(f types.FileID) error {
	dir := filepath.Join(s.BasePath, strconv.FormatUint(uint64(f), 10))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("filemap: remove %s: %w", dir, err)
	}
	return nil
}
