package filemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/standardbeagle/xref/internal/types"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symbols")

	entries := []Entry[types.Location, types.Symbol]{
		{Key: types.Location{FileID: 1, Line: 3, Column: 1}, Value: types.Symbol{Name: "foo"}},
		{Key: types.Location{FileID: 1, Line: 1, Column: 1}, Value: types.Symbol{Name: "bar"}},
		{Key: types.Location{FileID: 1, Line: 2, Column: 1}, Value: types.Symbol{Name: "baz"}},
	}

	if err := Write(path, CompareLocation, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	m, err := Load[types.Location, types.Symbol](path, CompareLocation)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer m.Close()

	if m.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", m.Count())
	}

	got, ok := m.Lookup(types.Location{FileID: 1, Line: 2, Column: 1})
	if !ok || got.Name != "baz" {
		t.Fatalf("Lookup line 2 = (%v, %v), want baz", got, ok)
	}

	all := m.All()
	if all[0].Value.Name != "bar" || all[1].Value.Name != "baz" || all[2].Value.Name != "foo" {
		t.Fatalf("expected entries sorted by location, got %+v", all)
	}
}

func TestLookupMissingKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets")

	entries := []Entry[string, []types.Location]{
		{Key: "usr::a", Value: []types.Location{{FileID: 1, Line: 1, Column: 1}}},
	}
	if err := Write(path, CompareString, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	m, err := Load[string, []types.Location](path, CompareString)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := m.Lookup("usr::missing"); ok {
		t.Errorf("expected Lookup of missing key to fail")
	}
}

func TestFloorReturnsLargestKeyNotGreater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symbols")
	entries := []Entry[types.Location, types.Symbol]{
		{Key: types.Location{FileID: 1, Line: 10, Column: 1}, Value: types.Symbol{Name: "a"}},
		{Key: types.Location{FileID: 1, Line: 20, Column: 1}, Value: types.Symbol{Name: "b"}},
	}
	if err := Write(path, CompareLocation, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}
	m, err := Load[types.Location, types.Symbol](path, CompareLocation)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, ok := m.Floor(types.Location{FileID: 1, Line: 15, Column: 1})
	if !ok || got.Value.Name != "a" {
		t.Fatalf("Floor(line 15) = (%+v, %v), want a", got, ok)
	}

	_, ok = m.Floor(types.Location{FileID: 1, Line: 1, Column: 1})
	if ok {
		t.Fatalf("Floor of a key below everything should fail")
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symbols")
	entries := []Entry[types.Location, types.Symbol]{
		{Key: types.Location{FileID: 1, Line: 1, Column: 1}, Value: types.Symbol{Name: "a"}},
	}
	if err := Write(path, CompareLocation, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data[headerSize] ^= 0xff // flip a byte inside the payload
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load[types.Location, types.Symbol](path, CompareLocation); err == nil {
		t.Fatalf("expected checksum mismatch error for corrupted file")
	}
}

func TestStoreWriteOpenRemove(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, OptionNone)
	fileID := types.FileID(7)

	if err := store.WriteSymbols(fileID, []Entry[types.Location, types.Symbol]{
		{Key: types.Location{FileID: fileID, Line: 1, Column: 1}, Value: types.Symbol{Name: "f"}},
	}); err != nil {
		t.Fatalf("WriteSymbols: %v", err)
	}

	m, err := store.OpenSymbols(fileID)
	if err != nil {
		t.Fatalf("OpenSymbols: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", m.Count())
	}

	if err := store.Remove(fileID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.OpenSymbols(fileID); err == nil {
		t.Fatalf("expected OpenSymbols to fail after Remove")
	}
}
