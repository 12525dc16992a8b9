// Package config carries the project's configuration: root/name,
// indexing debounce/worker-count/watch settings and the FileMap
// scope's LRU cache size. Trimmed from the teacher's much larger
// Config (which also covered full-text search ranking, semantic
// indexing and size-control knobs this core has no use for) down to
// what internal/project's Options actually need, per SPEC_FULL.md §9.
package config

// Config is the project's configuration, loadable from a .xref.kdl
// file via LoadKDL, or used directly with its zero-value-safe defaults
// via Default().
type Config struct {
	Version int
	Project Project
	Index   Index
}

// Project names the indexed root.
type Project struct {
	Root string
	Name string
}

// Index carries the knobs internal/project.Options is built from:
// debounce timing, worker pool size, watch enablement and the
// per-query FileMap scope's LRU budget.
type Index struct {
	WatchMode       bool // enable filesystem watching for automatic reindexing
	WatchDebounceMs int  // debounce time for file change events
	WorkerCount     int  // <= 0 = project default of 4 workers
	ScopeMax        int  // per-query FileMap LRU budget (spec.md §4.3 "max")
	CompilationDB   string
}

// Default returns a Config with the same baseline defaults the teacher
// ships (50ms debounce, small worker pool) scaled down to this core's
// narrower knob set.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Index: Index{
			WatchMode:       true,
			WatchDebounceMs: 50,
			WorkerCount:     4,
			ScopeMax:        64,
		},
	}
}
