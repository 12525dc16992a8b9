package project

import "github.com/bmatcuk/doublestar/v4"

// doublestarMatch wraps doublestar.Match, the same glob engine the
// teacher uses throughout internal/indexing for path/pattern matching
// (watcher.go, pipeline_types.go) — reused here for reindex()/remove()
// path patterns and for findSymbols' wildcard name matching.
func doublestarMatch(pattern, s string) (bool, error) {
	return doublestar.Match(pattern, s)
}
