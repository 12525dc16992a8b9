// Package pathutil converts between absolute and relative paths.
//
// xrefd keeps every path absolute internally (types.Locations is keyed
// that way) to avoid ambiguity across working directories; output at
// the CLI boundary converts back to root-relative for readability.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root
// directory. Falls back to the original path if conversion fails, the
// path is already relative, or the path lies outside rootDir.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}
	return relPath
}
