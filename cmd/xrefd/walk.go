package main

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// sourceExtensions lists the file extensions walkSourceFiles treats as
// translation units, matching the breadth note in SPEC_FULL.md §4.9
// (the heuristic backend scans both C/C++ includes and Go imports).
var sourceExtensions = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".h": true, ".hh": true, ".hpp": true,
	".go": true,
}

var skipDirs = map[string]bool{".git": true, ".xref": true, "node_modules": true, "vendor": true}

// walkSourceFiles is a simplified stand-in for the teacher's FileManager
// directory-scan (internal/indexing/pipeline_scanner.go): out of scope
// per spec.md §1, but xrefd needs something real to call index() with.
func walkSourceFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(path))] {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
