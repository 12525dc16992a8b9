package project

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/standardbeagle/xref/internal/persist"
	"github.com/standardbeagle/xref/internal/types"
)

// compileCommand is one entry of the standard compile_commands.json
// format: {directory, file, arguments|command}.
type compileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
}

func (c compileCommand) args() []string {
	if len(c.Arguments) > 0 {
		return c.Arguments
	}
	if c.Command != "" {
		return strings.Fields(c.Command)
	}
	return nil
}

// ReloadCompilationDatabase re-parses the project's compile_commands.json
// and diffs it against the currently known sources: removed entries are
// dropped via removeSource, added/changed entries are (re-)indexed.
// Per spec.md §9's design note, this never blindly re-indexes
// everything — only what the diff says changed.
func (p *Project) ReloadCompilationDatabase() error {
	if p.opts.CompilationDB == "" {
		return nil
	}
	data, err := os.ReadFile(p.opts.CompilationDB)
	if err != nil {
		return fmt.Errorf("project: read compilation database: %w", err)
	}
	var entries []compileCommand
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("project: parse compilation database: %w", err)
	}

	fresh := make(map[string]types.Source, len(entries))
	for _, e := range entries {
		src := types.NewSource(e.File, e.args(), "")
		fresh[e.File] = src
	}

	p.mu.Lock()
	current := make(map[string]types.Source)
	for _, srcs := range p.sources {
		for _, s := range srcs {
			current[s.Path] = s
		}
	}
	stat, _ := os.Stat(p.opts.CompilationDB)
	var lastMod int64
	if stat != nil {
		lastMod = stat.ModTime().Unix()
	}
	p.compileInfo = persist.CompilationDatabaseInfo{
		Dir:          dirOf(entries),
		LastModified: lastMod,
	}
	p.mu.Unlock()

	for path, oldSrc := range current {
		if _, stillThere := fresh[path]; !stillThere {
			if fileID, ok := p.locations.Lookup(path); ok {
				p.removeSource(fileID)
			}
			_ = oldSrc
		}
	}
	for path, newSrc := range fresh {
		if oldSrc, existed := current[path]; existed && oldSrc.Key == newSrc.Key {
			continue // unchanged
		}
		p.Index(newSrc)
	}
	return nil
}

func dirOf(entries []compileCommand) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Directory
}

// compileDBRecord is the emitted JSON shape of ToCompilationDatabase.
type compileDBRecord struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
}

// ToCompilationDatabase emits mSources as a JSON array of
// {directory, file, arguments} records, the administrative operation of
// spec.md §6.
func (p *Project) ToCompilationDatabase() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	records := make([]compileDBRecord, 0, len(p.sources))
	for fileID, srcs := range p.sources {
		for _, src := range srcs {
			_ = fileID
			records = append(records, compileDBRecord{
				Directory: dirname(src.Path),
				File:      src.Path,
				Arguments: src.Args,
			})
		}
	}
	return json.MarshalIndent(records, "", "  ")
}

func dirname(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}
