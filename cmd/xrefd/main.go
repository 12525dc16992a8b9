// Command xrefd is a thin CLI driving a *project.Project in-process —
// no socket/daemon protocol, per spec.md §1's explicit exclusion of the
// wire-protocol layer. Built on urfave/cli/v2, the teacher's own CLI
// library (cmd/lci/main.go), adapted from its many indexing-engine
// subcommands down to the handful this core exposes.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/xref/internal/config"
	"github.com/standardbeagle/xref/internal/debug"
	"github.com/standardbeagle/xref/internal/project"
	"github.com/standardbeagle/xref/internal/types"
	"github.com/standardbeagle/xref/pkg/pathutil"
)

func main() {
	debug.SetOutput(os.Stderr)

	app := &cli.App{
		Name:                   "xrefd",
		Usage:                  "cross-reference engine core: index, reindex and query a source tree",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "project root", Value: "."},
			&cli.StringFlag{Name: "state-dir", Usage: "where sources.rct/project.rct/file maps live", Value: ".xref"},
		},
		Commands: []*cli.Command{
			indexCommand(),
			reindexCommand(),
			findSymbolCommand(),
			findRefsCommand(),
			statusCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "xrefd:", err)
		os.Exit(1)
	}
}

func openProject(c *cli.Context) (*project.Project, *types.Locations, error) {
	root := c.String("root")
	stateDir := c.String("state-dir")

	cfg, err := config.LoadKDL(root)
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil {
		cfg = config.Default(root)
	}

	locs := types.NewLocations()
	p := project.New(project.Options{
		Root:            cfg.Project.Root,
		ProjectFilePath: stateDir,
		DebounceMs:      cfg.Index.WatchDebounceMs,
		ScopeMax:        cfg.Index.ScopeMax,
		WorkerLimit:     cfg.Index.WorkerCount,
		WatchEnabled:    cfg.Index.WatchMode,
		CompilationDB:   cfg.Index.CompilationDB,
	}, locs)

	if err := p.Init(); err != nil {
		return nil, nil, fmt.Errorf("init project: %w", err)
	}
	return p, locs, nil
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "index every *.go/*.c/*.cc/*.h file under root and (optionally) watch for changes",
		ArgsUsage: "[root]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "stay running and watch for further changes"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() > 0 {
				_ = c.Set("root", c.Args().First())
			}
			p, locs, err := openProject(c)
			if err != nil {
				return err
			}
			defer p.Close()

			files, err := walkSourceFiles(c.String("root"))
			if err != nil {
				return err
			}
			for _, path := range files {
				p.Index(types.NewSource(path, nil, ""))
			}
			_ = locs

			if c.Bool("watch") {
				fmt.Println("watching for changes, Ctrl-C to stop")
				select {}
			}

			// Give the worker pool a moment to finish before saving and
			// exiting in non-watch mode.
			for p.IsIndexing() {
				time.Sleep(20 * time.Millisecond)
			}
			return p.Save()
		},
	}
}

func reindexCommand() *cli.Command {
	return &cli.Command{
		Name:      "reindex",
		Usage:     "force re-index of sources matching a glob pattern",
		ArgsUsage: "<pattern>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("reindex requires a pattern argument")
			}
			p, _, err := openProject(c)
			if err != nil {
				return err
			}
			defer p.Close()

			n, err := p.Reindex(c.Args().First(), nil)
			if err != nil {
				return err
			}
			fmt.Printf("started %d job(s)\n", n)
			return nil
		},
	}
}

func findSymbolCommand() *cli.Command {
	return &cli.Command{
		Name:      "find-symbol",
		Usage:     "resolve a file:line:col location to the symbol there",
		ArgsUsage: "<file:line:col>",
		Action: func(c *cli.Context) error {
			p, locs, err := openProject(c)
			if err != nil {
				return err
			}
			defer p.Close()

			loc, err := parseLocation(c.Args().First(), locs)
			if err != nil {
				return err
			}
			sym, idx, ok, err := p.FindSymbol(loc)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no symbol at that location")
				return nil
			}
			return printJSON(map[string]interface{}{"symbol": symbolView(p, locs, c.String("root"), sym), "index": idx})
		},
	}
}

func findRefsCommand() *cli.Command {
	return &cli.Command{
		Name:      "find-refs",
		Usage:     "find every reference to the symbol at a file:line:col location",
		ArgsUsage: "<file:line:col>",
		Action: func(c *cli.Context) error {
			p, locs, err := openProject(c)
			if err != nil {
				return err
			}
			defer p.Close()

			loc, err := parseLocation(c.Args().First(), locs)
			if err != nil {
				return err
			}
			sym, _, ok, err := p.FindSymbol(loc)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no symbol at that location")
				return nil
			}
			refs := p.FindAllReferences(sym)
			views := make([]map[string]interface{}, len(refs))
			for i, ref := range refs {
				views[i] = symbolView(p, locs, c.String("root"), ref)
			}
			return printJSON(views)
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print indexing status and a rough memory estimate",
		Action: func(c *cli.Context) error {
			p, _, err := openProject(c)
			if err != nil {
				return err
			}
			defer p.Close()
			return printJSON(map[string]interface{}{
				"indexing": p.IsIndexing(),
				"memory":   p.EstimateMemory(),
				"watched":  p.WatchedPaths(),
			})
		},
	}
}

func parseLocation(spec string, locs *types.Locations) (types.Location, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return types.Location{}, fmt.Errorf("expected file:line:col, got %q", spec)
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil {
		return types.Location{}, fmt.Errorf("bad line %q: %w", parts[1], err)
	}
	col, err := strconv.Atoi(parts[2])
	if err != nil {
		return types.Location{}, fmt.Errorf("bad column %q: %w", parts[2], err)
	}
	fileID, ok := locs.Lookup(parts[0])
	if !ok {
		fileID = locs.InsertFile(parts[0])
	}
	return types.Location{FileID: fileID, Line: line, Column: col}, nil
}

// symbolView renders a Symbol with its file path converted back to
// root-relative for display, per pathutil's internal-absolute/external-
// relative boundary convention.
func symbolView(p *project.Project, locs *types.Locations, root string, sym types.Symbol) map[string]interface{} {
	path := locs.Path(sym.Location.FileID)
	return map[string]interface{}{
		"name":   sym.Name,
		"usr":    sym.USR,
		"kind":   sym.Kind,
		"path":   pathutil.ToRelative(path, root),
		"line":   sym.Location.Line,
		"column": sym.Location.Column,
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
