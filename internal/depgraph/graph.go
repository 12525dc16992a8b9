// Package depgraph implements the bidirectional include/dependent graph
// over translation units and their transitively included files (C1).
//
// The graph owns every node by FileID in a single table; nodes refer to
// their peers by id, not by pointer, so the structure stays acyclic in
// Go's memory-management sense even though the include relation itself
// can legitimately contain cycles (two headers including each other).
// This is the shape the spec calls out explicitly: an owning-pointer
// version of this graph would create reference cycles and leak.
package depgraph

import "github.com/standardbeagle/xref/internal/types"

// DependencyMode selects which direction a transitive walk follows.
type DependencyMode int

const (
	// DependsOnArg walks dependents: files that transitively include f.
	DependsOnArg DependencyMode = iota
	// ArgDependsOn walks includes: files f transitively includes.
	ArgDependsOn
)

// Node is one file's position in the include graph.
type Node struct {
	FileID     types.FileID
	Includes   map[types.FileID]bool
	Dependents map[types.FileID]bool
}

func newNode(f types.FileID) *Node {
	return &Node{
		FileID:     f,
		Includes:   make(map[types.FileID]bool),
		Dependents: make(map[types.FileID]bool),
	}
}

// Graph is the main-loop-exclusive table of all DependencyNodes. Per the
// concurrency model (spec §5/§9), Graph carries no internal lock: only
// the main loop mutates or traverses it, so promoting a mutex here would
// just invite deadlock with callers that already serialize on a wider
// scope.
type Graph struct {
	nodes map[types.FileID]*Node
}

// New returns an empty dependency graph.
func New() *Graph {
	return &Graph{nodes: make(map[types.FileID]*Node)}
}

// InsertOrGet returns f's node, creating it if this is the first time f
// has been seen.
func (g *Graph) InsertOrGet(f types.FileID) *Node {
	n, ok := g.nodes[f]
	if !ok {
		n = newNode(f)
		g.nodes[f] = n
	}
	return n
}

// Node returns f's node without creating one.
func (g *Graph) Node(f types.FileID) (*Node, bool) {
	n, ok := g.nodes[f]
	return n, ok
}

// Link establishes that includer includes includee, in both directions.
// Idempotent: linking an already-linked pair is a no-op.
func (g *Graph) Link(includer, includee types.FileID) {
	a := g.InsertOrGet(includer)
	b := g.InsertOrGet(includee)
	a.Includes[includee] = true
	b.Dependents[includer] = true
}

// Unlink removes the includer->includee edge, if present, without
// deleting either node.
func (g *Graph) Unlink(includer, includee types.FileID) {
	if a, ok := g.nodes[includer]; ok {
		delete(a.Includes, includee)
	}
	if b, ok := g.nodes[includee]; ok {
		delete(b.Dependents, includer)
	}
}

// SetIncludes replaces f's entire Includes set with exactly includes,
// updating reverse links on every peer that gained or lost an edge. This
// is how a fresh IndexResult's reported dependency list gets merged in:
// the backend reports f's includes exhaustively, not incrementally.
func (g *Graph) SetIncludes(f types.FileID, includes []types.FileID) {
	n := g.InsertOrGet(f)

	wanted := make(map[types.FileID]bool, len(includes))
	for _, inc := range includes {
		wanted[inc] = true
	}

	for old := range n.Includes {
		if !wanted[old] {
			g.Unlink(f, old)
		}
	}
	for inc := range wanted {
		g.Link(f, inc)
	}
}

// Remove deletes f's node and unlinks it from every peer's Includes and
// Dependents sets. O(deg(f)).
func (g *Graph) Remove(f types.FileID) {
	n, ok := g.nodes[f]
	if !ok {
		return
	}
	for included := range n.Includes {
		if peer, ok := g.nodes[included]; ok {
			delete(peer.Dependents, f)
		}
	}
	for dependent := range n.Dependents {
		if peer, ok := g.nodes[dependent]; ok {
			delete(peer.Includes, f)
		}
	}
	delete(g.nodes, f)
}

// Dependencies returns the transitive closure of f in the requested
// direction. f itself is excluded from the result unless it is reachable
// again via a cycle, in which case it appears exactly once (the BFS
// visited-set makes this automatic). Unknown file ids yield an empty set.
func (g *Graph) Dependencies(f types.FileID, mode DependencyMode) map[types.FileID]bool {
	result := make(map[types.FileID]bool)
	start, ok := g.nodes[f]
	if !ok {
		return result
	}

	visited := map[types.FileID]bool{}
	queue := []types.FileID{}
	next := func(n *Node) map[types.FileID]bool {
		if mode == DependsOnArg {
			return n.Dependents
		}
		return n.Includes
	}

	for peer := range next(start) {
		if !visited[peer] {
			visited[peer] = true
			queue = append(queue, peer)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		result[cur] = true

		node, ok := g.nodes[cur]
		if !ok {
			continue
		}
		for peer := range next(node) {
			if !visited[peer] {
				visited[peer] = true
				queue = append(queue, peer)
			}
		}
	}

	return result
}

// DependsOn reports whether hdr is in dependencies(src, ArgDependsOn).
func (g *Graph) DependsOn(src, hdr types.FileID) bool {
	return g.Dependencies(src, ArgDependsOn)[hdr]
}

// Edges returns every (fileID, includes) pair in the graph, suitable for
// persistence; reverse links are recomputed by SetIncludes on load.
func (g *Graph) Edges() map[types.FileID][]types.FileID {
	out := make(map[types.FileID][]types.FileID, len(g.nodes))
	for id, n := range g.nodes {
		includes := make([]types.FileID, 0, len(n.Includes))
		for inc := range n.Includes {
			includes = append(includes, inc)
		}
		out[id] = includes
	}
	return out
}

// LoadEdges rebuilds the graph from a persisted (fileID -> includes)
// mapping, recomputing all reverse links.
func LoadEdges(edges map[types.FileID][]types.FileID) *Graph {
	g := New()
	for id := range edges {
		g.InsertOrGet(id)
	}
	for id, includes := range edges {
		g.SetIncludes(id, includes)
	}
	return g
}

// Len returns the number of nodes currently in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Has reports whether f has a node in the graph.
func (g *Graph) Has(f types.FileID) bool {
	_, ok := g.nodes[f]
	return ok
}
