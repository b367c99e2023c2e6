package callgraphutil

import (
	"bytes"

	"github.com/picatz/taintflow/callgraph"
)

// Path is a sequence of callgraph.Edges, where each edge
// represents a call from a caller to a callee, making up
// a "chain" of calls, e.g.: main → handler → dao → executeQuery.
type Path []*callgraph.Edge

// Empty returns true if the path is empty, false otherwise.
func (p Path) Empty() bool {
	return len(p) == 0
}

// First returns the first edge in the path, or nil if the path is empty.
func (p Path) First() *callgraph.Edge {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Last returns the last edge in the path, or nil if the path is empty.
func (p Path) Last() *callgraph.Edge {
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1]
}

// Signatures returns the method signatures visited by the path, starting
// with the first caller.
func (p Path) Signatures() []string {
	if len(p) == 0 {
		return nil
	}
	out := make([]string, 0, len(p)+1)
	out = append(out, p[0].Caller.Sig)
	for _, e := range p {
		out = append(out, e.Callee.Sig)
	}
	return out
}

// String returns a string representation of the path which
// is a sequence of edges separated by " → ".
//
// Intended to be used while debugging.
func (p Path) String() string {
	var buf bytes.Buffer
	for i, e := range p {
		if i == 0 {
			buf.WriteString(e.Caller.String())
		}

		buf.WriteString(" → ")

		buf.WriteString(e.Callee.String())
	}
	return buf.String()
}

// Paths is a collection of paths, which may be logically grouped
// together, e.g.: all paths from the root to a given sink.
type Paths []Path

// Shortest returns the shortest path in the collection of paths.
//
// If there are no paths, this returns nil. If there are multiple
// paths of the same length, this returns the first path found.
func (p Paths) Shortest() Path {
	if len(p) == 0 {
		return nil
	}

	shortest := p[0]
	for _, path := range p {
		if len(path) < len(shortest) {
			shortest = path
		}
	}

	return shortest
}

// Longest returns the longest path in the collection of paths.
//
// If there are no paths, this returns nil. If there are multiple
// paths of the same length, the first path found is returned.
func (p Paths) Longest() Path {
	if len(p) == 0 {
		return nil
	}

	longest := p[0]
	for _, path := range p {
		if len(path) > len(longest) {
			longest = path
		}
	}

	return longest
}

// PathSearch returns the first path found from the start node
// to a node that matches the isMatch function. This is a depth
// first search, so it will return the first path found, which
// may not be the shortest path.
//
// To find all paths, use PathsSearch, which returns a collection
// of paths.
func PathSearch(start *callgraph.Node, isMatch func(*callgraph.Node) bool) Path {
	var (
		stack = make(Path, 0, 32)
		seen  = make(map[*callgraph.Node]bool)

		search func(n *callgraph.Node) Path
	)

	search = func(n *callgraph.Node) Path {
		if !seen[n] {
			seen[n] = true
			if isMatch(n) {
				return stack
			}
			for _, e := range n.Out {
				stack = append(stack, e) // push
				if found := search(e.Callee); found != nil {
					return found
				}
				stack = stack[:len(stack)-1] // pop
			}
		}
		return nil
	}
	return search(start)
}

// PathsSearch returns one path per distinct matching node reachable from
// the start node. Each path is the first one the depth first search finds
// to that node; the search does not descend past a match.
//
// To find the first path (which may not be the shortest), use PathSearch.
func PathsSearch(start *callgraph.Node, isMatch func(*callgraph.Node) bool) Paths {
	var (
		paths = Paths{}

		stack = make(Path, 0, 32)
		seen  = make(map[*callgraph.Node]bool)

		search func(n *callgraph.Node)
	)

	search = func(n *callgraph.Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		if isMatch(n) {
			paths = append(paths, append(Path(nil), stack...))
			return
		}
		for _, e := range n.Out {
			stack = append(stack, e) // push
			search(e.Callee)
			stack = stack[:len(stack)-1] // pop
		}
	}
	search(start)

	return paths
}

// PathSearchCallTo returns the first path found from the start node
// to the method with the given full signature.
func PathSearchCallTo(start *callgraph.Node, sig string) Path {
	return PathSearch(start, func(n *callgraph.Node) bool {
		return n.Sig == sig
	})
}

// PathsSearchCallTo returns the paths that call the method with the
// given full signature, e.g.:
// "<java.sql.Statement: java.sql.ResultSet executeQuery(java.lang.String)>".
func PathsSearchCallTo(start *callgraph.Node, sig string) Paths {
	return PathsSearch(start, func(n *callgraph.Node) bool {
		return n != nil && n.Sig == sig
	})
}
