// Package callgraph builds a class hierarchy analysis call graph over an
// ir.Program, starting from a single (usually synthetic) root method.
package callgraph

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/picatz/taintflow/ir"
)

// A Graph represents a call graph.
//
// Only methods reachable from the root are present. A graph is immutable
// once Build returns and may be shared between goroutines.
type Graph struct {
	Root  *Node   // the distinguished root node
	Nodes []*Node // all nodes, indexed by ID

	bySig  map[string]*Node
	byStmt map[*ir.Stmt][]*Edge
	edges  map[edgeKey]*Edge
}

type edgeKey struct {
	caller, callee int
	site           *ir.Stmt
}

// A Node represents a node in a call graph.
type Node struct {
	ID     int        // 0-based sequence number
	Method *ir.Method // nil for methods the program does not contain
	Sig    string     // full signature
	In     []*Edge    // incoming call edges (n.In[*].Callee == n)
	Out    []*Edge    // outgoing call edges (n.Out[*].Caller == n)

	library bool
}

// Library reports whether the node is outside the application: a method
// of a library class, or one the program does not contain at all.
func (n *Node) Library() bool { return n.library }

// HasBody reports whether the node's method body is resolvable.
func (n *Node) HasBody() bool { return n.Method.HasBody() }

func (n *Node) String() string {
	return fmt.Sprintf("n%d:%s", n.ID, n.Sig)
}

// A Edge represents an edge in the call graph.
//
// Site is nil only for edges created by callers of AddEdge without a call
// statement.
type Edge struct {
	Caller *Node
	Site   *ir.Stmt
	Callee *Node
}

func (e Edge) String() string {
	return fmt.Sprintf("%s --> %s", e.Caller, e.Callee)
}

// Description returns a short description of the call.
func (e Edge) Description() string {
	if e.Site == nil {
		return "synthetic call"
	}
	inv := e.Site.Invocation()
	if inv == nil {
		return "synthetic call"
	}
	return inv.Kind.String() + " " + inv.Callee
}

// Option configures Build.
type Option func(*options)

type options struct {
	workers int64
}

// WithWorkers bounds how many method bodies are resolved concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = int64(n)
		}
	}
}

// Build constructs the call graph of every method reachable from root.
//
// Methods are discovered level by level. The call sites of all methods in
// a level are resolved concurrently; nodes and edges are then added in a
// fixed order so node IDs are deterministic. Library methods are added as
// nodes but their bodies are not explored.
func Build(ctx context.Context, prog ir.Program, root *ir.Method, opts ...Option) (*Graph, error) {
	if root == nil {
		return nil, fmt.Errorf("nil root method")
	}

	o := &options{workers: 10}
	for _, opt := range opts {
		opt(o)
	}

	h := NewHierarchy(prog)
	g := &Graph{
		bySig:  make(map[string]*Node),
		byStmt: make(map[*ir.Stmt][]*Edge),
		edges:  make(map[edgeKey]*Edge),
	}
	g.Root, _ = g.createNode(prog, target{method: root})

	s := semaphore.NewWeighted(o.workers)

	frontier := []*Node{g.Root}
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resolved := make([][]site, len(frontier))

		eg, egCtx := errgroup.WithContext(ctx)
		for i, n := range frontier {
			if n.Library() || !n.HasBody() {
				continue
			}
			if err := s.Acquire(egCtx, 1); err != nil {
				_ = eg.Wait()
				return nil, fmt.Errorf("failed to acquire semaphore: %w", err)
			}
			eg.Go(func() error {
				defer s.Release(1)
				if err := egCtx.Err(); err != nil {
					return err
				}
				resolved[i] = h.resolveBody(n.Method)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, fmt.Errorf("error from errgroup: %w", err)
		}

		var next []*Node
		for i, caller := range frontier {
			for _, st := range resolved[i] {
				for _, t := range st.targets {
					callee, created := g.createNode(prog, t)
					g.AddEdge(caller, st.stmt, callee)
					if created {
						next = append(next, callee)
					}
				}
			}
		}
		frontier = next
	}

	return g, nil
}

// createNode returns the node for t, creating it if not present.
func (g *Graph) createNode(prog ir.Program, t target) (*Node, bool) {
	key := t.key()
	if n, ok := g.bySig[key]; ok {
		return n, false
	}
	n := &Node{ID: len(g.Nodes), Method: t.method, Sig: key}
	if t.method == nil {
		n.library = true
	} else if c := prog.Class(t.method.Class); c != nil && c.Library {
		n.library = true
	}
	g.Nodes = append(g.Nodes, n)
	g.bySig[key] = n
	return n, true
}

// AddEdge adds the edge (caller, site, callee) to the call graph, unless
// it is already present.
func (g *Graph) AddEdge(caller *Node, site *ir.Stmt, callee *Node) *Edge {
	k := edgeKey{caller: caller.ID, callee: callee.ID, site: site}
	if e, ok := g.edges[k]; ok {
		return e
	}
	e := &Edge{Caller: caller, Site: site, Callee: callee}
	g.edges[k] = e
	caller.Out = append(caller.Out, e)
	callee.In = append(callee.In, e)
	if site != nil {
		g.byStmt[site] = append(g.byStmt[site], e)
	}
	return e
}

// Node returns the node with the given full signature, or nil.
func (g *Graph) Node(sig string) *Node { return g.bySig[sig] }

// NodeOf returns the node of m, or nil if m is not reachable.
func (g *Graph) NodeOf(m *ir.Method) *Node {
	if m == nil {
		return nil
	}
	n := g.bySig[m.Signature()]
	if n == nil || n.Method != m {
		return nil
	}
	return n
}

// EdgesAt returns every edge created for the call statement site. A
// virtual call site owns one edge per possible target.
func (g *Graph) EdgesAt(site *ir.Stmt) []*Edge { return g.byStmt[site] }

// NumEdges returns the number of edges in the graph.
func (g *Graph) NumEdges() int { return len(g.edges) }

// IsLeaf reports whether n makes no calls into application code: every
// outgoing edge targets a library method or one without a body.
func (g *Graph) IsLeaf(n *Node) bool {
	for _, e := range n.Out {
		if !e.Callee.Library() && e.Callee.HasBody() {
			return false
		}
	}
	return true
}

// VisitEdges visits all the edges in graph g in depth-first order.
// The edge function is called for each edge in postorder. If it
// returns non-nil, visitation stops and VisitEdges returns that
// value.
func (g *Graph) VisitEdges(edge func(*Edge) error) error {
	seen := make(map[*Node]bool)
	var visit func(n *Node) error
	visit = func(n *Node) error {
		if !seen[n] {
			seen[n] = true
			for _, e := range n.Out {
				if err := visit(e.Callee); err != nil {
					return err
				}
				if err := edge(e); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, n := range g.Nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// CalleesOf returns the distinct callees of caller, ordered by node ID.
func CalleesOf(caller *Node) []*Node {
	seen := make(map[*Node]bool)
	var out []*Node
	for _, e := range caller.Out {
		if !seen[e.Callee] {
			seen[e.Callee] = true
			out = append(out, e.Callee)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CallersOf returns the distinct callers of callee, ordered by node ID.
func CallersOf(callee *Node) []*Node {
	seen := make(map[*Node]bool)
	var out []*Node
	for _, e := range callee.In {
		if !seen[e.Caller] {
			seen[e.Caller] = true
			out = append(out, e.Caller)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
