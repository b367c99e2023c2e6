package callgraphutil

import (
	"bufio"
	"fmt"
	"io"

	"github.com/picatz/taintflow/callgraph"
)

// WriteDOT writes the given callgraph.Graph to the given io.Writer in the
// DOT format, which can be used to generate a visual representation of the
// call graph using Graphviz.
//
// Nodes in highlight (which may be nil) are filled, which is useful to mark
// sinks or the methods a finding passes through.
func WriteDOT(w io.Writer, g *callgraph.Graph, highlight *NodeSet) error {
	b := bufio.NewWriter(w)

	b.WriteString("digraph callgraph {\n")
	b.WriteString("\tgraph [fontname=\"Helvetica\"];\n")
	b.WriteString("\tnode [fontname=\"Helvetica\"];\n")
	b.WriteString("\tedge [fontname=\"Helvetica\"];\n")

	edges := []*callgraph.Edge{}

	// Write nodes.
	for _, n := range g.Nodes {
		attrs := ""
		switch {
		case highlight != nil && highlight.Contains(n):
			attrs = ", style=filled, fillcolor=\"#ffb3c9\""
		case n.Library():
			attrs = ", shape=box, color=gray"
		}
		fmt.Fprintf(b, "\t%q [label=%q%s];\n", fmt.Sprintf("%d", n.ID), n.Sig, attrs)

		// Add edges
		edges = append(edges, n.Out...)
	}

	// Write edges.
	for _, e := range edges {
		fmt.Fprintf(b, "\t%q -> %q [label=%q];\n", fmt.Sprintf("%d", e.Caller.ID), fmt.Sprintf("%d", e.Callee.ID), e.Description())
	}

	b.WriteString("}\n")

	return b.Flush()
}
