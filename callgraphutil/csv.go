package callgraphutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/picatz/taintflow/callgraph"
	"github.com/picatz/taintflow/ir"
)

// WriteCSV writes the given callgraph.Graph to the given io.Writer in CSV
// format, one row per edge. This format can be used to generate a visual
// representation of the call graph using many different tools.
func WriteCSV(w io.Writer, g *callgraph.Graph) error {
	cw := csv.NewWriter(w)
	cw.Comma = ','

	// Write header.
	if err := cw.Write([]string{
		"source_class",
		"source_method",
		"source_origin",
		"source_signature",
		"target_class",
		"target_method",
		"target_origin",
		"target_signature",
		"kind",
	}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write edges.
	for _, n := range g.Nodes {
		sourceClass, sourceMethod, sourceOrigin := nodeCSVInfo(n)

		for _, e := range n.Out {
			targetClass, targetMethod, targetOrigin := nodeCSVInfo(e.Callee)

			kind := "synthetic"
			if e.Site != nil {
				if inv := e.Site.Invocation(); inv != nil {
					kind = inv.Kind.String()
				}
			}

			// Write edge.
			if err := cw.Write([]string{
				sourceClass,
				sourceMethod,
				sourceOrigin,
				n.Sig,
				targetClass,
				targetMethod,
				targetOrigin,
				e.Callee.Sig,
				kind,
			}); err != nil {
				return fmt.Errorf("failed to write edge: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func nodeCSVInfo(n *callgraph.Node) (class, method, origin string) {
	class, method, origin = "unknown", "unknown", "application"

	if n.Method != nil {
		class, method = n.Method.Class, n.Method.Name
	} else if sig, err := ir.ParseSignature(n.Sig); err == nil {
		class, method = sig.Class, sig.Name
	}

	switch {
	case n.Method == nil:
		origin = "phantom"
	case n.Library():
		origin = "library"
	}

	return
}

// nodeID formats a node ID for CSV and DOT output.
func nodeID(n *callgraph.Node) string { return strconv.Itoa(n.ID) }
