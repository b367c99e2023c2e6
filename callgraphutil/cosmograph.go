package callgraphutil

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/picatz/taintflow/callgraph"
)

// WriteCosmograph writes the given callgraph.Graph to the given io.Writers
// as an edge list and a node metadata table, which can be used to generate
// a visual representation of the call graph using Cosmograph.
//
// https://cosmograph.app/run/
func WriteCosmograph(graph, metadata io.Writer, g *callgraph.Graph) error {
	graphWriter := csv.NewWriter(graph)
	graphWriter.Comma = ','

	metadataWriter := csv.NewWriter(metadata)
	metadataWriter.Comma = ','

	// Write header.
	if err := graphWriter.Write([]string{"source", "target", "site"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write metadata header.
	if err := metadataWriter.Write([]string{"id", "class", "method", "origin"}); err != nil {
		return fmt.Errorf("failed to write metadata header: %w", err)
	}

	for _, n := range g.Nodes {
		class, method, origin := nodeCSVInfo(n)

		// Write metadata.
		if err := metadataWriter.Write([]string{nodeID(n), class, method, origin}); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}

		for _, e := range n.Out {
			// Write edge.
			if err := graphWriter.Write([]string{nodeID(n), nodeID(e.Callee), e.Description()}); err != nil {
				return fmt.Errorf("failed to write edge: %w", err)
			}
		}
	}

	graphWriter.Flush()
	metadataWriter.Flush()
	if err := graphWriter.Error(); err != nil {
		return err
	}
	return metadataWriter.Error()
}
