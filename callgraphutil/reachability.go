package callgraphutil

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/picatz/taintflow/callgraph"
)

// NodeSet is a set of call graph node IDs backed by a Roaring bitmap.
type NodeSet struct {
	bitmap *roaring.Bitmap
}

// NewNodeSet returns an empty set.
func NewNodeSet() *NodeSet {
	return &NodeSet{bitmap: roaring.New()}
}

// Add marks n as a member.
func (s *NodeSet) Add(n *callgraph.Node) {
	s.bitmap.Add(uint32(n.ID))
}

// Contains reports whether n is a member. A nil set contains every node.
func (s *NodeSet) Contains(n *callgraph.Node) bool {
	if s == nil {
		return true
	}
	return n != nil && s.bitmap.Contains(uint32(n.ID))
}

// Len returns the number of members.
func (s *NodeSet) Len() int {
	if s == nil {
		return 0
	}
	return int(s.bitmap.GetCardinality())
}

// IDs returns the member IDs in ascending order.
func (s *NodeSet) IDs() []int {
	if s == nil {
		return nil
	}
	out := make([]int, 0, s.Len())
	it := s.bitmap.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// BackwardReachable returns every node with a path of any length to one of
// the given sinks, the sinks included. It walks incoming edges
// breadth-first.
func BackwardReachable(g *callgraph.Graph, sinks []*callgraph.Node) *NodeSet {
	set := NewNodeSet()
	queue := make([]*callgraph.Node, 0, len(sinks))
	for _, n := range sinks {
		if n == nil || set.Contains(n) {
			continue
		}
		set.Add(n)
		queue = append(queue, n)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range n.In {
			if !set.Contains(e.Caller) {
				set.Add(e.Caller)
				queue = append(queue, e.Caller)
			}
		}
	}
	return set
}
