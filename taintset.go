package taintflow

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/picatz/taintflow/ir"
)

// TaintSet is the set of values that may hold attacker controlled data at
// a program point.
type TaintSet map[ir.Value]struct{}

// NewTaintSet returns a set holding vs.
func NewTaintSet(vs ...ir.Value) TaintSet {
	t := make(TaintSet, len(vs))
	for _, v := range vs {
		t[v] = struct{}{}
	}
	return t
}

// Has reports whether v is tainted.
func (t TaintSet) Has(v ir.Value) bool {
	if t == nil {
		return false
	}
	_, ok := t[v]
	return ok
}

// Add taints v.
func (t TaintSet) Add(v ir.Value) { t[v] = struct{}{} }

// Remove untaints v.
func (t TaintSet) Remove(v ir.Value) { delete(t, v) }

// Len returns the number of tainted values.
func (t TaintSet) Len() int { return len(t) }

// Clone returns a copy of t.
func (t TaintSet) Clone() TaintSet {
	c := make(TaintSet, len(t))
	for v := range t {
		c[v] = struct{}{}
	}
	return c
}

// Union adds every member of o to t and reports whether t grew.
func (t TaintSet) Union(o TaintSet) bool {
	grew := false
	for v := range o {
		if _, ok := t[v]; !ok {
			t[v] = struct{}{}
			grew = true
		}
	}
	return grew
}

// Equal reports whether t and o have the same members.
func (t TaintSet) Equal(o TaintSet) bool {
	if len(t) != len(o) {
		return false
	}
	for v := range t {
		if _, ok := o[v]; !ok {
			return false
		}
	}
	return true
}

// Values returns the members ordered by their string form.
func (t TaintSet) Values() []ir.Value {
	out := make([]ir.Value, 0, len(t))
	for v := range t {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (t TaintSet) String() string {
	vs := t.Values()
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.String()
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// ParamSet is a set of formal parameter indices, backed by a Roaring
// bitmap.
type ParamSet struct {
	bitmap *roaring.Bitmap
}

// NewParamSet returns a set holding the given indices.
func NewParamSet(indices ...int) ParamSet {
	p := ParamSet{bitmap: roaring.New()}
	for _, i := range indices {
		p.Add(i)
	}
	return p
}

// AllParams returns the set {0, ..., n-1}.
func AllParams(n int) ParamSet {
	p := NewParamSet()
	if n > 0 {
		p.bitmap.AddRange(0, uint64(n))
	}
	return p
}

// Add inserts index i. Negative indices are ignored.
func (p ParamSet) Add(i int) {
	if i >= 0 {
		p.bitmap.Add(uint32(i))
	}
}

// Has reports whether index i is a member.
func (p ParamSet) Has(i int) bool {
	return p.bitmap != nil && i >= 0 && p.bitmap.Contains(uint32(i))
}

// Len returns the number of members.
func (p ParamSet) Len() int {
	if p.bitmap == nil {
		return 0
	}
	return int(p.bitmap.GetCardinality())
}

// IsEmpty reports whether the set has no members.
func (p ParamSet) IsEmpty() bool { return p.Len() == 0 }

// Indices returns the members in ascending order.
func (p ParamSet) Indices() []int {
	if p.bitmap == nil {
		return nil
	}
	out := make([]int, 0, p.Len())
	it := p.bitmap.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// String renders the set as "{0,2}".
func (p ParamSet) String() string {
	if p.bitmap == nil {
		return "{}"
	}
	return p.bitmap.String()
}
