package taintflow

import (
	"sort"

	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/rules"
)

// MethodSummary records, for one method, how taint on its receiver and
// parameters reaches its return value, its receiver, and registered sinks
// inside its own body.
type MethodSummary struct {
	Method         string
	ParamsToReturn ParamSet
	ThisToReturn   bool
	ParamsToThis   ParamSet
	ParamsToSinks  map[int][]string
}

// SinksFor returns the sink signatures reached from parameter i, sorted.
func (s *MethodSummary) SinksFor(i int) []string {
	if s == nil {
		return nil
	}
	return s.ParamsToSinks[i]
}

// Summarize builds the summary of m by analyzing its body once per seed:
// once with only the receiver tainted (for instance methods) and once per
// formal parameter. It returns false when m has no resolvable body.
//
// Sink reachability is only recorded for parameter seeds.
func Summarize(m *ir.Method, idx *rules.Index, opts ...FlowOption) (*MethodSummary, bool) {
	if !m.HasBody() {
		return nil, false
	}
	body := m.Body

	s := &MethodSummary{
		Method:         m.Signature(),
		ParamsToReturn: NewParamSet(),
		ParamsToThis:   NewParamSet(),
		ParamsToSinks:  make(map[int][]string),
	}

	if !m.Static {
		if this, ok := body.ParamLocal(ir.ThisParam); ok {
			f := Analyze(body, NewTaintSet(this), opts...)
			s.ThisToReturn = returnsTaint(body, f)
		}
	}

	for i := 0; i < m.NumParams(); i++ {
		local, ok := body.ParamLocal(i)
		if !ok {
			continue
		}
		f := Analyze(body, NewTaintSet(local), opts...)

		if returnsTaint(body, f) {
			s.ParamsToReturn.Add(i)
		}
		if this, ok := body.ParamLocal(ir.ThisParam); ok && taintedAtReturn(body, f, this) {
			s.ParamsToThis.Add(i)
		}
		if sinks := reachedSinks(body, f, idx); len(sinks) > 0 {
			s.ParamsToSinks[i] = sinks
		}
	}

	return s, true
}

func returnsTaint(body *ir.Body, f *Flow) bool {
	for i, st := range body.Stmts {
		if st.Kind == ir.ReturnStmt && st.Result != nil && f.Tainted(i, *st.Result) {
			return true
		}
	}
	return false
}

func taintedAtReturn(body *ir.Body, f *Flow, v ir.Value) bool {
	for i, st := range body.Stmts {
		if st.Kind == ir.ReturnStmt && f.Before(i).Has(v) {
			return true
		}
	}
	return false
}

func reachedSinks(body *ir.Body, f *Flow, idx *rules.Index) []string {
	seen := make(map[string]bool)
	var out []string
	for i, st := range body.Stmts {
		inv := st.Invocation()
		if inv == nil || !idx.IsSink(inv.Callee) || seen[inv.Callee] {
			continue
		}
		if f.AnyArgTainted(i, inv) {
			seen[inv.Callee] = true
			out = append(out, inv.Callee)
		}
	}
	sort.Strings(out)
	return out
}
