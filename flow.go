package taintflow

import (
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/rules"
)

// FlowOption configures Analyze.
type FlowOption func(*flowConfig)

type flowConfig struct {
	sources *rules.Index
}

// WithSources makes the result of any call to a registered source method
// tainted, in addition to the entry seed.
func WithSources(idx *rules.Index) FlowOption {
	return func(c *flowConfig) { c.sources = idx }
}

// Flow is the result of analyzing one method body: the taint holding
// immediately before each statement.
type Flow struct {
	body   *ir.Body
	before []TaintSet
}

// Before returns the taint holding immediately before statement i. The
// returned set must not be modified.
func (f *Flow) Before(i int) TaintSet {
	if i < 0 || i >= len(f.before) || f.before[i] == nil {
		return TaintSet{}
	}
	return f.before[i]
}

// Tainted reports whether v may be tainted immediately before statement
// i. A field or element access is tainted when its base is.
func (f *Flow) Tainted(i int, v ir.Value) bool {
	return valueTainted(f.Before(i), v)
}

// AnyArgTainted reports whether any argument of inv is tainted immediately
// before statement i.
func (f *Flow) AnyArgTainted(i int, inv *ir.Invoke) bool {
	in := f.Before(i)
	for _, a := range inv.Args {
		if valueTainted(in, a) {
			return true
		}
	}
	return false
}

// Analyze computes the taint before every statement of body, starting from
// seed at the entry statement. The analysis is a forward may-analysis:
// taint is merged by union where control flow joins, and the transfer
// functions are
//
//   - identity statements pass taint through unchanged;
//   - lhs = rhs taints lhs when rhs, any operand of rhs, the base of a
//     field or element read, or the receiver of an instance call is
//     tainted; a tainted field or element write also taints its base;
//     an untainted assignment kills a local (never a field or element);
//   - "if x == null" kills x on the branch edge, "if x != null" kills x
//     on the fallthrough edge;
//   - every other statement passes taint through.
//
// Analyze never fails; statements it does not understand pass taint
// through.
func Analyze(body *ir.Body, seed TaintSet, opts ...FlowOption) *Flow {
	cfg := &flowConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &Flow{body: body}
	if body == nil || len(body.Stmts) == 0 {
		return f
	}

	n := len(body.Stmts)
	f.before = make([]TaintSet, n)
	f.before[0] = seed.Clone()

	queued := make([]bool, n)
	work := []int{0}
	queued[0] = true

	propagate := func(to int, out TaintSet) {
		if to < 0 {
			return
		}
		first := f.before[to] == nil
		if first {
			f.before[to] = TaintSet{}
		}
		if (f.before[to].Union(out) || first) && !queued[to] {
			queued[to] = true
			work = append(work, to)
		}
	}

	for len(work) > 0 {
		i := work[0]
		work = work[1:]
		queued[i] = false

		in := f.Before(i)
		fallOut, branchOut := cfg.transfer(body.Stmts[i], in)

		fall, branch := body.Successors(i)
		propagate(fall, fallOut)
		propagate(branch, branchOut)
	}

	return f
}

// transfer returns the taint leaving s along its fallthrough and branch
// edges. The returned sets may alias in and must not be modified.
func (c *flowConfig) transfer(s *ir.Stmt, in TaintSet) (fall, branch TaintSet) {
	switch s.Kind {
	case ir.AssignStmt:
		out := in.Clone()
		if c.rhsTainted(s.Rhs, in) {
			out.Add(s.Lhs)
			if base, ok := s.Lhs.BaseLocal(); ok {
				out.Add(base)
			}
		} else if s.Lhs.IsLocal() {
			out.Remove(s.Lhs)
		}
		return out, out

	case ir.IfStmt:
		v, op, ok := s.Cond.NullCheck()
		if !ok || !in.Has(v) {
			return in, in
		}
		killed := in.Clone()
		killed.Remove(v)
		if op == ir.CondEq {
			return in, killed
		}
		return killed, in
	}
	return in, in
}

func (c *flowConfig) rhsTainted(e ir.Expr, in TaintSet) bool {
	switch e.Kind {
	case ir.UseExpr, ir.CastExpr, ir.BinaryExpr, ir.PhiExpr:
		for _, v := range e.Operands {
			if valueTainted(in, v) {
				return true
			}
		}
	case ir.InvokeExpr:
		if e.Call == nil {
			return false
		}
		if e.Call.Receiver != nil && in.Has(*e.Call.Receiver) {
			return true
		}
		if c.sources.IsSource(e.Call.Callee) {
			return true
		}
	}
	return false
}

func valueTainted(in TaintSet, v ir.Value) bool {
	if in.Has(v) {
		return true
	}
	if base, ok := v.BaseLocal(); ok {
		return in.Has(base)
	}
	return false
}
