package ssair

import (
	"fmt"
	"go/token"
	"go/types"

	"github.com/picatz/taintflow/ir"
	"golang.org/x/tools/go/ssa"
)

// retLocal holds the merged results of a multi-value return.
const retLocal = "ret$"

// funcLowerer translates the SSA blocks of one function into an IR body.
// SSA registers keep their names ("t3"), blocks become labels ("b2"),
// and memory is approximated by the root local an address was derived
// from.
type funcLowerer struct {
	fn    *ssa.Function
	fset  *token.FileSet
	b     *ir.BodyBuilder
	names map[ssa.Value]string
}

// lowerBody returns the IR body of fn, or nil for functions without
// blocks (external, assembly or not yet built).
func lowerBody(fset *token.FileSet, fn *ssa.Function) (*ir.Body, error) {
	if len(fn.Blocks) == 0 {
		return nil, nil
	}

	params := fn.Params
	recv := fn.Signature.Recv() != nil && len(params) > 0
	if recv {
		params = params[1:]
	}

	l := &funcLowerer{
		fn:    fn,
		fset:  fset,
		b:     ir.NewBodyBuilder(len(params)),
		names: make(map[ssa.Value]string),
	}

	for i, p := range fn.Params {
		if p.Name() == "" || p.Name() == "_" {
			l.names[p] = fmt.Sprintf("arg%d", i)
		}
	}
	if recv {
		l.b.This(l.name(fn.Params[0]))
	}
	for i, p := range params {
		l.b.Param(i, l.name(p))
	}

	for _, block := range fn.Blocks {
		l.b.Label(blockLabel(block))
		for _, instr := range block.Instrs {
			l.b.At(l.pos(instr.Pos()))
			l.instr(instr)
		}
	}

	return l.b.Build()
}

func blockLabel(b *ssa.BasicBlock) string { return fmt.Sprintf("b%d", b.Index) }

func (l *funcLowerer) pos(p token.Pos) string {
	if !p.IsValid() || l.fset == nil {
		return ""
	}
	at := l.fset.Position(p)
	return fmt.Sprintf("%s:%d", at.Filename, at.Line)
}

func (l *funcLowerer) name(v ssa.Value) string {
	if n, ok := l.names[v]; ok {
		return n
	}
	return v.Name()
}

// value returns the IR operand for v.
func (l *funcLowerer) value(v ssa.Value) ir.Value {
	switch v := v.(type) {
	case *ssa.Const:
		if v.Value == nil {
			return ir.Nil
		}
		return ir.Const(v.Value.ExactString())
	case *ssa.Global:
		if v.Pkg == nil {
			return ir.Static("synthetic", v.Name())
		}
		return ir.Static(v.Pkg.Pkg.Path(), v.Name())
	case *ssa.Function:
		return ir.Const(v.String())
	case *ssa.Builtin:
		return ir.Const(v.Name())
	}
	return ir.Var(l.name(v))
}

func (l *funcLowerer) values(vs []ssa.Value) []ir.Value {
	out := make([]ir.Value, len(vs))
	for i, v := range vs {
		out[i] = l.value(v)
	}
	return out
}

// loc returns the storage location addr points to. Field and element
// addresses are collapsed onto the local they were derived from, so a
// write through &x.a.b marks x.
func (l *funcLowerer) loc(addr ssa.Value) ir.Value {
	switch a := addr.(type) {
	case *ssa.Global:
		return l.value(a)
	case *ssa.FieldAddr:
		base, ok := l.root(a.X)
		if !ok {
			return l.loc(a.X)
		}
		return ir.Field(base, fieldName(a.X.Type(), a.Field))
	case *ssa.IndexAddr:
		base, ok := l.root(a.X)
		if !ok {
			return l.loc(a.X)
		}
		return ir.Elem(base, l.value(a.Index).Name)
	}
	return ir.Field(l.name(addr), "*")
}

// root returns the local an address expression is rooted at. Addresses
// rooted at a package variable have no local root.
func (l *funcLowerer) root(x ssa.Value) (string, bool) {
	switch a := x.(type) {
	case *ssa.Global:
		return "", false
	case *ssa.FieldAddr:
		return l.root(a.X)
	case *ssa.IndexAddr:
		return l.root(a.X)
	}
	return l.name(x), true
}

func fieldName(t types.Type, i int) string {
	t = t.Underlying()
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem().Underlying()
	}
	if st, ok := t.(*types.Struct); ok && i < st.NumFields() {
		return st.Field(i).Name()
	}
	return fmt.Sprintf("#%d", i)
}

func (l *funcLowerer) assign(v ssa.Value, e ir.Expr) {
	l.b.Assign(ir.Var(l.name(v)), e)
}

func (l *funcLowerer) instr(instr ssa.Instruction) {
	switch in := instr.(type) {
	case *ssa.Alloc:
		l.assign(in, ir.New(typeString(in.Type())))
	case *ssa.BinOp:
		l.assign(in, ir.Binary(in.Op.String(), l.value(in.X), l.value(in.Y)))
	case *ssa.UnOp:
		switch in.Op {
		case token.MUL:
			l.assign(in, ir.Use(l.loc(in.X)))
		case token.ARROW:
			l.assign(in, ir.Use(ir.Field(l.name(in.X), "<-")))
		default:
			l.assign(in, ir.Use(l.value(in.X)))
		}
	case *ssa.FieldAddr:
		l.assign(in, ir.Use(l.loc(in)))
	case *ssa.IndexAddr:
		l.assign(in, ir.Use(l.loc(in)))
	case *ssa.Store:
		l.b.Assign(l.loc(in.Addr), ir.Use(l.value(in.Val)))
	case *ssa.Field:
		l.assign(in, ir.Use(ir.Field(l.name(in.X), fieldName(in.X.Type(), in.Field))))
	case *ssa.Index:
		l.assign(in, ir.Use(ir.Elem(l.name(in.X), l.value(in.Index).Name)))
	case *ssa.Lookup:
		l.assign(in, ir.Use(ir.Elem(l.name(in.X), l.value(in.Index).Name)))
	case *ssa.Extract:
		l.assign(in, ir.Use(ir.Field(l.name(in.Tuple), fmt.Sprintf("#%d", in.Index))))
	case *ssa.Convert:
		l.assign(in, ir.Cast(typeString(in.Type()), l.value(in.X)))
	case *ssa.ChangeType:
		l.assign(in, ir.Cast(typeString(in.Type()), l.value(in.X)))
	case *ssa.ChangeInterface:
		l.assign(in, ir.Cast(typeString(in.Type()), l.value(in.X)))
	case *ssa.MakeInterface:
		l.assign(in, ir.Cast(typeString(in.Type()), l.value(in.X)))
	case *ssa.TypeAssert:
		l.assign(in, ir.Cast(typeString(in.AssertedType), l.value(in.X)))
	case *ssa.Slice:
		l.assign(in, ir.Cast(typeString(in.Type()), l.value(in.X)))
	case *ssa.MultiConvert:
		l.assign(in, ir.Cast(typeString(in.Type()), l.value(in.X)))
	case *ssa.SliceToArrayPointer:
		l.assign(in, ir.Cast(typeString(in.Type()), l.value(in.X)))
	case *ssa.Range:
		l.assign(in, ir.Cast("iter", l.value(in.X)))
	case *ssa.Next:
		l.assign(in, ir.Use(ir.Field(l.name(in.Iter), "*")))
	case *ssa.MakeSlice:
		l.assign(in, ir.New(typeString(in.Type())))
	case *ssa.MakeMap:
		l.assign(in, ir.New(typeString(in.Type())))
	case *ssa.MakeChan:
		l.assign(in, ir.New(typeString(in.Type())))
	case *ssa.MakeClosure:
		l.assign(in, ir.Phi(l.values(in.Bindings)...))
	case *ssa.Phi:
		l.assign(in, ir.Phi(l.values(in.Edges)...))
	case *ssa.MapUpdate:
		l.b.Assign(ir.Elem(l.name(in.Map), l.value(in.Key).Name), ir.Use(l.value(in.Value)))
	case *ssa.Send:
		l.b.Assign(ir.Field(l.name(in.Chan), "<-"), ir.Use(l.value(in.X)))
	case *ssa.Select:
		var recv []ir.Value
		for _, st := range in.States {
			if st.Dir == types.RecvOnly {
				recv = append(recv, ir.Field(l.name(st.Chan), "<-"))
			}
		}
		l.assign(in, ir.Phi(recv...))
	case *ssa.Call:
		l.call(in, &in.Call)
	case *ssa.Go:
		l.call(nil, &in.Call)
	case *ssa.Defer:
		l.call(nil, &in.Call)
	case *ssa.If:
		succs := in.Block().Succs
		l.b.If(l.cond(in.Cond), blockLabel(succs[0])).Goto(blockLabel(succs[1]))
	case *ssa.Jump:
		l.b.Goto(blockLabel(in.Block().Succs[0]))
	case *ssa.Return:
		l.ret(in.Results)
	case *ssa.Panic:
		l.b.Throw()
	}
}

// cond lowers a branch condition. Equality tests keep their operands so
// comparisons against nil act as null checks.
func (l *funcLowerer) cond(v ssa.Value) ir.Condition {
	if bin, ok := v.(*ssa.BinOp); ok {
		switch bin.Op {
		case token.EQL:
			return ir.Condition{Op: ir.CondEq, X: l.value(bin.X), Y: l.value(bin.Y)}
		case token.NEQ:
			return ir.Condition{Op: ir.CondNe, X: l.value(bin.X), Y: l.value(bin.Y)}
		}
	}
	return ir.Condition{Op: ir.CondOther, X: l.value(v)}
}

func (l *funcLowerer) ret(results []ssa.Value) {
	switch len(results) {
	case 0:
		l.b.ReturnVoid()
	case 1:
		l.b.Return(l.value(results[0]))
	default:
		l.b.Assign(ir.Var(retLocal), ir.Phi(l.values(results)...))
		l.b.Return(ir.Var(retLocal))
	}
}

// call lowers a call, go or defer. result is nil when the value of the
// call is not used.
func (l *funcLowerer) call(result ssa.Value, cc *ssa.CallCommon) {
	if b, ok := cc.Value.(*ssa.Builtin); ok {
		l.builtin(result, b, cc.Args)
		return
	}

	inv := l.invoke(cc)
	if result != nil && cc.Signature().Results().Len() > 0 {
		l.assign(result, ir.Call(inv))
		return
	}
	l.b.Invoke(inv)
}

func (l *funcLowerer) invoke(cc *ssa.CallCommon) *ir.Invoke {
	if cc.IsInvoke() {
		sig := signatureOf(typeString(cc.Value.Type()), cc.Method.Name(), cc.Method.Type().(*types.Signature))
		return ir.InterfaceCall(sig.String(), l.value(cc.Value), l.values(cc.Args)...)
	}

	if callee := cc.StaticCallee(); callee != nil {
		sig := funcSignature(callee).String()
		if callee.Signature.Recv() != nil && len(cc.Args) > 0 {
			return ir.SpecialCall(sig, l.value(cc.Args[0]), l.values(cc.Args[1:])...)
		}
		return ir.StaticCall(sig, l.values(cc.Args)...)
	}

	return &ir.Invoke{
		Kind:   ir.DynamicInvoke,
		Callee: dynamicSignature(cc.Signature()),
		Args:   l.values(cc.Args),
	}
}

func (l *funcLowerer) builtin(result ssa.Value, b *ssa.Builtin, args []ssa.Value) {
	switch b.Name() {
	case "append", "ssa:wrapnilchk":
		if result != nil {
			l.assign(result, ir.Phi(l.values(args)...))
		}
	case "copy":
		if len(args) == 2 {
			l.b.Assign(ir.Elem(l.name(args[0]), "*"), ir.Use(l.value(args[1])))
		}
	default:
		if result != nil {
			l.assign(result, ir.New(typeString(result.Type())))
		}
	}
}
