package ir

import (
	"fmt"
	"strings"
)

// InvokeKind is the dispatch mode of an invocation.
type InvokeKind uint8

const (
	// StaticInvoke calls a class level method.
	StaticInvoke InvokeKind = iota
	// SpecialInvoke calls exactly the named implementation (constructors,
	// private methods, super calls).
	SpecialInvoke
	// VirtualInvoke dispatches on the runtime class of the receiver.
	VirtualInvoke
	// InterfaceInvoke dispatches through an interface method.
	InterfaceInvoke
	// DynamicInvoke is a call whose target is not known statically.
	DynamicInvoke
)

func (k InvokeKind) String() string {
	switch k {
	case StaticInvoke:
		return "staticinvoke"
	case SpecialInvoke:
		return "specialinvoke"
	case VirtualInvoke:
		return "virtualinvoke"
	case InterfaceInvoke:
		return "interfaceinvoke"
	case DynamicInvoke:
		return "dynamicinvoke"
	default:
		return fmt.Sprintf("InvokeKind(%d)", k)
	}
}

// Invoke describes a call: the declared target signature, an optional
// receiver for instance calls, and the actual arguments.
type Invoke struct {
	Kind     InvokeKind
	Callee   string // declared full signature, e.g. "<a.B: void m(int)>"
	Receiver *Value
	Args     []Value
}

// IsInstance reports whether the call has a receiver.
func (inv *Invoke) IsInstance() bool { return inv.Receiver != nil }

// Target parses the declared callee signature.
func (inv *Invoke) Target() (Signature, error) { return ParseSignature(inv.Callee) }

func (inv *Invoke) String() string {
	args := make([]string, len(inv.Args))
	for i, a := range inv.Args {
		args[i] = a.String()
	}
	recv := ""
	if inv.Receiver != nil {
		recv = inv.Receiver.String() + "."
	}
	return fmt.Sprintf("%s %s%s(%s)", inv.Kind, recv, inv.Callee, strings.Join(args, ", "))
}

// CondOp is the comparison operator of a conditional branch.
type CondOp uint8

const (
	CondOther CondOp = iota
	CondEq
	CondNe
)

// Condition is the test of a conditional branch. The branch edge is taken
// when the condition holds.
type Condition struct {
	Op   CondOp
	X, Y Value
}

// NullCheck reports whether the condition compares a local against the
// null literal, returning that local and the operator.
func (c Condition) NullCheck() (Value, CondOp, bool) {
	if c.Op != CondEq && c.Op != CondNe {
		return Value{}, c.Op, false
	}
	switch {
	case c.X.IsNull() && c.Y.IsLocal():
		return c.Y, c.Op, true
	case c.Y.IsNull() && c.X.IsLocal():
		return c.X, c.Op, true
	}
	return Value{}, c.Op, false
}

func (c Condition) String() string {
	op := "?"
	switch c.Op {
	case CondEq:
		op = "=="
	case CondNe:
		op = "!="
	}
	return c.X.String() + " " + op + " " + c.Y.String()
}

// StmtKind classifies a statement.
type StmtKind uint8

const (
	// IdentityStmt binds a parameter (or the receiver) to a local.
	IdentityStmt StmtKind = iota
	// AssignStmt is lhs = rhs.
	AssignStmt
	// IfStmt branches to Target when Cond holds and falls through
	// otherwise.
	IfStmt
	// GotoStmt jumps to Target unconditionally.
	GotoStmt
	// InvokeStmt is a call whose result, if any, is discarded.
	InvokeStmt
	// ReturnStmt leaves the method, optionally with a result.
	ReturnStmt
	// ThrowStmt leaves the method exceptionally.
	ThrowStmt
	// NopStmt does nothing.
	NopStmt
)

// ThisParam is the Param index of an identity statement binding the
// receiver.
const ThisParam = -1

// Stmt is a single statement of a method body.
type Stmt struct {
	Kind StmtKind

	Lhs   Value // IdentityStmt, AssignStmt
	Rhs   Expr  // AssignStmt
	Param int   // IdentityStmt; ThisParam for the receiver

	Cond   Condition // IfStmt
	Target int       // IfStmt, GotoStmt

	Call   *Invoke // InvokeStmt
	Result *Value  // ReturnStmt (nil for void returns)

	Pos string // optional source position
}

// Invocation returns the call made by the statement, if any.
func (s *Stmt) Invocation() *Invoke {
	switch s.Kind {
	case InvokeStmt:
		return s.Call
	case AssignStmt:
		if s.Rhs.Kind == InvokeExpr {
			return s.Rhs.Call
		}
	}
	return nil
}

func (s *Stmt) String() string {
	switch s.Kind {
	case IdentityStmt:
		if s.Param == ThisParam {
			return s.Lhs.String() + " := @this"
		}
		return fmt.Sprintf("%s := @parameter%d", s.Lhs, s.Param)
	case AssignStmt:
		return s.Lhs.String() + " = " + s.Rhs.String()
	case IfStmt:
		return fmt.Sprintf("if %s goto %d", s.Cond, s.Target)
	case GotoStmt:
		return fmt.Sprintf("goto %d", s.Target)
	case InvokeStmt:
		return s.Call.String()
	case ReturnStmt:
		if s.Result == nil {
			return "return"
		}
		return "return " + s.Result.String()
	case ThrowStmt:
		return "throw"
	default:
		return "nop"
	}
}

// Body is the statement-level control flow graph of a method. Control
// falls from one statement to the next unless the statement is a goto,
// return or throw; if statements additionally branch to their target.
type Body struct {
	Stmts []*Stmt
	// Params holds the local bound to each formal parameter, or "" when
	// the parameter is never bound.
	Params []string
	// This is the local bound to the receiver, or "" for static methods.
	This string
}

// Len returns the number of statements.
func (b *Body) Len() int { return len(b.Stmts) }

// Successors returns the fallthrough and branch successors of statement i,
// each -1 when absent.
func (b *Body) Successors(i int) (fall, branch int) {
	fall, branch = -1, -1
	s := b.Stmts[i]
	switch s.Kind {
	case GotoStmt:
		branch = b.valid(s.Target)
		return
	case ReturnStmt, ThrowStmt:
		return
	case IfStmt:
		branch = b.valid(s.Target)
	}
	if i+1 < len(b.Stmts) {
		fall = i + 1
	}
	return
}

func (b *Body) valid(i int) int {
	if i < 0 || i >= len(b.Stmts) {
		return -1
	}
	return i
}

// ParamLocal returns the local bound to parameter i.
func (b *Body) ParamLocal(i int) (Value, bool) {
	if i == ThisParam {
		if b.This == "" {
			return Value{}, false
		}
		return Var(b.This), true
	}
	if i < 0 || i >= len(b.Params) || b.Params[i] == "" {
		return Value{}, false
	}
	return Var(b.Params[i]), true
}

func (b *Body) String() string {
	var sb strings.Builder
	for i, s := range b.Stmts {
		fmt.Fprintf(&sb, "%3d: %s\n", i, s)
	}
	return sb.String()
}
