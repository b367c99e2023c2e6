package ir

import (
	"fmt"
	"strings"
)

// ValueKind classifies the storage location a Value names.
type ValueKind uint8

const (
	// Local is a method-local variable (including parameter and receiver
	// locals bound by identity statements).
	Local ValueKind = iota
	// Constant is a literal that is not the null literal.
	Constant
	// Null is the null (nil) literal.
	Null
	// InstanceField is a field read or written through a base local,
	// e.g. r0.name.
	InstanceField
	// StaticField is a class level field.
	StaticField
	// ArrayElem is an array (or slice, or map) element accessed through a
	// base local, e.g. r1[i2].
	ArrayElem
)

func (k ValueKind) String() string {
	switch k {
	case Local:
		return "local"
	case Constant:
		return "constant"
	case Null:
		return "null"
	case InstanceField:
		return "field"
	case StaticField:
		return "static"
	case ArrayElem:
		return "element"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is an operand of a statement. Values are comparable and are used
// directly as set keys; two values are the same location only within the
// body that produced them.
type Value struct {
	Kind ValueKind
	// Name is the local name, constant text, field name, static field
	// name ("Class.field"), or element index text.
	Name string
	// Base is the base local name for InstanceField and ArrayElem values.
	Base string
}

// Var returns a local value.
func Var(name string) Value { return Value{Kind: Local, Name: name} }

// Const returns a constant value.
func Const(text string) Value { return Value{Kind: Constant, Name: text} }

// Nil is the null literal.
var Nil = Value{Kind: Null, Name: "null"}

// Field returns the instance field base.name.
func Field(base, name string) Value { return Value{Kind: InstanceField, Name: name, Base: base} }

// Static returns the static field class.name.
func Static(class, name string) Value { return Value{Kind: StaticField, Name: class + "." + name} }

// Elem returns the element base[index].
func Elem(base, index string) Value { return Value{Kind: ArrayElem, Name: index, Base: base} }

// IsLocal reports whether v is a plain local.
func (v Value) IsLocal() bool { return v.Kind == Local }

// IsNull reports whether v is the null literal.
func (v Value) IsNull() bool { return v.Kind == Null }

// BaseLocal returns the local through which a field or element value is
// accessed.
func (v Value) BaseLocal() (Value, bool) {
	switch v.Kind {
	case InstanceField, ArrayElem:
		if v.Base == "" {
			return Value{}, false
		}
		return Var(v.Base), true
	}
	return Value{}, false
}

func (v Value) String() string {
	switch v.Kind {
	case InstanceField:
		return v.Base + "." + v.Name
	case ArrayElem:
		return v.Base + "[" + v.Name + "]"
	case Constant:
		if v.Name == "" {
			return `""`
		}
		return v.Name
	default:
		return v.Name
	}
}

// ExprKind classifies the right hand side of an assignment.
type ExprKind uint8

const (
	// UseExpr copies a single value.
	UseExpr ExprKind = iota
	// BinaryExpr combines two operands.
	BinaryExpr
	// CastExpr converts its single operand.
	CastExpr
	// PhiExpr merges any number of operands.
	PhiExpr
	// InvokeExpr is the result of a method invocation.
	InvokeExpr
	// NewExpr allocates a fresh object.
	NewExpr
)

// Expr is the right hand side of an assignment.
type Expr struct {
	Kind     ExprKind
	Op       string // binary operator
	Type     string // cast or allocation type
	Operands []Value
	Call     *Invoke
}

// Use returns an expression that copies v.
func Use(v Value) Expr { return Expr{Kind: UseExpr, Operands: []Value{v}} }

// Binary returns the expression x op y.
func Binary(op string, x, y Value) Expr {
	return Expr{Kind: BinaryExpr, Op: op, Operands: []Value{x, y}}
}

// Cast returns the expression (typ) x.
func Cast(typ string, x Value) Expr { return Expr{Kind: CastExpr, Type: typ, Operands: []Value{x}} }

// Phi returns a merge of the given values.
func Phi(vs ...Value) Expr { return Expr{Kind: PhiExpr, Operands: vs} }

// Call returns an invocation expression.
func Call(inv *Invoke) Expr { return Expr{Kind: InvokeExpr, Call: inv} }

// New returns an allocation expression.
func New(typ string) Expr { return Expr{Kind: NewExpr, Type: typ} }

func (e Expr) String() string {
	switch e.Kind {
	case UseExpr:
		if len(e.Operands) == 1 {
			return e.Operands[0].String()
		}
	case BinaryExpr:
		if len(e.Operands) == 2 {
			return e.Operands[0].String() + " " + e.Op + " " + e.Operands[1].String()
		}
	case CastExpr:
		if len(e.Operands) == 1 {
			return "(" + e.Type + ") " + e.Operands[0].String()
		}
	case PhiExpr:
		names := make([]string, len(e.Operands))
		for i, v := range e.Operands {
			names[i] = v.String()
		}
		return "phi(" + strings.Join(names, ", ") + ")"
	case InvokeExpr:
		if e.Call != nil {
			return e.Call.String()
		}
	case NewExpr:
		return "new " + e.Type
	}
	return "?"
}
