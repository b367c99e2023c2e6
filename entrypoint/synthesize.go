package entrypoint

import (
	"fmt"

	"github.com/picatz/taintflow/ir"
)

// Synthetic driver naming.
const (
	MainClass     = "taintflow.SyntheticMain"
	MainName      = "main"
	MainSignature = "<" + MainClass + ": void main(java.lang.String[])>"
)

// Driver is the result of Synthesize.
type Driver struct {
	// Program is the input program extended with the driver class.
	Program *ir.Arena
	// Main is the driver method calling every resolved handler.
	Main *ir.Method
	// Handlers are the resolved route methods in route order, without
	// duplicates.
	Handlers []*ir.Method
	// Unresolved are the routes whose handler could not be found.
	Unresolved []*Route
}

// Synthesize builds a driver method that invokes every route handler, so
// that a call graph rooted at the driver covers all of them:
//
//	args := @param0
//	r0 = new C; specialinvoke r0.<C: void <init>()>()   (instance handlers)
//	virtualinvoke r0.<C: T h(...)>(null, 0, ...)
//	...
//	return
//
// Arguments are null or zero by type. Routes that do not resolve are
// returned in Driver.Unresolved and otherwise ignored.
func Synthesize(prog ir.Program, routes []*Route) (*Driver, error) {
	if prog.Class(MainClass) != nil {
		return nil, fmt.Errorf("program already defines %s", MainClass)
	}

	d := &Driver{Program: ir.Extend(prog)}
	b := ir.NewBodyBuilder(1).At("synthetic").Param(0, "args")

	seen := make(map[ir.MethodID]bool)
	for i, route := range routes {
		m := Resolve(prog, route)
		if m == nil {
			d.Unresolved = append(d.Unresolved, route)
			continue
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		d.Handlers = append(d.Handlers, m)

		args := make([]ir.Value, m.NumParams())
		for j, typ := range m.Params {
			args[j] = zeroValue(typ)
		}

		if m.Static {
			b.Invoke(ir.StaticCall(m.Signature(), args...))
			continue
		}

		recv := ir.Var(fmt.Sprintf("r%d_%s", i, ir.SimpleName(m.Class)))
		b.Assign(recv, ir.New(m.Class))
		if c := prog.Class(m.Class); c != nil {
			if ctor := c.Method("void <init>()"); ctor != nil {
				b.Invoke(ir.SpecialCall(ctor.Signature(), recv))
			}
		}
		b.Invoke(ir.VirtualCall(m.Signature(), recv, args...))
	}
	b.ReturnVoid()

	body, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build driver body: %w", err)
	}

	d.Main = &ir.Method{
		Name:   MainName,
		Return: "void",
		Params: []string{"java.lang.String[]"},
		Static: true,
		Body:   body,
	}
	err = d.Program.AddClass(&ir.Class{
		Name:    MainClass,
		Super:   "java.lang.Object",
		Methods: []*ir.Method{d.Main},
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func zeroValue(typ string) ir.Value {
	switch typ {
	case "int", "short", "byte", "char", "boolean",
		"int8", "int16", "int32", "uint8", "uint16", "uint32", "uint", "rune", "bool":
		return ir.Const("0")
	case "long", "int64", "uint64", "uintptr":
		return ir.Const("0L")
	case "float", "float32":
		return ir.Const("0.0F")
	case "double", "float64":
		return ir.Const("0.0")
	}
	return ir.Nil
}
