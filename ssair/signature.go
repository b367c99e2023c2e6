package ssair

import (
	"go/types"
	"strings"

	"github.com/picatz/taintflow/ir"
	"golang.org/x/tools/go/ssa"
)

// typeString renders t fully qualified by package path, the way sink and
// source signatures spell Go types.
func typeString(t types.Type) string {
	s := types.TypeString(t, nil)
	return strings.ReplaceAll(s, "interface{}", "any")
}

// resultString renders a result tuple: "void", a single type, or a
// parenthesized list without result names.
func resultString(results *types.Tuple) string {
	switch results.Len() {
	case 0:
		return "void"
	case 1:
		return typeString(results.At(0).Type())
	}
	parts := make([]string, results.Len())
	for i := range parts {
		parts[i] = typeString(results.At(i).Type())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func paramStrings(params *types.Tuple) []string {
	out := make([]string, params.Len())
	for i := range out {
		out[i] = typeString(params.At(i).Type())
	}
	return out
}

// receiverClass returns the class of a method receiver type: the named
// type with any pointer stripped, "database/sql.DB" for *sql.DB.
func receiverClass(t types.Type) string {
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
		t = ptr.Elem()
	}
	return typeString(t)
}

// signatureOf builds the IR signature of a method or function named name
// declared on class.
func signatureOf(class, name string, sig *types.Signature) ir.Signature {
	return ir.Signature{
		Class:  class,
		Return: resultString(sig.Results()),
		Name:   name,
		Params: paramStrings(sig.Params()),
	}
}

// funcClass returns the class an SSA function belongs to: the receiver's
// type for methods, otherwise the declaring package path.
func funcClass(fn *ssa.Function) string {
	if recv := fn.Signature.Recv(); recv != nil {
		return receiverClass(recv.Type())
	}
	if fn.Pkg != nil {
		return fn.Pkg.Pkg.Path()
	}
	if obj := fn.Object(); obj != nil && obj.Pkg() != nil {
		return obj.Pkg().Path()
	}
	if parent := fn.Parent(); parent != nil {
		return funcClass(parent)
	}
	return "synthetic"
}

// funcSignature returns the full IR signature of fn. The receiver, if
// any, is not part of the parameter list.
func funcSignature(fn *ssa.Function) ir.Signature {
	return signatureOf(funcClass(fn), fn.Name(), fn.Signature)
}

// dynamicSignature names an indirect call through a function value of
// type sig.
func dynamicSignature(sig *types.Signature) string {
	return signatureOf("func", "call", sig).String()
}
