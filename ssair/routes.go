package ssair

import (
	"go/constant"
	"go/types"
	"strings"

	"github.com/picatz/taintflow/entrypoint"
	"golang.org/x/tools/go/ssa"
)

// serveHTTP is the sub-signature of http.Handler's only method.
const serveHTTP = "void ServeHTTP(net/http.ResponseWriter,*net/http.Request)"

// discoverRoute records a route for calls registering a handler with
// net/http, either on the default mux or on a *http.ServeMux:
//
//	http.HandleFunc("GET /users/{id}", getUser)
//	mux.Handle("/admin", http.HandlerFunc(admin))
//
// Only constant patterns are understood.
func (l *lowerer) discoverRoute(call *ssa.Call) {
	callee := call.Call.StaticCallee()
	if callee == nil || !registersHandler(callee) {
		return
	}

	args := call.Call.Args
	if callee.Signature.Recv() != nil {
		args = args[1:]
	}
	if len(args) != 2 {
		return
	}

	pattern, ok := args[0].(*ssa.Const)
	if !ok || pattern.Value == nil || pattern.Value.Kind() != constant.String {
		return
	}
	class, subsig, ok := handlerMethod(args[1])
	if !ok {
		l.log.Debug("unresolved handler for %s at %s", pattern.Value, l.prog.Fset.Position(call.Pos()))
		return
	}

	method, path := splitPattern(constant.StringVal(pattern.Value))
	route := &entrypoint.Route{
		Method:    method,
		Path:      path,
		Class:     class,
		MethodSig: subsig,
	}
	l.log.Debug("route %s", route)
	l.routes = append(l.routes, route)
}

func registersHandler(fn *ssa.Function) bool {
	if fn.Name() != "HandleFunc" && fn.Name() != "Handle" {
		return false
	}
	switch funcClass(fn) {
	case "net/http", "net/http.ServeMux":
		return true
	}
	return false
}

// handlerMethod finds the method serving requests for a handler value,
// looking through conversions, closures and bound methods.
func handlerMethod(v ssa.Value) (class, subsig string, ok bool) {
	for {
		switch x := v.(type) {
		case *ssa.MakeInterface:
			v = x.X
		case *ssa.ChangeType:
			v = x.X
		case *ssa.MakeClosure:
			v = x.Fn
		case *ssa.Function:
			if obj, isFunc := x.Object().(*types.Func); isFunc && x.Synthetic != "" {
				sig := obj.Type().(*types.Signature)
				if sig.Recv() != nil {
					bound := signatureOf(receiverClass(sig.Recv().Type()), obj.Name(), sig)
					return bound.Class, bound.SubSignature(), true
				}
			}
			sig := funcSignature(x)
			return sig.Class, sig.SubSignature(), true
		default:
			obj, _, _ := types.LookupFieldOrMethod(v.Type(), true, nil, "ServeHTTP")
			fn, isFunc := obj.(*types.Func)
			if !isFunc {
				return "", "", false
			}
			recv := fn.Type().(*types.Signature).Recv()
			return receiverClass(recv.Type()), serveHTTP, true
		}
	}
}

// splitPattern separates the method of a "GET /path" pattern. Patterns
// without one match every method.
func splitPattern(pattern string) (method, path string) {
	if verb, rest, ok := strings.Cut(pattern, " "); ok && verb != "" && !strings.Contains(verb, "/") {
		return strings.ToUpper(verb), strings.TrimSpace(rest)
	}
	return entrypoint.AnyMethod, pattern
}
